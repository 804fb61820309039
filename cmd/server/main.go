package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mockmate/interview/internal/calls"
	"mockmate/interview/internal/config"
	"mockmate/interview/internal/feedback"
	"mockmate/interview/internal/generator"
	"mockmate/interview/internal/handlers"
	"mockmate/interview/internal/interviews"
	"mockmate/interview/internal/jobs"
	"mockmate/interview/internal/ledger"
	"mockmate/interview/internal/llm"
	_ "mockmate/interview/internal/llm/gemini"
	"mockmate/interview/internal/metrics"
	"mockmate/interview/internal/models"
	"mockmate/interview/internal/prompts"
	"mockmate/interview/internal/routers"
	"mockmate/interview/internal/sessions"
)

// Helper functions for environment variables
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// initDatabase initializes the PostgreSQL database connection
func initDatabase() (*gorm.DB, error) {
	host := getEnv("POSTGRES_HOST", "localhost")
	user := getEnv("POSTGRES_USER", "postgres")
	password := getEnv("POSTGRES_PASSWORD", "postgres")
	dbname := getEnv("POSTGRES_DB", "postgres")
	port := getEnv("POSTGRES_PORT", "5432")
	sslmode := getEnv("POSTGRES_SSLMODE", "disable")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, password, dbname, port, sslmode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Technology{},
		&models.Interview{},
		&models.InterviewVersion{},
		&models.Question{},
		&models.Session{},
		&models.Feedback{},
		&models.TechnologyScore{},
		&models.Subscription{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func registerRoutes(
	router *chi.Mux,
	cfg *config.Config,
	interviewHandler *handlers.InterviewHandler,
	generateHandler *handlers.GenerateHandler,
	sessionHandler *handlers.SessionHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	healthHandler *handlers.HealthHandler,
) {
	routers.HealthRoutes(router, healthHandler)
	routers.InterviewRoutes(router, interviewHandler, generateHandler, cfg.JWTSecret)
	routers.SessionRoutes(router, sessionHandler, subscriptionHandler, cfg.JWTSecret)
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.String("provider", cfg.Provider),
		zap.Float64("completion_threshold", cfg.CompletionThreshold))

	// prompt manager
	promptManager, err := prompts.NewPromptManager()
	if err != nil {
		logger.Fatal("Failed to initialize prompt manager", zap.Error(err))
	}

	// AI provider based on configuration
	aiProvider, err := llm.NewProvider(cfg.Provider)
	if err != nil {
		logger.Fatal("Failed to initialize AI provider", zap.Error(err))
	}

	db, err := initDatabase()
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}

	// the live voice transport is an external SDK; without credentials
	// sessions run against the in-process fake so the rest of the
	// lifecycle stays usable in development
	var dialer calls.Dialer = calls.NewFakeDialer()
	if getEnv("CALL_SDK", "fake") != "fake" {
		logger.Fatal("Unsupported call SDK", zap.String("call_sdk", os.Getenv("CALL_SDK")))
	}

	minutes := ledger.NewLedger(db)
	heartbeats := sessions.NewHeartbeatStore(redisClient, cfg.HeartbeatTTL)
	feedbackGenerator := feedback.NewGenerator(db, aiProvider, promptManager, logger)
	manager := sessions.NewManager(
		db,
		dialer,
		heartbeats,
		minutes,
		feedbackGenerator,
		promptManager,
		cfg.CompletionThreshold,
		logger,
	)

	builder := interviews.NewBuilder(
		db,
		generator.NewTechnologyNormalizer(aiProvider, promptManager, logger),
		generator.NewQuestionGenerator(aiProvider, promptManager, logger),
		aiProvider,
		promptManager,
		logger,
	)

	interviewHandler := handlers.NewInterviewHandler(builder, logger)
	generateHandler := handlers.NewGenerateHandler(builder, logger)
	sessionHandler := handlers.NewSessionHandler(manager, logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(minutes, logger)
	healthHandler := handlers.NewHealthHandler(db, redisClient)

	reaperJob := jobs.NewSessionReaperJob(db, manager, heartbeats, &jobs.ReaperConfig{
		Schedule:    cfg.ReaperSchedule,
		Enabled:     cfg.ReaperEnabled,
		GracePeriod: cfg.ReaperGracePeriod,
	})
	if err := reaperJob.Start(); err != nil {
		logger.Error("Failed to start session reaper", zap.Error(err))
	}

	router := chi.NewRouter()

	// cors middleware
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{getEnv("FRONTEND_ORIGIN", "http://localhost:5173")},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	router.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Logger, chimiddleware.Recoverer, chimiddleware.Timeout(60*time.Second))
	router.Use(metrics.Middleware())

	registerRoutes(router, cfg, interviewHandler, generateHandler, sessionHandler, subscriptionHandler, healthHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port

	// http server with timeouts
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// starting server in a goroutine
	go func() {
		logger.Info("Interview service starting", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	reaperJob.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		logger.Warn("Failed to close redis client", zap.Error(err))
	}
	logger.Info("Server stopped")
}
