package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"mockmate/interview/internal/models"
	"mockmate/interview/internal/sessions"
)

// SessionReaperJob resolves sessions whose client vanished without
// reporting anything: IN_PROGRESS rows with an expired heartbeat get
// routed through the regular incomplete handling.
type SessionReaperJob struct {
	db         *gorm.DB
	manager    *sessions.Manager
	heartbeats *sessions.HeartbeatStore
	config     *ReaperConfig
	cron       *cron.Cron
}

// ReaperConfig contains configuration for the reaper job
type ReaperConfig struct {
	Schedule string // Cron schedule (e.g., "*/2 * * * *" for every 2 minutes)
	Enabled  bool
	// GracePeriod protects freshly started sessions whose first
	// heartbeat may not have landed yet.
	GracePeriod time.Duration
}

func NewSessionReaperJob(
	db *gorm.DB,
	manager *sessions.Manager,
	heartbeats *sessions.HeartbeatStore,
	config *ReaperConfig,
) *SessionReaperJob {
	return &SessionReaperJob{
		db:         db,
		manager:    manager,
		heartbeats: heartbeats,
		config:     config,
		cron:       cron.New(),
	}
}

// Start begins the scheduled reaper job
func (srj *SessionReaperJob) Start() error {
	if !srj.config.Enabled {
		log.Println("Session reaper is disabled, skipping scheduler")
		return nil
	}

	log.Printf("Starting session reaper with schedule: %s", srj.config.Schedule)

	_, err := srj.cron.AddFunc(srj.config.Schedule, func() {
		if err := srj.RunSweep(); err != nil {
			log.Printf("Reaper sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reaper job: %w", err)
	}

	srj.cron.Start()
	return nil
}

// Stop stops the scheduled reaper job
func (srj *SessionReaperJob) Stop() {
	if srj.cron != nil {
		srj.cron.Stop()
		log.Println("Session reaper stopped")
	}
}

// RunSweep performs a single sweep over running sessions.
func (srj *SessionReaperJob) RunSweep() error {
	ctx := context.Background()
	cutoff := time.Now().Add(-srj.config.GracePeriod)

	var stale []models.Session
	err := srj.db.WithContext(ctx).
		Where("status = ? AND (started_at IS NULL OR started_at < ?)", models.SessionInProgress, cutoff).
		Find(&stale).Error
	if err != nil {
		return fmt.Errorf("failed to list running sessions: %w", err)
	}

	reaped := 0
	for _, session := range stale {
		alive, err := srj.heartbeats.Alive(ctx, session.ID)
		if err != nil {
			log.Printf("Heartbeat check failed for session %d: %v", session.ID, err)
			continue
		}
		if alive {
			continue
		}

		if _, err := srj.manager.HandleIncomplete(ctx, session.ID, ""); err != nil {
			// a feedback failure still means the session reached a terminal state
			if !errors.Is(err, sessions.ErrFeedbackNotGenerated) {
				log.Printf("Failed to resolve dead session %d: %v", session.ID, err)
				continue
			}
			log.Printf("Resolved dead session %d without feedback: %v", session.ID, err)
		}
		reaped++
	}

	if reaped > 0 {
		log.Printf("Reaper resolved %d dead sessions", reaped)
	}
	return nil
}
