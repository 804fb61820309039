package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("COMPLETION_THRESHOLD", "")
	t.Setenv("HEARTBEAT_TTL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Provider != "gemini" {
		t.Fatalf("expected provider gemini, got %s", cfg.Provider)
	}
	if cfg.CompletionThreshold != 50 {
		t.Fatalf("expected threshold 50, got %f", cfg.CompletionThreshold)
	}
	if cfg.HeartbeatTTL != time.Minute {
		t.Fatalf("expected heartbeat TTL 1m, got %s", cfg.HeartbeatTTL)
	}
	if !cfg.ReaperEnabled {
		t.Fatal("expected reaper enabled by default")
	}
}

func TestLoadConfig_UnsupportedProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "unknown")
	t.Setenv("JWT_SECRET", "secret")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	t.Setenv("AI_PROVIDER", "gemini")
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when JWT_SECRET is unset")
	}
}

func TestLoadConfig_ThresholdBounds(t *testing.T) {
	t.Setenv("AI_PROVIDER", "gemini")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("COMPLETION_THRESHOLD", "150")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for threshold above 100")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("UNIT_TEST_ENV", "value")
	if got := getEnvOrDefault("UNIT_TEST_ENV", "fallback"); got != "value" {
		t.Fatalf("expected env value, got %s", got)
	}

	t.Setenv("UNIT_TEST_ENV", "")
	if got := getEnvOrDefault("UNIT_TEST_ENV", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback value, got %s", got)
	}

	t.Setenv("UNIT_TEST_FLOAT", "12.5")
	if got := getEnvFloat("UNIT_TEST_FLOAT", 1); got != 12.5 {
		t.Fatalf("expected 12.5, got %f", got)
	}
	t.Setenv("UNIT_TEST_FLOAT", "not-a-number")
	if got := getEnvFloat("UNIT_TEST_FLOAT", 1); got != 1 {
		t.Fatalf("expected fallback 1, got %f", got)
	}

	t.Setenv("UNIT_TEST_DUR", "30s")
	if got := getEnvDuration("UNIT_TEST_DUR", time.Minute); got != 30*time.Second {
		t.Fatalf("expected 30s, got %s", got)
	}
}
