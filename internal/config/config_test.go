package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with defaults should succeed: %v", err)
	}

	if cfg.Feed.Interval != 5*time.Second {
		t.Fatalf("unexpected feed interval %s", cfg.Feed.Interval)
	}
	if len(cfg.Feed.Assets) != 2 {
		t.Fatalf("unexpected assets %v", cfg.Feed.Assets)
	}
	if len(cfg.Betting.Durations) != 2 || cfg.Betting.Durations[0] != time.Minute || cfg.Betting.Durations[1] != 15*time.Minute {
		t.Fatalf("unexpected durations %v", cfg.Betting.Durations)
	}
	if cfg.Betting.PayoutMultiplier != 2.0 {
		t.Fatalf("unexpected payout multiplier %f", cfg.Betting.PayoutMultiplier)
	}
	if cfg.Betting.AlignWindows {
		t.Fatal("align_windows should default to false")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
feed:
  interval: 10s
betting:
  durations: [30s, 5m]
  history_size: 7
  align_windows: true
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load should succeed: %v", err)
	}

	if cfg.Feed.Interval != 10*time.Second {
		t.Fatalf("unexpected interval %s", cfg.Feed.Interval)
	}
	if len(cfg.Betting.Durations) != 2 || cfg.Betting.Durations[0] != 30*time.Second {
		t.Fatalf("unexpected durations %v", cfg.Betting.Durations)
	}
	if cfg.Betting.HistorySize != 7 {
		t.Fatalf("unexpected history size %d", cfg.Betting.HistorySize)
	}
	if !cfg.Betting.AlignWindows {
		t.Fatal("align_windows should be enabled")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with defaults should succeed: %v", err)
	}

	cfg.Betting.PayoutMultiplier = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero payout multiplier should fail validation")
	}

	cfg, _ = Load("")
	cfg.Feed.Interval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero feed interval should fail validation")
	}

	cfg, _ = Load("")
	cfg.Notify.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("telegram without token should fail validation")
	}
}
