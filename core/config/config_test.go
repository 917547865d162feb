package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SlotInterval != 10*time.Second {
		t.Errorf("SlotInterval = %v, want 10s", cfg.SlotInterval)
	}
	if cfg.ActiveDelegates != 21 {
		t.Errorf("ActiveDelegates = %d, want 21", cfg.ActiveDelegates)
	}
	if cfg.MaxTxPerBlock != 200 {
		t.Errorf("MaxTxPerBlock = %d, want 200", cfg.MaxTxPerBlock)
	}
	if cfg.SaltLength != 16 {
		t.Errorf("SaltLength = %d, want 16", cfg.SaltLength)
	}
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	os.Setenv("NOVACHAIN_ACTIVE_DELEGATES", "5")
	defer os.Unsetenv("NOVACHAIN_ACTIVE_DELEGATES")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ActiveDelegates != 5 {
		t.Errorf("ActiveDelegates = %d, want 5 from environment", cfg.ActiveDelegates)
	}
}

func TestLoadToleratesMissingConfigFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err != nil {
		t.Fatalf("Load with missing file should not error, got: %v", err)
	}
}
