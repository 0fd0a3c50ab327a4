package config

import (
	"os"
	"testing"
	"time"
)

func setSecrets(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("SIGEPIC_JWT_SECRET", "access-secret")
	os.Setenv("SIGEPIC_JWT_REFRESH_SECRET", "refresh-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setSecrets(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":8080")
	}
	if cfg.JWTExpiry != "168h" {
		t.Errorf("JWTExpiry = %q, want %q", cfg.JWTExpiry, "168h")
	}
	if cfg.JWTRefreshExpiry != "720h" {
		t.Errorf("JWTRefreshExpiry = %q, want %q", cfg.JWTRefreshExpiry, "720h")
	}
	if cfg.MaxLoginAttempts != 3 {
		t.Errorf("MaxLoginAttempts = %d, want 3", cfg.MaxLoginAttempts)
	}
	if cfg.LockoutMinutes != 30 {
		t.Errorf("LockoutMinutes = %d, want 30", cfg.LockoutMinutes)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if got := cfg.AccessTTL(); got != 168*time.Hour {
		t.Errorf("AccessTTL = %v, want 168h", got)
	}
	if got := cfg.RefreshTTL(); got != 720*time.Hour {
		t.Errorf("RefreshTTL = %v, want 720h", got)
	}
	if got := cfg.LockoutWindow(); got != 30*time.Minute {
		t.Errorf("LockoutWindow = %v, want 30m", got)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	setSecrets(t)
	os.Setenv("SIGEPIC_ADDR", ":9090")
	os.Setenv("SIGEPIC_MAX_LOGIN_ATTEMPTS", "5")
	os.Setenv("SIGEPIC_LOCKOUT_MINUTES", "10")
	os.Setenv("SIGEPIC_JWT_EXPIRY", "24h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":9090")
	}
	if cfg.MaxLoginAttempts != 5 {
		t.Errorf("MaxLoginAttempts = %d, want 5", cfg.MaxLoginAttempts)
	}
	if got := cfg.LockoutWindow(); got != 10*time.Minute {
		t.Errorf("LockoutWindow = %v, want 10m", got)
	}
	if got := cfg.AccessTTL(); got != 24*time.Hour {
		t.Errorf("AccessTTL = %v, want 24h", got)
	}
}

func TestLoad_MissingSecrets(t *testing.T) {
	os.Clearenv()
	if _, err := Load(); err == nil {
		t.Fatal("expected error when secrets are unset")
	}

	os.Setenv("SIGEPIC_JWT_SECRET", "same")
	os.Setenv("SIGEPIC_JWT_REFRESH_SECRET", "same")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for identical secrets")
	}
}

func TestLoad_InvalidThresholds(t *testing.T) {
	setSecrets(t)
	os.Setenv("SIGEPIC_MAX_LOGIN_ATTEMPTS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero attempt threshold")
	}

	setSecrets(t)
	os.Setenv("SIGEPIC_BCRYPT_COST", "99")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range bcrypt cost")
	}
}
