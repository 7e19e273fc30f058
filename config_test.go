package authcore

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-test-secret-test-1234")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("AccessTTL = %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 168*time.Hour {
		t.Fatalf("RefreshTTL = %v", cfg.RefreshTTL)
	}
	if cfg.BlacklistFailClosed || cfg.RevokeOnReuse {
		t.Fatal("hardening flags should default off")
	}
	if cfg.Production() {
		t.Fatal("default env should not be production")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-test-secret-test-1234")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("REFRESH_REVOKE_ON_REUSE", "true")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AccessTTL != 5*time.Minute {
		t.Fatalf("AccessTTL = %v", cfg.AccessTTL)
	}
	if !cfg.RevokeOnReuse {
		t.Fatal("REFRESH_REVOKE_ON_REUSE not honored")
	}
	if !cfg.Production() {
		t.Fatal("APP_ENV=production not honored")
	}
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing JWT_SECRET")
	}
}

func TestValidateRejectsNonPositiveTTLs(t *testing.T) {
	base := Config{
		JWTSecret:            "secret",
		AccessTTL:            time.Minute,
		RefreshTTL:           time.Hour,
		PasswordResetTTL:     time.Hour,
		EmailVerificationTTL: time.Hour,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	for name, mutate := range map[string]func(*Config){
		"access":  func(c *Config) { c.AccessTTL = 0 },
		"refresh": func(c *Config) { c.RefreshTTL = -time.Hour },
		"reset":   func(c *Config) { c.PasswordResetTTL = 0 },
		"verify":  func(c *Config) { c.EmailVerificationTTL = 0 },
	} {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: zero TTL accepted", name)
		}
	}
}
