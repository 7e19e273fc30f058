package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, loaded from the environment. Every
// duration accepts Go duration syntax ("15m", "168h").
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	JWTSecret            string        `env:"JWT_SECRET"`
	JWTIssuer            string        `env:"JWT_ISSUER" envDefault:"authcore"`
	AccessTTL            time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL           time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`
	PasswordResetTTL     time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`
	EmailVerificationTTL time.Duration `env:"EMAIL_VERIFICATION_TTL" envDefault:"24h"`

	// RevokeOnReuse escalates refresh-token reuse from a single rejected
	// request to revocation of every live token for that user.
	RevokeOnReuse bool `env:"REFRESH_REVOKE_ON_REUSE" envDefault:"false"`
	// BlacklistFailClosed rejects access tokens when the revocation cache
	// is unreachable instead of letting them through.
	BlacklistFailClosed bool `env:"BLACKLIST_FAIL_CLOSED" envDefault:"false"`
}

// LoadConfig reads the environment and validates the result.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the services would refuse anyway, so the
// process fails at startup rather than on the first request.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.AccessTTL <= 0 {
		return errors.New("config: JWT_ACCESS_TTL must be positive")
	}
	if c.RefreshTTL <= 0 {
		return errors.New("config: JWT_REFRESH_TTL must be positive")
	}
	if c.PasswordResetTTL <= 0 {
		return errors.New("config: PASSWORD_RESET_TTL must be positive")
	}
	if c.EmailVerificationTTL <= 0 {
		return errors.New("config: EMAIL_VERIFICATION_TTL must be positive")
	}
	return nil
}

// Production reports whether the process runs with production settings;
// it selects the logger profile and nothing else.
func (c Config) Production() bool {
	return c.Env == "production"
}
