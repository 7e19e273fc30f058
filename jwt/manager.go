// Package jwt signs and verifies the short-lived access tokens. Refresh and
// single-use tokens are deliberately not JWTs; they are opaque store-backed
// tokens, so compromise of the signing secret alone cannot forge them.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the payload of an access token: the principal snapshot
// taken at issue time plus the registered expiry/issued-at claims. It is
// never persisted.
type AccessClaims struct {
	UserID   string `json:"uid"`
	TenantID string `json:"tid"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Config holds the signing material and token shape.
//
// Config instances are set once at startup and treated as immutable.
type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
}

// Manager issues and parses access tokens with a single symmetric secret
// and a single algorithm (HS256). Safe for concurrent use.
type Manager struct {
	config Config
}

var (
	// ErrTokenInvalid covers every parse/verification failure; callers do
	// not learn whether the signature, shape, or expiry was at fault.
	ErrTokenInvalid = errors.New("invalid access token")
)

// NewManager validates cfg and returns a Manager. A missing secret is a
// configuration error surfaced here so the process fails at startup, never
// at request time.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: signing secret is required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("jwt: invalid access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway")
	}
	return &Manager{config: cfg}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

// Sign issues a signed access token for the given principal snapshot with
// expiry now+AccessTTL. CPU-bound, no side effects.
func (m *Manager) Sign(userID, tenantID, email, role string, now time.Time) (string, error) {
	claims := AccessClaims{
		UserID:   userID,
		TenantID: tenantID,
		Email:    email,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}

// Parse verifies signature, algorithm, issuer, and expiry, and returns the
// decoded claims. Every failure maps to ErrTokenInvalid.
func (m *Manager) Parse(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Expiry extracts the exp claim without verifying the signature. Used only
// to size the blacklist TTL of a token being revoked; it must work even for
// tokens the verifier would reject, since logout is best-effort.
func (m *Manager) Expiry(tokenStr string) (time.Time, error) {
	var claims AccessClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, &claims); err != nil {
		return time.Time{}, ErrTokenInvalid
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrTokenInvalid
	}
	return claims.ExpiresAt.Time, nil
}
