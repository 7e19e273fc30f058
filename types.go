package authcore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Roles are a flat enum; authorization is plain string comparison against
// these values, nothing more.
const (
	RoleAdmin   = "admin"
	RoleDentist = "dentist"
	RoleStaff   = "staff"
	RolePatient = "patient"
)

// Tenant is an isolated organizational namespace. Domain is globally
// unique and is the only tenant selector accepted at login time. A
// deactivated tenant rejects every login for its principals.
type Tenant struct {
	ID     string
	Name   string
	Domain string
	Active bool
}

// Principal is a user account bound to exactly one tenant for its
// lifetime; TenantID never changes after creation. (TenantID, Email) is
// unique.
type Principal struct {
	ID            string
	TenantID      string
	Email         string
	PasswordHash  string
	Role          string
	Active        bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SanitizedUser is the principal view returned to clients. It never
// carries the password hash.
type SanitizedUser struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenantId"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"emailVerified"`
}

// Sanitize strips a principal down to its client-safe view.
func (p Principal) Sanitize() SanitizedUser {
	return SanitizedUser{
		ID:            p.ID,
		TenantID:      p.TenantID,
		Email:         p.Email,
		Role:          p.Role,
		EmailVerified: p.EmailVerified,
	}
}

// RefreshToken is the durable record behind one opaque refresh token.
// Only the sha256 of the token's secret half is stored. Revoked is
// one-way: once true it never transitions back.
type RefreshToken struct {
	ID         uuid.UUID
	UserID     string
	SecretHash [32]byte
	ExpiresAt  time.Time
	Revoked    bool
	RevokedAt  time.Time
	CreatedAt  time.Time
}

// TokenKind tags a single-use token with the one state change it may
// authorize.
type TokenKind uint8

const (
	KindPasswordReset TokenKind = iota + 1
	KindEmailVerification
)

// SingleUseToken authorizes exactly one sensitive state change. Used flips
// false→true once, atomically with that state change, and never back.
type SingleUseToken struct {
	ID         uuid.UUID
	UserID     string
	Kind       TokenKind
	SecretHash [32]byte
	ExpiresAt  time.Time
	Used       bool
	CreatedAt  time.Time
}

// CredentialStore is the consumed principal/tenant store. Implementations
// return ErrTenantNotFound / ErrUserNotFound for misses and ErrDomainTaken
// / ErrEmailTaken for unique violations.
type CredentialStore interface {
	FindTenantByDomain(ctx context.Context, domain string) (Tenant, error)
	FindTenantByID(ctx context.Context, tenantID string) (Tenant, error)
	FindPrincipalByEmail(ctx context.Context, tenantID, email string) (Principal, error)
	FindPrincipalByID(ctx context.Context, userID string) (Principal, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	SetEmailVerified(ctx context.Context, userID string, verified bool) error
	SetActive(ctx context.Context, userID string, active bool) error
	// CreateTenantWithAdmin creates the tenant and its first admin
	// principal in one transaction.
	CreateTenantWithAdmin(ctx context.Context, tenant Tenant, admin Principal) error
}

// TokenStore is the durable record of refresh and single-use tokens,
// owned by this module and pluggable behind this interface.
//
// RevokeRefreshToken is the rotation linearization point: it must be a
// conditional revoked=false→true update and report whether this call won.
// The Consume* operations flip used=false→true atomically with the state
// change the token authorizes, in one store transaction.
type TokenStore interface {
	CreateRefreshToken(ctx context.Context, token RefreshToken) error
	GetRefreshToken(ctx context.Context, id uuid.UUID) (RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	RevokeAllUserTokens(ctx context.Context, userID string, at time.Time) error

	CreateSingleUseToken(ctx context.Context, token SingleUseToken) error
	// ConsumePasswordReset marks the token used, updates the principal's
	// password hash, and revokes every live refresh token for that user.
	// Returns the user id the token belonged to.
	ConsumePasswordReset(ctx context.Context, id uuid.UUID, secretHash [32]byte, newPasswordHash string, at time.Time) (string, error)
	// ConsumeEmailVerification marks the token used and sets the
	// principal's email_verified flag. Returns the user id.
	ConsumeEmailVerification(ctx context.Context, id uuid.UUID, secretHash [32]byte, at time.Time) (string, error)
}

// RevocationCache is the shared fast key-existence store used only for
// access-token blacklisting. Entries carry a TTL and are never enumerated.
type RevocationCache interface {
	Set(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Mailer is the consumed email collaborator. Calls are fire-and-forget
// from this module's perspective: a send failure is logged, never
// surfaced to the requester.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token, tenantDomain string) error
	SendPasswordResetEmail(ctx context.Context, email, token, tenantDomain string) error
}
