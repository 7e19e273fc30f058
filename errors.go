package authcore

import (
	"errors"

	"github.com/dentara/authcore/password"
)

var (
	// ErrInvalidCredentials is the uniform login failure. Wrong password,
	// unknown email, and inactive tenant all surface as this error so the
	// response never leaks which check failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTenantNotFound marks an unknown or deactivated tenant. Internal
	// only: the auth service folds it into ErrInvalidCredentials before
	// returning, but logs it distinctly.
	ErrTenantNotFound = errors.New("tenant not found or inactive")
	// ErrUserNotFound marks a missing principal on an authenticated path
	// (change password, refresh re-read).
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenInvalid covers missing, malformed, expired, bad-signature,
	// and blacklisted access tokens.
	ErrTokenInvalid = errors.New("invalid access token")
	// ErrRefreshInvalid covers malformed, unknown, and secret-mismatched
	// refresh tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshExpired is an expired refresh token; the record is revoked
	// lazily when this is detected.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrRefreshReuse is a revoked refresh token presented again. Callers
	// treat it as unauthorized; the service logs it as a compromise signal.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrSingleUseInvalid covers unknown, expired, mismatched, and
	// already-consumed password-reset/email-verification tokens.
	ErrSingleUseInvalid = errors.New("invalid or already used token")
	// ErrTokenNotFound is the store-level miss for a refresh token record.
	ErrTokenNotFound = errors.New("token record not found")
	// ErrDomainTaken rejects tenant registration on a duplicate domain.
	ErrDomainTaken = errors.New("domain already registered")
	// ErrEmailTaken rejects principal creation on a duplicate
	// (tenant, email) pair.
	ErrEmailTaken = errors.New("email already registered")
	// ErrStoreUnavailable means the durable token/credential store stayed
	// unreachable after bounded retries.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrCacheUnavailable means the revocation cache could not be written.
	// Reads never surface it; they follow the fail-open policy instead.
	ErrCacheUnavailable = errors.New("revocation cache unavailable")
)

// Kind buckets every service error for the HTTP boundary. Internal detail
// stays in logs; clients only ever see the kind's generic message.
type Kind int

const (
	KindBadRequest Kind = iota
	KindUnauthorized
	KindNotFound
	KindConflict
	KindInternal
)

// KindOf classifies err. Unknown errors are internal: the boundary must
// never guess a client-facing meaning for an error it does not own.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrRefreshExpired),
		errors.Is(err, ErrRefreshReuse):
		return KindUnauthorized
	case errors.Is(err, ErrTenantNotFound):
		return KindNotFound
	case errors.Is(err, ErrDomainTaken), errors.Is(err, ErrEmailTaken):
		return KindConflict
	case errors.Is(err, ErrSingleUseInvalid),
		errors.Is(err, password.ErrPasswordTooShort):
		// Single-use tokens are redeemed by unauthenticated callers; a bad
		// token is a bad request, not a failed authentication.
		return KindBadRequest
	default:
		return KindInternal
	}
}
