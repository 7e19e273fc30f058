package authcore

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dentara/authcore/internal"
	"github.com/dentara/authcore/internal/metrics"
	"github.com/dentara/authcore/jwt"
)

// TokenService owns the full token lifecycle: access-token issue and
// validation, opaque refresh tokens with single-winner rotation, the
// access-token blacklist, and single-use password-reset / email-verification
// tokens. It holds no mutable state of its own; everything durable lives in
// the TokenStore and RevocationCache it was constructed with.
type TokenService struct {
	jwt     *jwt.Manager
	store   TokenStore
	cache   RevocationCache
	log     *zap.Logger
	metrics *metrics.Metrics

	refreshTTL    time.Duration
	resetTTL      time.Duration
	verifyTTL     time.Duration
	revokeOnReuse bool
	failClosed    bool

	now func() time.Time
}

// NewTokenService wires a TokenService from its collaborators. cache may be
// nil, which disables blacklisting entirely (every token stays valid until
// expiry).
func NewTokenService(manager *jwt.Manager, store TokenStore, cache RevocationCache, cfg Config, log *zap.Logger, m *metrics.Metrics) *TokenService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenService{
		jwt:           manager,
		store:         store,
		cache:         cache,
		log:           log,
		metrics:       m,
		refreshTTL:    cfg.RefreshTTL,
		resetTTL:      cfg.PasswordResetTTL,
		verifyTTL:     cfg.EmailVerificationTTL,
		revokeOnReuse: cfg.RevokeOnReuse,
		failClosed:    cfg.BlacklistFailClosed,
		now:           time.Now,
	}
}

// blacklistKey derives the cache key for an access token. The raw token
// never touches the cache.
func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueAccessToken signs a fresh access token carrying p's current snapshot.
func (s *TokenService) IssueAccessToken(p Principal) (string, error) {
	return s.jwt.Sign(p.ID, p.TenantID, p.Email, p.Role, s.now())
}

// IssueRefreshToken mints an opaque refresh token for userID and persists
// its record. The returned string is the only copy of the secret.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID string) (string, RefreshToken, error) {
	secret, err := internal.NewSecret()
	if err != nil {
		return "", RefreshToken{}, fmt.Errorf("generate refresh secret: %w", err)
	}

	now := s.now()
	rec := RefreshToken{
		ID:         uuid.New(),
		UserID:     userID,
		SecretHash: internal.HashSecret(secret),
		ExpiresAt:  now.Add(s.refreshTTL),
		CreatedAt:  now,
	}
	if err := s.store.CreateRefreshToken(ctx, rec); err != nil {
		return "", RefreshToken{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return internal.EncodeToken(rec.ID, secret), rec, nil
}

// VerifyRefreshToken resolves a raw refresh token to its live record.
// Revoked tokens surface as ErrRefreshReuse; expired ones are revoked
// lazily here and surface as ErrRefreshExpired.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, raw string) (RefreshToken, error) {
	id, secret, err := internal.DecodeToken(raw)
	if err != nil {
		return RefreshToken{}, ErrRefreshInvalid
	}

	rec, err := s.store.GetRefreshToken(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return RefreshToken{}, ErrRefreshInvalid
		}
		return RefreshToken{}, err
	}

	hash := internal.HashSecret(secret)
	if subtle.ConstantTimeCompare(rec.SecretHash[:], hash[:]) != 1 {
		return RefreshToken{}, ErrRefreshInvalid
	}

	if rec.Revoked {
		s.metrics.Inc(metrics.RefreshReuseDetected)
		s.log.Warn("refresh token reuse detected",
			zap.String("token_id", rec.ID.String()),
			zap.String("user_id", rec.UserID),
		)
		if s.revokeOnReuse {
			if err := s.store.RevokeAllUserTokens(ctx, rec.UserID, s.now()); err != nil {
				s.log.Error("revoke on reuse failed", zap.String("user_id", rec.UserID), zap.Error(err))
			} else {
				s.metrics.Inc(metrics.TokensRevokedAll)
			}
		}
		return RefreshToken{}, ErrRefreshReuse
	}

	if s.now().After(rec.ExpiresAt) {
		// Lazy expiry: mark the record revoked so a later presentation is
		// classified as reuse, not as a second expiry.
		if _, err := s.store.RevokeRefreshToken(ctx, rec.ID, s.now()); err != nil {
			s.log.Error("lazy expiry revoke failed", zap.String("token_id", rec.ID.String()), zap.Error(err))
		}
		return RefreshToken{}, ErrRefreshExpired
	}

	return rec, nil
}

// RotateRefreshToken atomically retires raw and issues its replacement.
// Under concurrent presentations of the same token exactly one caller gets
// a new token; every other caller gets ErrRefreshReuse.
func (s *TokenService) RotateRefreshToken(ctx context.Context, raw string) (string, RefreshToken, error) {
	rec, err := s.VerifyRefreshToken(ctx, raw)
	if err != nil {
		return "", RefreshToken{}, err
	}

	won, err := s.store.RevokeRefreshToken(ctx, rec.ID, s.now())
	if err != nil {
		return "", RefreshToken{}, fmt.Errorf("retire refresh token: %w", err)
	}
	if !won {
		// Lost the race: somebody else rotated this token between our read
		// and the conditional update.
		s.metrics.Inc(metrics.RefreshReuseDetected)
		s.log.Warn("refresh rotation race lost",
			zap.String("token_id", rec.ID.String()),
			zap.String("user_id", rec.UserID),
		)
		return "", RefreshToken{}, ErrRefreshReuse
	}

	return s.IssueRefreshToken(ctx, rec.UserID)
}

// RevokeRefreshToken invalidates raw if it resolves to a live record.
// Idempotent: malformed, unknown, and already-revoked tokens all return nil.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, raw string) error {
	rec, err := s.VerifyRefreshToken(ctx, raw)
	if err != nil {
		if errors.Is(err, ErrRefreshInvalid) || errors.Is(err, ErrRefreshReuse) || errors.Is(err, ErrRefreshExpired) {
			return nil
		}
		return err
	}
	if _, err := s.store.RevokeRefreshToken(ctx, rec.ID, s.now()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllUserTokens invalidates every live refresh token for userID.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	if err := s.store.RevokeAllUserTokens(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}
	s.metrics.Inc(metrics.TokensRevokedAll)
	return nil
}

// BlacklistAccessToken marks token revoked until its natural expiry. A
// token already past expiry is a no-op. The signature is not verified:
// logout is best-effort and blacklisting garbage is harmless.
func (s *TokenService) BlacklistAccessToken(ctx context.Context, token string) error {
	if s.cache == nil {
		return nil
	}
	exp, err := s.jwt.Expiry(token)
	if err != nil {
		return nil
	}
	remaining := exp.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, blacklistKey(token), remaining); err != nil {
		return err
	}
	return nil
}

// IsAccessTokenBlacklisted reports whether token was revoked before expiry.
// When the cache is unreachable the configured policy decides: fail-open
// treats the token as live, fail-closed rejects it.
func (s *TokenService) IsAccessTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	found, err := s.cache.Exists(ctx, blacklistKey(token))
	if err != nil {
		if s.failClosed {
			return true, err
		}
		s.metrics.Inc(metrics.BlacklistFailOpen)
		s.log.Warn("revocation cache unreachable, failing open", zap.Error(err))
		return false, nil
	}
	if found {
		s.metrics.Inc(metrics.BlacklistHit)
	}
	return found, nil
}

// ValidateAccessToken is the middleware entry point: blacklist check first,
// then full signature and claim verification. Every failure is
// ErrTokenInvalid.
func (s *TokenService) ValidateAccessToken(ctx context.Context, token string) (*jwt.AccessClaims, error) {
	blacklisted, err := s.IsAccessTokenBlacklisted(ctx, token)
	if err != nil && s.failClosed {
		return nil, ErrTokenInvalid
	}
	if blacklisted {
		return nil, ErrTokenInvalid
	}

	claims, err := s.jwt.Parse(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) issueSingleUse(ctx context.Context, userID string, kind TokenKind, ttl time.Duration) (string, error) {
	secret, err := internal.NewSecret()
	if err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}

	now := s.now()
	rec := SingleUseToken{
		ID:         uuid.New(),
		UserID:     userID,
		Kind:       kind,
		SecretHash: internal.HashSecret(secret),
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
	if err := s.store.CreateSingleUseToken(ctx, rec); err != nil {
		return "", fmt.Errorf("persist single-use token: %w", err)
	}
	return internal.EncodeToken(rec.ID, secret), nil
}

// IssuePasswordResetToken mints a single-use password-reset token.
func (s *TokenService) IssuePasswordResetToken(ctx context.Context, userID string) (string, error) {
	return s.issueSingleUse(ctx, userID, KindPasswordReset, s.resetTTL)
}

// IssueEmailVerificationToken mints a single-use email-verification token.
func (s *TokenService) IssueEmailVerificationToken(ctx context.Context, userID string) (string, error) {
	return s.issueSingleUse(ctx, userID, KindEmailVerification, s.verifyTTL)
}

// ConsumePasswordReset redeems a reset token: in one store transaction the
// token is marked used, the password hash is replaced, and every live
// refresh token for the user is revoked. Returns the affected user id.
func (s *TokenService) ConsumePasswordReset(ctx context.Context, raw, newPasswordHash string) (string, error) {
	id, secret, err := internal.DecodeToken(raw)
	if err != nil {
		return "", ErrSingleUseInvalid
	}
	userID, err := s.store.ConsumePasswordReset(ctx, id, internal.HashSecret(secret), newPasswordHash, s.now())
	if err != nil {
		return "", err
	}
	s.metrics.Inc(metrics.PasswordResetConfirm)
	return userID, nil
}

// ConsumeEmailVerification redeems a verification token, atomically marking
// it used and the user's email verified. Returns the affected user id.
func (s *TokenService) ConsumeEmailVerification(ctx context.Context, raw string) (string, error) {
	id, secret, err := internal.DecodeToken(raw)
	if err != nil {
		return "", ErrSingleUseInvalid
	}
	userID, err := s.store.ConsumeEmailVerification(ctx, id, internal.HashSecret(secret), s.now())
	if err != nil {
		return "", err
	}
	s.metrics.Inc(metrics.EmailVerified)
	return userID, nil
}

// Metrics exposes the counter set for the exposition endpoint.
func (s *TokenService) Metrics() *metrics.Metrics {
	return s.metrics
}
