package authcore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dentara/authcore/internal/metrics"
	"github.com/dentara/authcore/password"
)

// AuthService implements the credential-facing flows: login, logout,
// refresh, password change/reset, email verification, and tenant
// registration. It composes the TokenService and never touches token
// records directly.
type AuthService struct {
	creds   CredentialStore
	tokens  *TokenService
	hasher  *password.Hasher
	mailer  Mailer
	log     *zap.Logger
	metrics *metrics.Metrics

	now func() time.Time
}

// NewAuthService wires an AuthService. mailer may be nil; flows that send
// mail then skip the send.
func NewAuthService(creds CredentialStore, tokens *TokenService, hasher *password.Hasher, mailer Mailer, log *zap.Logger, m *metrics.Metrics) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if mailer == nil {
		mailer = NopMailer{}
	}
	return &AuthService{
		creds:   creds,
		tokens:  tokens,
		hasher:  hasher,
		mailer:  mailer,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// LoginResult is the successful outcome of Login and Refresh.
type LoginResult struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	User         SanitizedUser `json:"user"`
}

// Login authenticates email/pass within the tenant selected by domain and
// issues a fresh access/refresh pair. Every authentication failure
// (unknown domain, inactive tenant, unknown email, inactive user, wrong
// password) returns ErrInvalidCredentials; the distinction lives only in
// the logs.
func (s *AuthService) Login(ctx context.Context, domain, email, pass string) (LoginResult, error) {
	fail := func(reason string, fields ...zap.Field) (LoginResult, error) {
		s.metrics.Inc(metrics.LoginFailure)
		s.log.Info("login rejected", append(fields, zap.String("reason", reason), zap.String("domain", domain))...)
		return LoginResult{}, ErrInvalidCredentials
	}

	tenant, err := s.creds.FindTenantByDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return fail("unknown tenant")
		}
		return LoginResult{}, err
	}
	if !tenant.Active {
		return fail("tenant inactive", zap.String("tenant_id", tenant.ID))
	}

	principal, err := s.creds.FindPrincipalByEmail(ctx, tenant.ID, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn a hash anyway so unknown emails cost the same as wrong
			// passwords.
			_, _ = s.hasher.Verify(pass, dummyHash)
			return fail("unknown email", zap.String("tenant_id", tenant.ID))
		}
		return LoginResult{}, err
	}
	if !principal.Active {
		return fail("user inactive", zap.String("user_id", principal.ID))
	}

	ok, err := s.hasher.Verify(pass, principal.PasswordHash)
	if err != nil {
		s.log.Error("password verify failed", zap.String("user_id", principal.ID), zap.Error(err))
		return fail("unverifiable hash", zap.String("user_id", principal.ID))
	}
	if !ok {
		return fail("wrong password", zap.String("user_id", principal.ID))
	}

	result, err := s.issueSession(ctx, principal)
	if err != nil {
		return LoginResult{}, err
	}
	s.metrics.Inc(metrics.LoginSuccess)
	s.log.Info("login succeeded",
		zap.String("user_id", principal.ID),
		zap.String("tenant_id", tenant.ID),
	)
	return result, nil
}

// dummyHash is verified against when the email is unknown, to flatten the
// timing difference between unknown-email and wrong-password failures.
var dummyHash = fmt.Sprintf(
	"$argon2id$v=19$m=%d,t=2,p=2$%s$%s",
	64*1024,
	base64.StdEncoding.EncodeToString(make([]byte, 16)),
	base64.StdEncoding.EncodeToString(make([]byte, 32)),
)

func (s *AuthService) issueSession(ctx context.Context, p Principal) (LoginResult, error) {
	access, err := s.tokens.IssueAccessToken(p)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, _, err := s.tokens.IssueRefreshToken(ctx, p.ID)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         p.Sanitize(),
	}, nil
}

// Logout blacklists the presented access token and revokes the refresh
// token. Best-effort and idempotent: invalid or already-dead tokens do not
// fail the call.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		if err := s.tokens.BlacklistAccessToken(ctx, accessToken); err != nil {
			s.log.Warn("logout blacklist failed", zap.Error(err))
		}
	}
	if refreshToken != "" {
		if err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
			s.log.Warn("logout refresh revoke failed", zap.Error(err))
		}
	}
	s.metrics.Inc(metrics.Logout)
	return nil
}

// Refresh rotates refreshToken and issues a new access/refresh pair. The
// principal and tenant are re-read so a deactivation since login takes
// effect here; a deactivated principal additionally loses every live
// refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	newRefresh, rec, err := s.tokens.RotateRefreshToken(ctx, refreshToken)
	if err != nil {
		s.metrics.Inc(metrics.RefreshFailure)
		return LoginResult{}, err
	}

	principal, err := s.creds.FindPrincipalByID(ctx, rec.UserID)
	if err != nil {
		s.metrics.Inc(metrics.RefreshFailure)
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	tenantActive := true
	tenant, err := s.creds.FindTenantByID(ctx, principal.TenantID)
	if err != nil {
		if !errors.Is(err, ErrTenantNotFound) {
			s.metrics.Inc(metrics.RefreshFailure)
			return LoginResult{}, err
		}
		tenantActive = false
	} else {
		tenantActive = tenant.Active
	}

	if !principal.Active || !tenantActive {
		s.metrics.Inc(metrics.RefreshFailure)
		s.log.Info("refresh rejected for deactivated account",
			zap.String("user_id", principal.ID),
			zap.Bool("tenant_active", tenantActive),
		)
		if err := s.tokens.RevokeAllUserTokens(ctx, principal.ID); err != nil {
			s.log.Error("revoke on deactivation failed", zap.String("user_id", principal.ID), zap.Error(err))
		}
		return LoginResult{}, ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccessToken(principal)
	if err != nil {
		s.metrics.Inc(metrics.RefreshFailure)
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}

	s.metrics.Inc(metrics.RefreshSuccess)
	return LoginResult{
		AccessToken:  access,
		RefreshToken: newRefresh,
		User:         principal.Sanitize(),
	}, nil
}

// ChangePassword re-verifies the current password, stores the new hash,
// and revokes every live refresh token for the user. The access token the
// caller used stays valid until expiry; refresh is where the revocation
// bites.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPass, newPass string) error {
	principal, err := s.creds.FindPrincipalByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(currentPass, principal.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify current password: %w", err)
	}
	if !ok {
		s.metrics.Inc(metrics.PasswordChangeFailure)
		s.log.Info("password change rejected", zap.String("user_id", userID))
		return ErrInvalidCredentials
	}

	newHash, err := s.hasher.Hash(newPass)
	if err != nil {
		return err
	}
	if err := s.creds.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllUserTokens(ctx, userID); err != nil {
		s.log.Error("post-change token revocation failed", zap.String("user_id", userID), zap.Error(err))
	}

	s.metrics.Inc(metrics.PasswordChangeSuccess)
	s.log.Info("password changed", zap.String("user_id", userID))
	return nil
}

// RequestPasswordReset issues a reset token and mails it, but only if the
// account exists. It returns nil either way so the endpoint cannot be used
// to probe for registered emails.
func (s *AuthService) RequestPasswordReset(ctx context.Context, domain, email string) error {
	s.metrics.Inc(metrics.PasswordResetRequest)

	tenant, err := s.creds.FindTenantByDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil
		}
		return err
	}
	if !tenant.Active {
		return nil
	}

	principal, err := s.creds.FindPrincipalByEmail(ctx, tenant.ID, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}

	token, err := s.tokens.IssuePasswordResetToken(ctx, principal.ID)
	if err != nil {
		return err
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, principal.Email, token, tenant.Domain); err != nil {
		s.log.Error("password reset mail failed", zap.String("user_id", principal.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword redeems a reset token with a new password. Hashing happens
// before the consume so a weak password never burns the token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPass string) error {
	newHash, err := s.hasher.Hash(newPass)
	if err != nil {
		return err
	}
	userID, err := s.tokens.ConsumePasswordReset(ctx, token, newHash)
	if err != nil {
		return err
	}
	s.log.Info("password reset completed", zap.String("user_id", userID))
	return nil
}

// VerifyEmail redeems an email-verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.tokens.ConsumeEmailVerification(ctx, token)
	if err != nil {
		return err
	}
	s.log.Info("email verified", zap.String("user_id", userID))
	return nil
}

// RequestEmailVerification re-issues a verification token for an
// authenticated but unverified user.
func (s *AuthService) RequestEmailVerification(ctx context.Context, userID string) error {
	principal, err := s.creds.FindPrincipalByID(ctx, userID)
	if err != nil {
		return err
	}
	if principal.EmailVerified {
		return nil
	}

	tenant, err := s.creds.FindTenantByID(ctx, principal.TenantID)
	if err != nil {
		return err
	}

	token, err := s.tokens.IssueEmailVerificationToken(ctx, principal.ID)
	if err != nil {
		return err
	}
	if err := s.mailer.SendVerificationEmail(ctx, principal.Email, token, tenant.Domain); err != nil {
		s.log.Error("verification mail failed", zap.String("user_id", principal.ID), zap.Error(err))
	}
	return nil
}

// RegisterTenant creates a tenant and its first admin in one store
// transaction, then logs the admin in and kicks off email verification.
func (s *AuthService) RegisterTenant(ctx context.Context, name, domain, adminEmail, adminPass string) (LoginResult, error) {
	hash, err := s.hasher.Hash(adminPass)
	if err != nil {
		return LoginResult{}, err
	}

	now := s.now()
	tenant := Tenant{
		ID:     uuid.NewString(),
		Name:   name,
		Domain: strings.ToLower(domain),
		Active: true,
	}
	admin := Principal{
		ID:           uuid.NewString(),
		TenantID:     tenant.ID,
		Email:        strings.ToLower(adminEmail),
		PasswordHash: hash,
		Role:         RoleAdmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.creds.CreateTenantWithAdmin(ctx, tenant, admin); err != nil {
		return LoginResult{}, err
	}

	s.metrics.Inc(metrics.TenantRegistered)
	s.log.Info("tenant registered",
		zap.String("tenant_id", tenant.ID),
		zap.String("domain", tenant.Domain),
	)

	token, err := s.tokens.IssueEmailVerificationToken(ctx, admin.ID)
	if err != nil {
		s.log.Error("verification token issue failed", zap.String("user_id", admin.ID), zap.Error(err))
	} else if err := s.mailer.SendVerificationEmail(ctx, admin.Email, token, tenant.Domain); err != nil {
		s.log.Error("verification mail failed", zap.String("user_id", admin.ID), zap.Error(err))
	}

	return s.issueSession(ctx, admin)
}

// CurrentUser resolves the authenticated user's sanitized profile.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (SanitizedUser, error) {
	principal, err := s.creds.FindPrincipalByID(ctx, userID)
	if err != nil {
		return SanitizedUser{}, err
	}
	return principal.Sanitize(), nil
}
