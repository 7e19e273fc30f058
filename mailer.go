package authcore

import (
	"context"

	"go.uber.org/zap"
)

// NopMailer discards every send. Useful in tests and in deployments where
// a separate worker owns outbound mail.
type NopMailer struct{}

func (NopMailer) SendVerificationEmail(context.Context, string, string, string) error  { return nil }
func (NopMailer) SendPasswordResetEmail(context.Context, string, string, string) error { return nil }

// LogMailer logs each send instead of delivering it. The development
// default: the raw token lands in the log so flows can be exercised
// end to end without an SMTP dependency.
type LogMailer struct {
	Log *zap.Logger
}

func (m LogMailer) SendVerificationEmail(_ context.Context, email, token, tenantDomain string) error {
	m.Log.Info("verification email",
		zap.String("email", email),
		zap.String("tenant_domain", tenantDomain),
		zap.String("token", token),
	)
	return nil
}

func (m LogMailer) SendPasswordResetEmail(_ context.Context, email, token, tenantDomain string) error {
	m.Log.Info("password reset email",
		zap.String("email", email),
		zap.String("tenant_domain", tenantDomain),
		zap.String("token", token),
	)
	return nil
}
