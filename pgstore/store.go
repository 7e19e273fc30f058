// Package pgstore implements the credential and token stores on
// PostgreSQL with pgx. SQL is hand-written; the schema lives in
// migrations/schema.sql.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dentara/authcore"
)

const (
	maxAttempts  = 3
	retryBackoff = 100 * time.Millisecond
)

// Store implements authcore.CredentialStore and authcore.TokenStore on a
// pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

var (
	_ authcore.CredentialStore = (*Store)(nil)
	_ authcore.TokenStore      = (*Store)(nil)
)

// New wraps pool. The pool's lifecycle belongs to the caller.
func New(pool *pgxpool.Pool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log}
}

// retryable reports whether err is worth a second attempt: errors pgx
// guarantees never reached the server, plus transport timeouts. Anything
// that may have executed is not retried, so non-idempotent statements
// cannot double-apply.
func retryable(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// withRetry runs op up to maxAttempts times with doubling backoff. A
// still-failing transient error comes back wrapped in ErrStoreUnavailable.
func (s *Store) withRetry(ctx context.Context, name string, op func(context.Context) error) error {
	backoff := retryBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op(ctx)
		if err == nil || !retryable(err) {
			return err
		}
		s.log.Warn("transient store error",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %s: %v", authcore.ErrStoreUnavailable, name, err)
}

const (
	pgUniqueViolation = "23505"

	constraintTenantDomain = "tenants_domain_key"
	constraintUserEmail    = "users_tenant_id_email_key"
)

// mapUnique translates unique-constraint violations into the domain
// conflict errors. Other errors pass through unchanged.
func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintTenantDomain:
		return authcore.ErrDomainTaken
	case constraintUserEmail:
		return authcore.ErrEmailTaken
	}
	return err
}
