package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dentara/authcore"
)

const tenantColumns = `id, name, domain, active`

func scanTenant(row pgx.Row) (authcore.Tenant, error) {
	var t authcore.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.Tenant{}, authcore.ErrTenantNotFound
	}
	return t, err
}

func (s *Store) FindTenantByDomain(ctx context.Context, domain string) (authcore.Tenant, error) {
	var tenant authcore.Tenant
	err := s.withRetry(ctx, "find tenant by domain", func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx,
			`SELECT `+tenantColumns+` FROM tenants WHERE domain = lower($1)`, domain)
		var err error
		tenant, err = scanTenant(row)
		return err
	})
	return tenant, err
}

func (s *Store) FindTenantByID(ctx context.Context, tenantID string) (authcore.Tenant, error) {
	var tenant authcore.Tenant
	err := s.withRetry(ctx, "find tenant by id", func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx,
			`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, tenantID)
		var err error
		tenant, err = scanTenant(row)
		return err
	})
	return tenant, err
}

const principalColumns = `id, tenant_id, email, password_hash, role, active, email_verified, created_at, updated_at`

func scanPrincipal(row pgx.Row) (authcore.Principal, error) {
	var p authcore.Principal
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Email, &p.PasswordHash, &p.Role,
		&p.Active, &p.EmailVerified, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.Principal{}, authcore.ErrUserNotFound
	}
	return p, err
}

func (s *Store) FindPrincipalByEmail(ctx context.Context, tenantID, email string) (authcore.Principal, error) {
	var principal authcore.Principal
	err := s.withRetry(ctx, "find principal by email", func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx,
			`SELECT `+principalColumns+` FROM users WHERE tenant_id = $1 AND email = lower($2)`,
			tenantID, email)
		var err error
		principal, err = scanPrincipal(row)
		return err
	})
	return principal, err
}

func (s *Store) FindPrincipalByID(ctx context.Context, userID string) (authcore.Principal, error) {
	var principal authcore.Principal
	err := s.withRetry(ctx, "find principal by id", func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx,
			`SELECT `+principalColumns+` FROM users WHERE id = $1`, userID)
		var err error
		principal, err = scanPrincipal(row)
		return err
	})
	return principal, err
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	return s.withRetry(ctx, "update password hash", func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
			userID, passwordHash)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return authcore.ErrUserNotFound
		}
		return nil
	})
}

func (s *Store) SetEmailVerified(ctx context.Context, userID string, verified bool) error {
	return s.withRetry(ctx, "set email verified", func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx,
			`UPDATE users SET email_verified = $2, updated_at = now() WHERE id = $1`,
			userID, verified)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return authcore.ErrUserNotFound
		}
		return nil
	})
}

func (s *Store) SetActive(ctx context.Context, userID string, active bool) error {
	return s.withRetry(ctx, "set active", func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx,
			`UPDATE users SET active = $2, updated_at = now() WHERE id = $1`,
			userID, active)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return authcore.ErrUserNotFound
		}
		return nil
	})
}

// CreateTenantWithAdmin inserts the tenant and its first admin in one
// transaction, so a duplicate admin email rolls the tenant back too.
func (s *Store) CreateTenantWithAdmin(ctx context.Context, tenant authcore.Tenant, admin authcore.Principal) error {
	return s.withRetry(ctx, "create tenant with admin", func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx,
				`INSERT INTO tenants (id, name, domain, active) VALUES ($1, $2, lower($3), $4)`,
				tenant.ID, tenant.Name, tenant.Domain, tenant.Active)
			if err != nil {
				return mapUnique(err)
			}

			createdAt := admin.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now()
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO users
					(id, tenant_id, email, password_hash, role, active, email_verified, created_at, updated_at)
				 VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8, $8)`,
				admin.ID, admin.TenantID, admin.Email, admin.PasswordHash,
				admin.Role, admin.Active, admin.EmailVerified, createdAt)
			return mapUnique(err)
		})
	})
}
