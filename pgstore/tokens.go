package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dentara/authcore"
)

func (s *Store) CreateRefreshToken(ctx context.Context, token authcore.RefreshToken) error {
	return s.withRetry(ctx, "create refresh token", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO refresh_tokens (id, user_id, secret_hash, expires_at, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			token.ID, token.UserID, token.SecretHash[:], token.ExpiresAt, token.CreatedAt)
		return err
	})
}

func (s *Store) GetRefreshToken(ctx context.Context, id uuid.UUID) (authcore.RefreshToken, error) {
	var token authcore.RefreshToken
	err := s.withRetry(ctx, "get refresh token", func(ctx context.Context) error {
		var secretHash []byte
		var revokedAt *time.Time
		err := s.pool.QueryRow(ctx,
			`SELECT id, user_id, secret_hash, expires_at, revoked, revoked_at, created_at
			 FROM refresh_tokens WHERE id = $1`, id).
			Scan(&token.ID, &token.UserID, &secretHash, &token.ExpiresAt,
				&token.Revoked, &revokedAt, &token.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return authcore.ErrTokenNotFound
		}
		if err != nil {
			return err
		}
		copy(token.SecretHash[:], secretHash)
		if revokedAt != nil {
			token.RevokedAt = *revokedAt
		}
		return nil
	})
	if err != nil {
		return authcore.RefreshToken{}, err
	}
	return token, nil
}

// RevokeRefreshToken is the rotation linearization point. The conditional
// UPDATE flips revoked exactly once per token; RowsAffected tells the
// caller whether it was this call that won.
func (s *Store) RevokeRefreshToken(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	var won bool
	err := s.withRetry(ctx, "revoke refresh token", func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx,
			`UPDATE refresh_tokens SET revoked = true, revoked_at = $2
			 WHERE id = $1 AND revoked = false`, id, at)
		if err != nil {
			return err
		}
		won = tag.RowsAffected() == 1
		if !won {
			// Distinguish "lost the race" from "no such token".
			var exists bool
			if err := s.pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE id = $1)`, id).
				Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return authcore.ErrTokenNotFound
			}
		}
		return nil
	})
	return won, err
}

func (s *Store) RevokeAllUserTokens(ctx context.Context, userID string, at time.Time) error {
	return s.withRetry(ctx, "revoke all user tokens", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`UPDATE refresh_tokens SET revoked = true, revoked_at = $2
			 WHERE user_id = $1 AND revoked = false`, userID, at)
		return err
	})
}

func (s *Store) CreateSingleUseToken(ctx context.Context, token authcore.SingleUseToken) error {
	return s.withRetry(ctx, "create single-use token", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO single_use_tokens (id, user_id, kind, secret_hash, expires_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			token.ID, token.UserID, int16(token.Kind), token.SecretHash[:],
			token.ExpiresAt, token.CreatedAt)
		return err
	})
}

// consumeSingleUse flips used=false→true for a matching live token inside
// tx and returns the owning user id. The WHERE clause carries the whole
// validity check so two concurrent redeemers cannot both pass.
func consumeSingleUse(ctx context.Context, tx pgx.Tx, id uuid.UUID, kind authcore.TokenKind, secretHash [32]byte, at time.Time) (string, error) {
	var userID string
	err := tx.QueryRow(ctx,
		`UPDATE single_use_tokens SET used = true
		 WHERE id = $1 AND kind = $2 AND secret_hash = $3 AND used = false AND expires_at > $4
		 RETURNING user_id`,
		id, int16(kind), secretHash[:], at).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", authcore.ErrSingleUseInvalid
	}
	return userID, err
}

func (s *Store) ConsumePasswordReset(ctx context.Context, id uuid.UUID, secretHash [32]byte, newPasswordHash string, at time.Time) (string, error) {
	var userID string
	err := s.withRetry(ctx, "consume password reset", func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			var err error
			userID, err = consumeSingleUse(ctx, tx, id, authcore.KindPasswordReset, secretHash, at)
			if err != nil {
				return err
			}

			tag, err := tx.Exec(ctx,
				`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
				userID, newPasswordHash)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return authcore.ErrUserNotFound
			}

			_, err = tx.Exec(ctx,
				`UPDATE refresh_tokens SET revoked = true, revoked_at = $2
				 WHERE user_id = $1 AND revoked = false`, userID, at)
			return err
		})
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *Store) ConsumeEmailVerification(ctx context.Context, id uuid.UUID, secretHash [32]byte, at time.Time) (string, error) {
	var userID string
	err := s.withRetry(ctx, "consume email verification", func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			var err error
			userID, err = consumeSingleUse(ctx, tx, id, authcore.KindEmailVerification, secretHash, at)
			if err != nil {
				return err
			}

			tag, err := tx.Exec(ctx,
				`UPDATE users SET email_verified = true, updated_at = now() WHERE id = $1`,
				userID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return authcore.ErrUserNotFound
			}
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}
