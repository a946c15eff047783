package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user_service/internal/models"
	"user_service/internal/storage"

	"github.com/jackc/pgx/v5"
)

var errNotRotated = errors.New("old refresh token already consumed")

func (r *PostgresRepo) SaveRefreshToken(
	ctx context.Context,
	accountID int64,
	token string,
	expiresAt time.Time,
) (int64, error) {
	const op = "storage.postgres.SaveRefreshToken"

	const query = `
		INSERT INTO refresh_tokens (account_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id;
	`

	var id int64
	if err := r.pool.QueryRow(ctx, query, accountID, storage.TokenHash(token), expiresAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) RefreshToken(ctx context.Context, token string) (models.RefreshToken, error) {
	const op = "storage.postgres.RefreshToken"

	const query = `
		SELECT id, account_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1;
	`

	var rt models.RefreshToken

	err := r.pool.QueryRow(ctx, query, storage.TokenHash(token)).Scan(
		&rt.ID,
		&rt.AccountID,
		&rt.TokenHash,
		&rt.ExpiresAt,
		&rt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
		}

		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}

	return rt, nil
}

// * DeleteRefreshToken reports whether a record was removed. Deleting an
// unknown token is not an error.
func (r *PostgresRepo) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	const op = "storage.postgres.DeleteRefreshToken"

	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, storage.TokenHash(token))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepo) DeleteAccountRefreshTokens(ctx context.Context, accountID int64) (int64, error) {
	const op = "storage.postgres.DeleteAccountRefreshTokens"

	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	const op = "storage.postgres.DeleteExpiredRefreshTokens"

	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) CountActiveRefreshTokens(ctx context.Context, accountID int64) (int64, error) {
	const op = "storage.postgres.CountActiveRefreshTokens"

	const query = `SELECT COUNT(*) FROM refresh_tokens WHERE account_id = $1 AND expires_at > NOW()`

	var n int64
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (r *PostgresRepo) ListAccountRefreshTokens(ctx context.Context, accountID int64) ([]models.RefreshToken, error) {
	const op = "storage.postgres.ListAccountRefreshTokens"

	const query = `
		SELECT id, account_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE account_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC, id DESC;
	`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	tokens := make([]models.RefreshToken, 0)
	for rows.Next() {
		var rt models.RefreshToken
		if err := rows.Scan(&rt.ID, &rt.AccountID, &rt.TokenHash, &rt.ExpiresAt, &rt.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tokens = append(tokens, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tokens, nil
}

// * RotateRefreshToken swaps oldToken for newToken in one transaction. The
// delete is conditional on the old record still existing; if a concurrent
// rotation got there first nothing is inserted and ErrRefreshTokenNotFound
// is returned.
func (r *PostgresRepo) RotateRefreshToken(
	ctx context.Context,
	oldToken string,
	accountID int64,
	newToken string,
	expiresAt time.Time,
) (int64, error) {
	const op = "storage.postgres.RotateRefreshToken"

	var id int64

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM refresh_tokens WHERE token_hash = $1 AND account_id = $2`,
			storage.TokenHash(oldToken), accountID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return errNotRotated
		}

		return tx.QueryRow(ctx,
			`INSERT INTO refresh_tokens (account_id, token_hash, expires_at) VALUES ($1, $2, $3) RETURNING id`,
			accountID, storage.TokenHash(newToken), expiresAt,
		).Scan(&id)
	})
	if err != nil {
		if errors.Is(err, errNotRotated) {
			return 0, storage.ErrRefreshTokenNotFound
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}
