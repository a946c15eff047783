package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user_service/internal/models"
	"user_service/internal/storage"

	"gorm.io/gorm"
)

var errNotRotated = errors.New("old refresh token already consumed")

func (r *SQLiteRepo) SaveRefreshToken(
	ctx context.Context,
	accountID int64,
	token string,
	expiresAt time.Time,
) (int64, error) {
	const op = "storage.sqlite.SaveRefreshToken"

	rt := refreshToken{
		AccountID: accountID,
		TokenHash: storage.TokenHash(token),
		ExpiresAt: expiresAt.UnixMilli(),
	}

	if err := r.db.WithContext(ctx).Create(&rt).Error; err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return rt.ID, nil
}

func (r *SQLiteRepo) RefreshToken(ctx context.Context, token string) (models.RefreshToken, error) {
	const op = "storage.sqlite.RefreshToken"

	var rt refreshToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", storage.TokenHash(token)).First(&rt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
		}

		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}

	return rt.toModel(), nil
}

func (r *SQLiteRepo) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	const op = "storage.sqlite.DeleteRefreshToken"

	res := r.db.WithContext(ctx).Where("token_hash = ?", storage.TokenHash(token)).Delete(&refreshToken{})
	if res.Error != nil {
		return false, fmt.Errorf("%s: %w", op, res.Error)
	}

	return res.RowsAffected > 0, nil
}

func (r *SQLiteRepo) DeleteAccountRefreshTokens(ctx context.Context, accountID int64) (int64, error) {
	const op = "storage.sqlite.DeleteAccountRefreshTokens"

	res := r.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&refreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("%s: %w", op, res.Error)
	}

	return res.RowsAffected, nil
}

func (r *SQLiteRepo) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	const op = "storage.sqlite.DeleteExpiredRefreshTokens"

	res := r.db.WithContext(ctx).Where("expires_at <= ?", time.Now().UnixMilli()).Delete(&refreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("%s: %w", op, res.Error)
	}

	return res.RowsAffected, nil
}

func (r *SQLiteRepo) CountActiveRefreshTokens(ctx context.Context, accountID int64) (int64, error) {
	const op = "storage.sqlite.CountActiveRefreshTokens"

	var n int64
	err := r.db.WithContext(ctx).Model(&refreshToken{}).
		Where("account_id = ? AND expires_at > ?", accountID, time.Now().UnixMilli()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (r *SQLiteRepo) ListAccountRefreshTokens(ctx context.Context, accountID int64) ([]models.RefreshToken, error) {
	const op = "storage.sqlite.ListAccountRefreshTokens"

	var rows []refreshToken
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND expires_at > ?", accountID, time.Now().UnixMilli()).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokens := make([]models.RefreshToken, 0, len(rows))
	for _, rt := range rows {
		tokens = append(tokens, rt.toModel())
	}

	return tokens, nil
}

// * RotateRefreshToken deletes oldToken and stores newToken atomically. Only
// one caller can delete a given record, so concurrent rotations of the same
// token produce exactly one winner.
func (r *SQLiteRepo) RotateRefreshToken(
	ctx context.Context,
	oldToken string,
	accountID int64,
	newToken string,
	expiresAt time.Time,
) (int64, error) {
	const op = "storage.sqlite.RotateRefreshToken"

	var id int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("token_hash = ? AND account_id = ?", storage.TokenHash(oldToken), accountID).
			Delete(&refreshToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return errNotRotated
		}

		rt := refreshToken{
			AccountID: accountID,
			TokenHash: storage.TokenHash(newToken),
			ExpiresAt: expiresAt.UnixMilli(),
		}
		if err := tx.Create(&rt).Error; err != nil {
			return err
		}
		id = rt.ID

		return nil
	})
	if err != nil {
		if errors.Is(err, errNotRotated) {
			return 0, storage.ErrRefreshTokenNotFound
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}
