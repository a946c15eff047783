// Package sqlite is the embedded storage backend used for local runs and
// tests. It implements the same methods as the postgres repository.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"user_service/internal/config"
	"user_service/internal/models"
	"user_service/internal/storage"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const memoryPath = ":memory:"

type SQLiteRepo struct {
	db *gorm.DB
}

func New(cfg config.SQLite) (*SQLiteRepo, error) {
	return Open(cfg.Path)
}

// * Open opens the database at path. ":memory:" gives a private in-memory
// database. All access goes through a single connection.
func Open(path string) (*SQLiteRepo, error) {
	const op = "storage.sqlite.Open"

	dsn := path
	if path == memoryPath {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Migrate(ctx context.Context) error {
	const op = "storage.sqlite.Migrate"

	if err := r.db.WithContext(ctx).AutoMigrate(&account{}, &refreshToken{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *SQLiteRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

func (r *SQLiteRepo) Close() {
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (r *SQLiteRepo) SaveAccount(
	ctx context.Context,
	name, email string,
	passHash []byte,
	role models.Role,
) (int64, error) {
	const op = "storage.sqlite.SaveAccount"

	a := account{
		Name:         name,
		Email:        email,
		PasswordHash: passHash,
		Role:         string(role),
		Status:       string(models.StatusActive),
	}

	if err := r.db.WithContext(ctx).Create(&a).Error; err != nil {
		if isDuplicate(err) {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save account: %w", op, err)
	}

	return a.ID, nil
}

func (r *SQLiteRepo) Account(ctx context.Context, email string) (models.Account, error) {
	const op = "storage.sqlite.Account"

	return r.first(ctx, op, "email = ?", email)
}

func (r *SQLiteRepo) AccountByID(ctx context.Context, id int64) (models.Account, error) {
	const op = "storage.sqlite.AccountByID"

	return r.first(ctx, op, "id = ?", id)
}

func (r *SQLiteRepo) first(ctx context.Context, op, cond string, arg any) (models.Account, error) {
	var a account

	if err := r.db.WithContext(ctx).Where(cond, arg).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Account{}, storage.ErrUserNotFound
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return a.toModel(), nil
}

func (r *SQLiteRepo) Accounts(ctx context.Context) ([]models.Account, error) {
	const op = "storage.sqlite.Accounts"

	var rows []account
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	accounts := make([]models.Account, 0, len(rows))
	for _, a := range rows {
		accounts = append(accounts, a.toModel())
	}

	return accounts, nil
}

func (r *SQLiteRepo) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	const op = "storage.sqlite.EmailExists"

	var n int64
	err := r.db.WithContext(ctx).Model(&account{}).
		Where("email = ? AND id <> ?", email, excludeID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

func (r *SQLiteRepo) UpdateRole(ctx context.Context, id int64, role models.Role) error {
	const op = "storage.sqlite.UpdateRole"

	return r.updateOne(ctx, op, id, map[string]any{"role": string(role)})
}

func (r *SQLiteRepo) SetStatus(ctx context.Context, id int64, status models.Status) error {
	const op = "storage.sqlite.SetStatus"

	return r.updateOne(ctx, op, id, map[string]any{"status": string(status)})
}

func (r *SQLiteRepo) UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (models.Account, error) {
	const op = "storage.sqlite.UpdateProfile"

	err := r.updateOne(ctx, op, id, map[string]any{
		"name":       update.Name,
		"email":      update.Email,
		"phone":      update.Phone,
		"address":    update.Address,
		"department": update.Department,
	})
	if err != nil {
		return models.Account{}, err
	}

	return r.AccountByID(ctx, id)
}

func (r *SQLiteRepo) updateOne(ctx context.Context, op string, id int64, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&account{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return storage.ErrUserExists
		}

		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// * DeleteAccount removes the account and its refresh tokens in one transaction.
func (r *SQLiteRepo) DeleteAccount(ctx context.Context, id int64) error {
	const op = "storage.sqlite.DeleteAccount"

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&refreshToken{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&account{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrUserNotFound
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return err
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *SQLiteRepo) Stats(ctx context.Context, since time.Time) (models.Stats, error) {
	const op = "storage.sqlite.Stats"

	var s models.Stats
	db := r.db.WithContext(ctx).Model(&account{})

	if err := db.Session(&gorm.Session{}).Count(&s.TotalUsers).Error; err != nil {
		return models.Stats{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.Session(&gorm.Session{}).Where("status = ?", string(models.StatusActive)).Count(&s.ActiveUsers).Error; err != nil {
		return models.Stats{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.Session(&gorm.Session{}).Where("created_at >= ?", since.UnixMilli()).Count(&s.NewToday).Error; err != nil {
		return models.Stats{}, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
