package sqlite

import (
	"time"

	"user_service/internal/models"
)

// Timestamps are kept as unix milliseconds so range filters compare numbers.
type account struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash []byte `gorm:"not null"`
	Role         string `gorm:"not null;default:user"`
	Status       string `gorm:"not null;default:active;index"`
	Phone        string
	Address      string
	Department   string
	PicturePath  string
	CreatedAt    int64 `gorm:"autoCreateTime:milli;index"`
	UpdatedAt    int64 `gorm:"autoUpdateTime:milli"`
}

func (account) TableName() string { return "accounts" }

func (a account) toModel() models.Account {
	return models.Account{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		PassHash:    a.PasswordHash,
		Role:        models.Role(a.Role),
		Status:      models.Status(a.Status),
		Phone:       a.Phone,
		Address:     a.Address,
		Department:  a.Department,
		PicturePath: a.PicturePath,
		CreatedAt:   fromMilli(a.CreatedAt),
		UpdatedAt:   fromMilli(a.UpdatedAt),
	}
}

type refreshToken struct {
	ID        int64    `gorm:"primaryKey;autoIncrement"`
	AccountID int64    `gorm:"not null;index"`
	Account   *account `gorm:"constraint:OnDelete:CASCADE"`
	TokenHash string   `gorm:"uniqueIndex;not null"`
	ExpiresAt int64    `gorm:"not null;index"`
	CreatedAt int64    `gorm:"autoCreateTime:milli"`
}

func (refreshToken) TableName() string { return "refresh_tokens" }

func (t refreshToken) toModel() models.RefreshToken {
	return models.RefreshToken{
		ID:        t.ID,
		AccountID: t.AccountID,
		TokenHash: t.TokenHash,
		ExpiresAt: fromMilli(t.ExpiresAt),
		CreatedAt: fromMilli(t.CreatedAt),
	}
}

func fromMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
