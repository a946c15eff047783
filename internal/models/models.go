package models

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

type Account struct {
	ID          int64
	Name        string
	Email       string
	PassHash    []byte
	Role        Role
	Status      Status
	Phone       string
	Address     string
	Department  string
	PicturePath string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a Account) IsActive() bool {
	return a.Status == StatusActive
}

func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:    a.ID,
		Name:  a.Name,
		Email: a.Email,
		Role:  a.Role,
	}
}

func (a Account) Profile() Profile {
	return Profile{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		Role:        a.Role,
		Status:      a.Status,
		Phone:       a.Phone,
		Address:     a.Address,
		Department:  a.Department,
		PicturePath: a.PicturePath,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// PublicAccount is what register and login hand back next to the tokens.
type PublicAccount struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type Profile struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	Status      Status    `json:"status"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	Department  string    `json:"department,omitempty"`
	PicturePath string    `json:"picture_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProfileUpdate struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	Department string
}

// Identity is the decoded access-token subject attached to a request.
type Identity struct {
	ID    int64
	Email string
	Role  Role
	Name  string
}

type RefreshToken struct {
	ID        int64
	AccountID int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t RefreshToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Session struct {
	TokenPair
	Account PublicAccount `json:"user"`
}

type SessionInfo struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Stats struct {
	TotalUsers  int64 `json:"total_users"`
	ActiveUsers int64 `json:"active_users"`
	NewToday    int64 `json:"new_today"`
}

// Purposes of notification messages published to the broker.
const (
	PurposeAccountRegistered = "account_registered"
	PurposeSessionsRevoked   = "sessions_revoked"
	PurposeRefreshReuse      = "refresh_token_reuse"
	PurposeAccountDisabled   = "account_disabled"
)

type Message struct {
	Email      string    `json:"to"`
	Name       string    `json:"name"`
	Purpose    string    `json:"purpose"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
