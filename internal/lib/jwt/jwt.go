package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"user_service/internal/models"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingSecret = errors.New("jwt: signing secret is not set")
	ErrSharedSecret  = errors.New("jwt: access and refresh secrets must differ")

	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

const refreshTokenType = "refresh"

type AccessClaims struct {
	UserID int64       `json:"id"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	Name   string      `json:"name"`
	gojwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID int64  `json:"id"`
	Type   string `json:"type"`
	gojwt.RegisteredClaims
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issuer mints and verifies access and refresh tokens. Each kind is signed
// with its own secret so a leaked key cannot forge the other kind.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

type Option func(*Issuer)

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	const op = "jwt.NewIssuer"

	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingSecret)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("%s: %w", op, ErrSharedSecret)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%s: token ttl must be positive", op)
	}

	i := &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// * NewAccessToken signs the short-lived identity token for account.
func (i *Issuer) NewAccessToken(account models.Account) (string, time.Time, error) {
	const op = "jwt.NewAccessToken"

	now := i.now()
	expiresAt := now.Add(i.accessTTL)

	claims := AccessClaims{
		UserID: account.ID,
		Email:  account.Email,
		Role:   account.Role,
		Name:   account.Name,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, expiresAt, nil
}

// * NewRefreshToken signs the long-lived refresh token for account. It only
// carries the account id; the random jti keeps tokens minted in the same
// second distinct.
func (i *Issuer) NewRefreshToken(account models.Account) (string, time.Time, error) {
	const op = "jwt.NewRefreshToken"

	now := i.now()
	expiresAt := now.Add(i.refreshTTL)

	claims := RefreshClaims{
		UserID: account.ID,
		Type:   refreshTokenType,
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, expiresAt, nil
}

func (i *Issuer) ParseAccessToken(token string) (models.Identity, error) {
	var claims AccessClaims
	if err := i.parse(token, &claims, i.accessSecret); err != nil {
		return models.Identity{}, err
	}

	if claims.UserID <= 0 || !claims.Role.Valid() {
		return models.Identity{}, ErrTokenInvalid
	}

	return models.Identity{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  claims.Role,
		Name:  claims.Name,
	}, nil
}

func (i *Issuer) ParseRefreshToken(token string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.parse(token, &claims, i.refreshSecret); err != nil {
		return RefreshClaims{}, err
	}

	if claims.Type != refreshTokenType || claims.UserID <= 0 {
		return RefreshClaims{}, ErrTokenInvalid
	}

	return claims, nil
}

func (i *Issuer) parse(token string, claims gojwt.Claims, secret []byte) error {
	_, err := gojwt.ParseWithClaims(token, claims,
		func(t *gojwt.Token) (any, error) {
			return secret, nil
		},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(i.now),
	)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, gojwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
