package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"user_service/internal/lib/apperr"
	"user_service/internal/lib/jwt"
	"user_service/internal/lib/logger/sl"
	"user_service/internal/lib/validate"
	"user_service/internal/metrics"
	"user_service/internal/models"
	"user_service/internal/storage"
)

var (
	ErrInvalidCredentials  = apperr.Auth("invalid_credentials", "invalid credentials")
	ErrAccountInactive     = apperr.Auth(apperr.CodeInactive, "account is inactive")
	ErrInvalidRefreshToken = apperr.Auth("invalid_refresh_token", "invalid or expired refresh token")
	ErrUserExists          = apperr.Conflict("user_exists", "user with this email already exists")
	ErrAccountNotFound     = apperr.NotFound("user_not_found", "user not found")
)

const (
	opRegister  = "register"
	opLogin     = "login"
	opRefresh   = "refresh"
	opLogout    = "logout"
	opLogoutAll = "logout_all"
)

// bcrypt ignores nothing past this length; it refuses the input instead.
const maxPasswordBytes = 72

type Auth struct {
	log       *slog.Logger
	accounts  AccountStore
	tokens    TokenStore
	issuer    TokenIssuer
	hasher    PasswordHasher
	replay    ReplayDetector
	publisher EventPublisher
	metrics   *metrics.Metrics
	dummyHash []byte
}

type AccountStore interface {
	SaveAccount(ctx context.Context, name, email string, passHash []byte, role models.Role) (int64, error)
	Account(ctx context.Context, email string) (models.Account, error)
	AccountByID(ctx context.Context, id int64) (models.Account, error)
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)
}

type TokenStore interface {
	SaveRefreshToken(ctx context.Context, accountID int64, token string, expiresAt time.Time) (int64, error)
	RefreshToken(ctx context.Context, token string) (models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) (bool, error)
	DeleteAccountRefreshTokens(ctx context.Context, accountID int64) (int64, error)
	CountActiveRefreshTokens(ctx context.Context, accountID int64) (int64, error)
	ListAccountRefreshTokens(ctx context.Context, accountID int64) ([]models.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldToken string, accountID int64, newToken string, expiresAt time.Time) (int64, error)
}

type TokenIssuer interface {
	NewAccessToken(account models.Account) (string, time.Time, error)
	NewRefreshToken(account models.Account) (string, time.Time, error)
	ParseRefreshToken(token string) (jwt.RefreshClaims, error)
}

type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Compare(hash []byte, password string) bool
}

// ReplayDetector remembers rotated refresh tokens.
type ReplayDetector interface {
	MarkRotated(ctx context.Context, token string, accountID int64, expiresAt time.Time) (bool, error)
	WasRotated(ctx context.Context, token string) (int64, bool, error)
}

type EventPublisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

type Option func(*Auth)

func WithReplayDetector(d ReplayDetector) Option {
	return func(a *Auth) {
		a.replay = d
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(a *Auth) {
		a.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Auth) {
		a.metrics = m
	}
}

func New(
	log *slog.Logger,
	accounts AccountStore,
	tokens TokenStore,
	issuer TokenIssuer,
	hasher PasswordHasher,
	opts ...Option,
) *Auth {
	a := &Auth{
		log:      log,
		accounts: accounts,
		tokens:   tokens,
		issuer:   issuer,
		hasher:   hasher,
	}
	for _, opt := range opts {
		opt(a)
	}

	// compared against on unknown emails so both failure paths cost one bcrypt run
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		log.Error("failed to prepare dummy password hash", slog.String("op", "auth.New"), sl.Err(err))
	}
	a.dummyHash = dummy

	return a
}

// * Register creates an active user account and opens its first session.
func (a *Auth) Register(
	ctx context.Context,
	name, email, password string,
) (session models.Session, err error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))
	defer func() { a.metrics.AuthOperation(opRegister, err) }()

	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return models.Session{}, apperr.Validation("name, email and password are required")
	}
	if !validate.Email(email) {
		return models.Session{}, apperr.Validation("email is not valid")
	}
	if len(password) > maxPasswordBytes {
		return models.Session{}, apperr.Validation("password must be at most 72 bytes")
	}

	exists, err := a.accounts.EmailExists(ctx, email, 0)
	if err != nil {
		log.Error("failed to check email", sl.Err(err))
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		log.Info("email already registered")
		return models.Session{}, ErrUserExists
	}

	passHash, err := a.hasher.Hash(password)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := a.accounts.SaveAccount(ctx, name, email, passHash, models.RoleUser)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Info("email registered concurrently")
			return models.Session{}, ErrUserExists
		}

		log.Error("failed to save account", sl.Err(err))
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	account := models.Account{
		ID:       id,
		Name:     name,
		Email:    email,
		PassHash: passHash,
		Role:     models.RoleUser,
		Status:   models.StatusActive,
	}

	session, err = a.openSession(ctx, account)
	if err != nil {
		log.Error("failed to open session", sl.Err(err))
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	a.publish(ctx, log, models.Message{
		Email:   account.Email,
		Name:    account.Name,
		Purpose: models.PurposeAccountRegistered,
	})

	log.Info("account registered", slog.Int64("uid", id))

	return session, nil
}

// * Login checks existence, then password, then status. Unknown email and
// wrong password are indistinguishable to the caller.
func (a *Auth) Login(
	ctx context.Context,
	email, password string,
) (session models.Session, err error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))
	defer func() { a.metrics.AuthOperation(opLogin, err) }()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return models.Session{}, apperr.Validation("email and password are required")
	}

	account, err := a.accounts.Account(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			a.hasher.Compare(a.dummyHash, password)
			log.Info("login for unknown email")
			return models.Session{}, ErrInvalidCredentials
		}

		log.Error("failed to get account", sl.Err(err))
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	if !a.hasher.Compare(account.PassHash, password) {
		log.Info("invalid credentials", slog.Int64("uid", account.ID))
		return models.Session{}, ErrInvalidCredentials
	}

	if !account.IsActive() {
		log.Info("login to inactive account", slog.Int64("uid", account.ID))
		return models.Session{}, ErrAccountInactive
	}

	session, err = a.openSession(ctx, account)
	if err != nil {
		log.Error("failed to open session", sl.Err(err))
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.Int64("uid", account.ID))

	return session, nil
}

// * Refresh exchanges a refresh token for a new pair. The presented token is
// consumed: it succeeds at most once, even under concurrent calls.
func (a *Auth) Refresh(
	ctx context.Context,
	refreshToken string,
) (pair models.TokenPair, err error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))
	defer func() { a.metrics.AuthOperation(opRefresh, err) }()

	if refreshToken == "" {
		return models.TokenPair{}, apperr.Validation("refresh token is required")
	}

	claims, err := a.issuer.ParseRefreshToken(refreshToken)
	if err != nil {
		log.Info("refresh token rejected", sl.Err(err))
		return models.TokenPair{}, ErrInvalidRefreshToken
	}

	rt, err := a.tokens.RefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			log.Info("refresh token not found", slog.Int64("uid", claims.UserID))
			a.checkReuse(ctx, log, refreshToken)
			return models.TokenPair{}, ErrInvalidRefreshToken
		}

		log.Error("failed to get refresh token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if rt.AccountID != claims.UserID {
		log.Warn("refresh token subject mismatch",
			slog.Int64("uid", claims.UserID),
			slog.Int64("record_uid", rt.AccountID),
		)
		return models.TokenPair{}, ErrInvalidRefreshToken
	}

	if rt.ExpiredAt(time.Now()) {
		if _, err := a.tokens.DeleteRefreshToken(ctx, refreshToken); err != nil {
			log.Error("failed to delete expired refresh token", sl.Err(err))
		}
		log.Info("refresh token record expired", slog.Int64("uid", rt.AccountID))
		return models.TokenPair{}, ErrInvalidRefreshToken
	}

	account, err := a.accounts.AccountByID(ctx, rt.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("refresh for deleted account", slog.Int64("uid", rt.AccountID))
			return models.TokenPair{}, ErrAccountNotFound
		}

		log.Error("failed to load account", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if !account.IsActive() {
		log.Info("refresh for inactive account", slog.Int64("uid", account.ID))
		return models.TokenPair{}, ErrAccountInactive
	}

	accessToken, _, err := a.issuer.NewAccessToken(account)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	newRefresh, expiresAt, err := a.issuer.NewRefreshToken(account)
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := a.tokens.RotateRefreshToken(ctx, refreshToken, account.ID, newRefresh, expiresAt); err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			log.Info("refresh token consumed concurrently", slog.Int64("uid", account.ID))
			return models.TokenPair{}, ErrInvalidRefreshToken
		}

		log.Error("failed to rotate refresh token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if a.replay != nil && claims.ExpiresAt != nil {
		if _, err := a.replay.MarkRotated(ctx, refreshToken, account.ID, claims.ExpiresAt.Time); err != nil {
			log.Warn("failed to mark rotated refresh token", sl.Err(err))
		}
	}

	log.Info("refresh successful", slog.Int64("uid", account.ID))

	return models.TokenPair{AccessToken: accessToken, RefreshToken: newRefresh}, nil
}

// * Logout revokes refreshToken if it is still stored. An unknown or empty
// token is not an error.
func (a *Auth) Logout(
	ctx context.Context,
	refreshToken string,
) (err error) {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))
	defer func() { a.metrics.AuthOperation(opLogout, err) }()

	if refreshToken == "" {
		log.Info("logout without refresh token")
		return nil
	}

	deleted, err := a.tokens.DeleteRefreshToken(ctx, refreshToken)
	if err != nil {
		log.Error("failed to delete refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logout successful", slog.Bool("revoked", deleted))

	return nil
}

// * LogoutAll revokes every refresh token of the account and returns how many
// were removed. Access tokens already issued stay valid until they expire.
func (a *Auth) LogoutAll(
	ctx context.Context,
	accountID int64,
) (revoked int64, err error) {
	const op = "auth.LogoutAll"

	log := a.log.With(slog.String("op", op), slog.Int64("uid", accountID))
	defer func() { a.metrics.AuthOperation(opLogoutAll, err) }()

	revoked, err = a.tokens.DeleteAccountRefreshTokens(ctx, accountID)
	if err != nil {
		log.Error("failed to revoke refresh tokens", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if account, err := a.accounts.AccountByID(ctx, accountID); err == nil {
		a.publish(ctx, log, models.Message{
			Email:   account.Email,
			Name:    account.Name,
			Purpose: models.PurposeSessionsRevoked,
			Detail:  fmt.Sprintf("Sessions ended: %d.", revoked),
		})
	}

	log.Info("all sessions revoked", slog.Int64("revoked", revoked))

	return revoked, nil
}

// * Sessions lists the account's unexpired refresh tokens, newest first.
func (a *Auth) Sessions(ctx context.Context, accountID int64) ([]models.SessionInfo, error) {
	const op = "auth.Sessions"

	tokens, err := a.tokens.ListAccountRefreshTokens(ctx, accountID)
	if err != nil {
		a.log.Error("failed to list refresh tokens", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sessions := make([]models.SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, models.SessionInfo{
			ID:        t.ID,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (a *Auth) ActiveSessions(ctx context.Context, accountID int64) (int64, error) {
	const op = "auth.ActiveSessions"

	n, err := a.tokens.CountActiveRefreshTokens(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (a *Auth) openSession(ctx context.Context, account models.Account) (models.Session, error) {
	accessToken, _, err := a.issuer.NewAccessToken(account)
	if err != nil {
		return models.Session{}, err
	}

	refreshToken, expiresAt, err := a.issuer.NewRefreshToken(account)
	if err != nil {
		return models.Session{}, err
	}

	if _, err := a.tokens.SaveRefreshToken(ctx, account.ID, refreshToken, expiresAt); err != nil {
		return models.Session{}, err
	}

	return models.Session{
		TokenPair: models.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		},
		Account: account.Public(),
	}, nil
}

// checkReuse reports a token that was presented again after rotation. It
// only records the event; no sessions are revoked.
func (a *Auth) checkReuse(ctx context.Context, log *slog.Logger, refreshToken string) {
	if a.replay == nil {
		return
	}

	accountID, rotated, err := a.replay.WasRotated(ctx, refreshToken)
	if err != nil {
		log.Warn("failed to check rotated refresh tokens", sl.Err(err))
		return
	}
	if !rotated {
		return
	}

	log.Warn("rotated refresh token presented again", slog.Int64("uid", accountID))
	a.metrics.RefreshReuse()

	account, err := a.accounts.AccountByID(ctx, accountID)
	if err != nil {
		return
	}

	a.publish(ctx, log, models.Message{
		Email:   account.Email,
		Name:    account.Name,
		Purpose: models.PurposeRefreshReuse,
	})
}

func (a *Auth) publish(ctx context.Context, log *slog.Logger, msg models.Message) {
	if a.publisher == nil {
		return
	}

	msg.OccurredAt = time.Now().UTC()

	err := a.publisher.SendMessage(ctx, msg)
	a.metrics.EventPublished(msg.Purpose, err)
	if err != nil {
		log.Warn("failed to publish event", slog.String("purpose", msg.Purpose), sl.Err(err))
	}
}
