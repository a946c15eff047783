package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"user_service/internal/lib/apperr"
	"user_service/internal/lib/logger/sl"
	"user_service/internal/lib/validate"
	"user_service/internal/metrics"
	"user_service/internal/models"
	"user_service/internal/storage"
)

var (
	ErrSelfRoleChange   = apperr.Conflict("self_role_change", "you cannot change your own role")
	ErrSelfStatusChange = apperr.Conflict("self_status_change", "you cannot change your own status")
	ErrSelfDelete       = apperr.Conflict("self_delete", "you cannot delete your own account")
	ErrEmailTaken       = apperr.Conflict("email_taken", "email is already in use")
	ErrAccountNotFound  = apperr.NotFound("user_not_found", "user not found")
)

type Repository interface {
	SaveAccount(ctx context.Context, name, email string, passHash []byte, role models.Role) (int64, error)
	Account(ctx context.Context, email string) (models.Account, error)
	AccountByID(ctx context.Context, id int64) (models.Account, error)
	Accounts(ctx context.Context) ([]models.Account, error)
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)
	UpdateRole(ctx context.Context, id int64, role models.Role) error
	SetStatus(ctx context.Context, id int64, status models.Status) error
	UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (models.Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	Stats(ctx context.Context, since time.Time) (models.Stats, error)
}

type TokenRevoker interface {
	DeleteAccountRefreshTokens(ctx context.Context, accountID int64) (int64, error)
}

type PasswordHasher interface {
	Hash(password string) ([]byte, error)
}

type EventPublisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

// Service implements profile self-service and the admin console. Admin
// operations take the caller's id so an admin cannot act on their own account.
type Service struct {
	log       *slog.Logger
	repo      Repository
	tokens    TokenRevoker
	hasher    PasswordHasher
	publisher EventPublisher
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(log *slog.Logger, repo Repository, tokens TokenRevoker, hasher PasswordHasher, opts ...Option) *Service {
	s := &Service{
		log:    log,
		repo:   repo,
		tokens: tokens,
		hasher: hasher,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) Profile(ctx context.Context, id int64) (models.Profile, error) {
	const op = "accounts.Profile"

	account, err := s.repo.AccountByID(ctx, id)
	if err != nil {
		return models.Profile{}, s.storageErr(op, err)
	}

	return account.Profile(), nil
}

func (s *Service) List(ctx context.Context) ([]models.Profile, error) {
	const op = "accounts.List"

	accounts, err := s.repo.Accounts(ctx)
	if err != nil {
		return nil, s.storageErr(op, err)
	}

	profiles := make([]models.Profile, 0, len(accounts))
	for _, a := range accounts {
		profiles = append(profiles, a.Profile())
	}

	return profiles, nil
}

// * UpdateRole changes another account's role. Existing access tokens keep
// the old role until they expire.
func (s *Service) UpdateRole(ctx context.Context, callerID, targetID int64, role models.Role) (models.Profile, error) {
	const op = "accounts.UpdateRole"

	log := s.log.With(slog.String("op", op), slog.Int64("caller", callerID), slog.Int64("target", targetID))

	if !role.Valid() {
		return models.Profile{}, apperr.Validation("role must be one of: admin, user")
	}
	if callerID == targetID {
		log.Info("self role change rejected")
		return models.Profile{}, ErrSelfRoleChange
	}

	if err := s.repo.UpdateRole(ctx, targetID, role); err != nil {
		return models.Profile{}, s.storageErr(op, err)
	}

	log.Info("role updated", slog.String("role", string(role)))

	return s.Profile(ctx, targetID)
}

// * SetStatus activates or deactivates another account. Deactivation revokes
// all of the account's refresh tokens; a failed revocation is logged and does
// not undo the status change.
func (s *Service) SetStatus(ctx context.Context, callerID, targetID int64, status models.Status) (models.Profile, error) {
	const op = "accounts.SetStatus"

	log := s.log.With(slog.String("op", op), slog.Int64("caller", callerID), slog.Int64("target", targetID))

	if !status.Valid() {
		return models.Profile{}, apperr.Validation("status must be one of: active, inactive")
	}
	if callerID == targetID {
		log.Info("self status change rejected")
		return models.Profile{}, ErrSelfStatusChange
	}

	if err := s.repo.SetStatus(ctx, targetID, status); err != nil {
		return models.Profile{}, s.storageErr(op, err)
	}

	profile, err := s.Profile(ctx, targetID)
	if err != nil {
		return models.Profile{}, err
	}

	if status == models.StatusInactive {
		// refresh already rejects inactive accounts; leftover records are
		// unusable and go on the next sweep or logout-all
		revoked, err := s.tokens.DeleteAccountRefreshTokens(ctx, targetID)
		if err != nil {
			log.Error("failed to revoke refresh tokens", sl.Err(err))
		}

		s.publish(ctx, log, models.Message{
			Email:   profile.Email,
			Name:    profile.Name,
			Purpose: models.PurposeAccountDisabled,
		})

		log.Info("account deactivated", slog.Int64("revoked", revoked))
	} else {
		log.Info("account activated")
	}

	return profile, nil
}

func (s *Service) Delete(ctx context.Context, callerID, targetID int64) error {
	const op = "accounts.Delete"

	log := s.log.With(slog.String("op", op), slog.Int64("caller", callerID), slog.Int64("target", targetID))

	if callerID == targetID {
		log.Info("self delete rejected")
		return ErrSelfDelete
	}

	if err := s.repo.DeleteAccount(ctx, targetID); err != nil {
		return s.storageErr(op, err)
	}

	log.Info("account deleted")

	return nil
}

// * Stats counts accounts; "new today" starts at midnight UTC.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	const op = "accounts.Stats"

	y, m, d := time.Now().UTC().Date()

	stats, err := s.repo.Stats(ctx, time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return models.Stats{}, s.storageErr(op, err)
	}

	return stats, nil
}

// * UpdateProfile lets a user edit their own contact details. Role and
// status are not part of models.ProfileUpdate and cannot change here.
func (s *Service) UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (models.Profile, error) {
	const op = "accounts.UpdateProfile"

	log := s.log.With(slog.String("op", op), slog.Int64("uid", id))

	update.Name = strings.TrimSpace(update.Name)
	update.Email = strings.TrimSpace(update.Email)
	update.Phone = strings.TrimSpace(update.Phone)
	update.Address = strings.TrimSpace(update.Address)
	update.Department = strings.TrimSpace(update.Department)

	if update.Name == "" || update.Email == "" {
		return models.Profile{}, apperr.Validation("name and email are required")
	}
	if !validate.Email(update.Email) {
		return models.Profile{}, apperr.Validation("email is not valid")
	}

	taken, err := s.repo.EmailExists(ctx, update.Email, id)
	if err != nil {
		return models.Profile{}, s.storageErr(op, err)
	}
	if taken {
		log.Info("email already in use")
		return models.Profile{}, ErrEmailTaken
	}

	account, err := s.repo.UpdateProfile(ctx, id, update)
	if err != nil {
		return models.Profile{}, s.storageErr(op, err)
	}

	log.Info("profile updated")

	return account.Profile(), nil
}

// * EnsureAdmin creates an admin account with the given credentials unless
// the email is already registered. An empty email is a no-op.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	const op = "accounts.EnsureAdmin"

	log := s.log.With(slog.String("op", op))

	if email == "" {
		return false, nil
	}

	_, err := s.repo.Account(ctx, email)
	if err == nil {
		log.Debug("bootstrap admin already present")
		return false, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.repo.SaveAccount(ctx, name, email, passHash, models.RoleAdmin)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("bootstrap admin created", slog.Int64("uid", id))

	return true, nil
}

func (s *Service) storageErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		return ErrAccountNotFound
	case errors.Is(err, storage.ErrUserExists):
		return ErrEmailTaken
	}

	s.log.Error("storage failure", slog.String("op", op), sl.Err(err))

	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) publish(ctx context.Context, log *slog.Logger, msg models.Message) {
	if s.publisher == nil {
		return
	}

	msg.OccurredAt = time.Now().UTC()

	err := s.publisher.SendMessage(ctx, msg)
	s.metrics.EventPublished(msg.Purpose, err)
	if err != nil {
		log.Warn("failed to publish event", slog.String("purpose", msg.Purpose), sl.Err(err))
	}
}
