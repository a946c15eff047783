// Package storagetest holds the behaviour every storage backend must share.
// Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"user_service/internal/models"
	"user_service/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Store interface {
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

	SaveRefreshToken(ctx context.Context, accountID int64, token string, expiresAt time.Time) (int64, error)
	RefreshToken(ctx context.Context, token string) (models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) (bool, error)
	DeleteAccountRefreshTokens(ctx context.Context, accountID int64) (int64, error)
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)
	CountActiveRefreshTokens(ctx context.Context, accountID int64) (int64, error)
	ListAccountRefreshTokens(ctx context.Context, accountID int64) ([]models.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldToken string, accountID int64, newToken string, expiresAt time.Time) (int64, error)
}

// Run executes the shared suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("profile", func(t *testing.T) { testProfile(t, newStore(t)) })
	t.Run("stats", func(t *testing.T) { testStats(t, newStore(t)) })
	t.Run("refresh tokens", func(t *testing.T) { testRefreshTokens(t, newStore(t)) })
	t.Run("sweep", func(t *testing.T) { testSweep(t, newStore(t)) })
	t.Run("rotate", func(t *testing.T) { testRotate(t, newStore(t)) })
	t.Run("concurrent rotate", func(t *testing.T) { testConcurrentRotate(t, newStore(t)) })
	t.Run("delete account cascades", func(t *testing.T) { testCascade(t, newStore(t)) })
}

func mustAccount(t *testing.T, s Store, email string) int64 {
	t.Helper()

	id, err := s.SaveAccount(context.Background(), "Test "+email, email, []byte("hash"), models.RoleUser)
	require.NoError(t, err)
	require.Positive(t, id)

	return id
}

func testAccounts(t *testing.T, s Store) {
	ctx := context.Background()

	id := mustAccount(t, s, "ada@example.com")

	_, err := s.SaveAccount(ctx, "Dup", "ada@example.com", []byte("x"), models.RoleUser)
	assert.ErrorIs(t, err, storage.ErrUserExists)

	a, err := s.Account(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	assert.Equal(t, models.RoleUser, a.Role)
	assert.Equal(t, models.StatusActive, a.Status)
	assert.Equal(t, []byte("hash"), a.PassHash)
	assert.False(t, a.CreatedAt.IsZero())

	_, err = s.Account(ctx, "ADA@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = s.AccountByID(ctx, id+1000)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	require.NoError(t, s.UpdateRole(ctx, id, models.RoleAdmin))
	require.NoError(t, s.SetStatus(ctx, id, models.StatusInactive))

	a, err = s.AccountByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, a.Role)
	assert.Equal(t, models.StatusInactive, a.Status)

	assert.ErrorIs(t, s.UpdateRole(ctx, id+1000, models.RoleAdmin), storage.ErrUserNotFound)
	assert.ErrorIs(t, s.SetStatus(ctx, id+1000, models.StatusActive), storage.ErrUserNotFound)

	mustAccount(t, s, "bob@example.com")
	all, err := s.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.DeleteAccount(ctx, id))
	assert.ErrorIs(t, s.DeleteAccount(ctx, id), storage.ErrUserNotFound)
}

func testProfile(t *testing.T, s Store) {
	ctx := context.Background()

	ada := mustAccount(t, s, "ada@example.com")
	mustAccount(t, s, "bob@example.com")

	exists, err := s.EmailExists(ctx, "ada@example.com", ada)
	require.NoError(t, err)
	assert.False(t, exists, "own email must not count")

	exists, err = s.EmailExists(ctx, "bob@example.com", ada)
	require.NoError(t, err)
	assert.True(t, exists)

	updated, err := s.UpdateProfile(ctx, ada, models.ProfileUpdate{
		Name:       "Ada Lovelace",
		Email:      "ada@lovelace.dev",
		Phone:      "+44 20",
		Department: "Engines",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	assert.Equal(t, "ada@lovelace.dev", updated.Email)
	assert.Equal(t, "Engines", updated.Department)
	assert.Equal(t, models.RoleUser, updated.Role)

	_, err = s.UpdateProfile(ctx, ada, models.ProfileUpdate{Name: "Ada", Email: "bob@example.com"})
	assert.ErrorIs(t, err, storage.ErrUserExists)

	_, err = s.UpdateProfile(ctx, ada+1000, models.ProfileUpdate{Name: "Nobody", Email: "nobody@example.com"})
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func testStats(t *testing.T, s Store) {
	ctx := context.Background()

	mustAccount(t, s, "a@example.com")
	b := mustAccount(t, s, "b@example.com")
	mustAccount(t, s, "c@example.com")
	require.NoError(t, s.SetStatus(ctx, b, models.StatusInactive))

	stats, err := s.Stats(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.Stats{TotalUsers: 3, ActiveUsers: 2, NewToday: 3}, stats)

	stats, err = s.Stats(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, stats.NewToday)
}

func testRefreshTokens(t *testing.T, s Store) {
	ctx := context.Background()

	id := mustAccount(t, s, "ada@example.com")
	exp := time.Now().Add(time.Hour)

	_, err := s.SaveRefreshToken(ctx, id, "token-1", exp)
	require.NoError(t, err)
	_, err = s.SaveRefreshToken(ctx, id, "token-2", exp)
	require.NoError(t, err)

	rt, err := s.RefreshToken(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, id, rt.AccountID)
	assert.Equal(t, storage.TokenHash("token-1"), rt.TokenHash)
	assert.WithinDuration(t, exp, rt.ExpiresAt, time.Second)

	_, err = s.RefreshToken(ctx, "unknown")
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound)

	n, err := s.CountActiveRefreshTokens(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := s.ListAccountRefreshTokens(ctx, id)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	deleted, err := s.DeleteRefreshToken(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteRefreshToken(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.SaveRefreshToken(ctx, id, "token-3", exp)
	require.NoError(t, err)

	removed, err := s.DeleteAccountRefreshTokens(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	n, err = s.CountActiveRefreshTokens(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testSweep(t *testing.T, s Store) {
	ctx := context.Background()

	id := mustAccount(t, s, "ada@example.com")

	_, err := s.SaveRefreshToken(ctx, id, "expired-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = s.SaveRefreshToken(ctx, id, "expired-2", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = s.SaveRefreshToken(ctx, id, "live", time.Now().Add(time.Hour))
	require.NoError(t, err)

	n, err := s.CountActiveRefreshTokens(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "expired records are not active")

	removed, err := s.DeleteExpiredRefreshTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = s.RefreshToken(ctx, "live")
	require.NoError(t, err)
	_, err = s.RefreshToken(ctx, "expired-1")
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound)
}

func testRotate(t *testing.T, s Store) {
	ctx := context.Background()

	id := mustAccount(t, s, "ada@example.com")
	other := mustAccount(t, s, "bob@example.com")
	exp := time.Now().Add(time.Hour)

	_, err := s.SaveRefreshToken(ctx, id, "r1", exp)
	require.NoError(t, err)

	_, err = s.RotateRefreshToken(ctx, "r1", other, "stolen", exp)
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound, "token of another account")

	newID, err := s.RotateRefreshToken(ctx, "r1", id, "r2", exp)
	require.NoError(t, err)
	assert.Positive(t, newID)

	_, err = s.RefreshToken(ctx, "r1")
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound)
	_, err = s.RefreshToken(ctx, "r2")
	require.NoError(t, err)

	_, err = s.RotateRefreshToken(ctx, "r1", id, "r3", exp)
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound)
	_, err = s.RefreshToken(ctx, "r3")
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound, "losing rotation must not insert")
}

func testConcurrentRotate(t *testing.T, s Store) {
	ctx := context.Background()

	id := mustAccount(t, s, "ada@example.com")
	exp := time.Now().Add(time.Hour)

	_, err := s.SaveRefreshToken(ctx, id, "r1", exp)
	require.NoError(t, err)

	const workers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		losses    int
	)

	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, err := s.RotateRefreshToken(ctx, "r1", id, "next-"+string(rune('a'+i)), exp)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound):
				losses++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, losses)

	n, err := s.CountActiveRefreshTokens(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testCascade(t *testing.T, s Store) {
	ctx := context.Background()

	id := mustAccount(t, s, "ada@example.com")

	_, err := s.SaveRefreshToken(ctx, id, "r1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, s.DeleteAccount(ctx, id))

	_, err = s.RefreshToken(ctx, "r1")
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound)
}
