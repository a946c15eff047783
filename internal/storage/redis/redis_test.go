package redis

import (
	"context"
	"testing"
	"time"

	"user_service/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*RedisRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	repo, err := New(context.Background(), config.Redis{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	return repo, mr
}

func TestMarkRotated(t *testing.T) {
	t.Parallel()

	repo, mr := newTestRepo(t)
	ctx := context.Background()

	_, ok, err := repo.WasRotated(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)

	first, err := repo.MarkRotated(ctx, "r1", 7, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, first)

	again, err := repo.MarkRotated(ctx, "r1", 7, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, again)

	accountID, ok, err := repo.WasRotated(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), accountID)

	for _, key := range mr.Keys() {
		assert.NotContains(t, key, "r1", "raw tokens must not be used as keys")
	}
}

func TestMarkRotated_ExpiresWithToken(t *testing.T) {
	t.Parallel()

	repo, mr := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.MarkRotated(ctx, "r1", 7, time.Now().Add(time.Minute))
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, ok, err := repo.WasRotated(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkRotated_AlreadyExpired(t *testing.T) {
	t.Parallel()

	repo, mr := newTestRepo(t)

	ok, err := repo.MarkRotated(context.Background(), "r1", 7, time.Now().Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, mr.Keys())
}

func TestNew_Unreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, config.Redis{Address: addr})
	require.Error(t, err)
}
