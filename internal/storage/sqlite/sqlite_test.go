package sqlite

import (
	"context"
	"testing"

	"user_service/internal/storage/storagetest"

	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()

	repo, err := Open(memoryPath)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	require.NoError(t, repo.Migrate(context.Background()))

	return repo
}

func TestSQLiteRepo(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		return newTestRepo(t)
	})
}

func TestSQLiteRepo_Ping(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.Ping(context.Background()))
}
