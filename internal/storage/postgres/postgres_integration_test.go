//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"user_service/internal/storage/storagetest"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupPostgres(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("docker not available, skipping integration tests")
	}
	defer provider.Close()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("user_service_test"),
		tcpostgres.WithUsername("user_service"),
		tcpostgres.WithPassword("user_service"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := ctr.Terminate(cleanupCtx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	return dsn
}

func TestPostgresRepo(t *testing.T) {
	dsn := setupPostgres(t)

	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		ctx := context.Background()

		repo, err := Open(ctx, dsn, 10, 1)
		require.NoError(t, err)
		t.Cleanup(repo.Close)

		require.NoError(t, repo.Migrate(ctx))
		_, err = repo.pool.Exec(ctx, `TRUNCATE accounts, refresh_tokens RESTART IDENTITY CASCADE`)
		require.NoError(t, err)

		return repo
	})
}
