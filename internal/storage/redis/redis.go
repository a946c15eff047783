package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user_service/internal/config"
	"user_service/internal/storage"

	"github.com/redis/go-redis/v9"
)

const rotatedKeyPrefix = "refresh:rotated:"

// RedisRepo remembers which refresh tokens were already rotated, so that a
// second presentation of the same token can be told apart from a token that
// never existed.
type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, cfg config.Redis) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

// * MarkRotated records that token has been exchanged. The marker lives until
// the token itself would have expired; after that a replay fails on the
// signature check anyway. Returns false if the token was already marked.
func (r *RedisRepo) MarkRotated(ctx context.Context, token string, accountID int64, expiresAt time.Time) (bool, error) {
	const op = "storage.redis.MarkRotated"

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return false, nil
	}

	// SETNX keeps the first marker if two rotations race
	ok, err := r.client.SetNX(ctx, rotatedKey(token), accountID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return ok, nil
}

// * WasRotated returns the account id the token belonged to when it was
// rotated, or ok=false if it never was.
func (r *RedisRepo) WasRotated(ctx context.Context, token string) (accountID int64, ok bool, err error) {
	const op = "storage.redis.WasRotated"

	accountID, err = r.client.Get(ctx, rotatedKey(token)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("%s: %w", op, err)
	}

	return accountID, true, nil
}

// * Close closes the client.
func (r *RedisRepo) Close() {
	r.client.Close()
}

func rotatedKey(token string) string {
	return rotatedKeyPrefix + storage.TokenHash(token)
}
