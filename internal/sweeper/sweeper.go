// Package sweeper periodically removes expired refresh token records.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"user_service/internal/lib/logger/sl"
	"user_service/internal/metrics"

	"github.com/robfig/cron/v3"
)

const runTimeout = time.Minute

type Store interface {
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)
}

type Sweeper struct {
	log     *slog.Logger
	store   Store
	metrics *metrics.Metrics
	cron    *cron.Cron
}

func New(log *slog.Logger, store Store, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		log:     log.With(slog.String("component", "sweeper")),
		store:   store,
		metrics: m,
		cron:    cron.New(cron.WithLocation(time.UTC)),
	}
}

// * Run does a single sweep pass.
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	const op = "sweeper.Run"

	log := s.log.With(slog.String("op", op))

	removed, err := s.store.DeleteExpiredRefreshTokens(ctx)
	s.metrics.Sweep(removed, err)
	if err != nil {
		log.Error("sweep failed", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("sweep finished", slog.Int64("removed", removed))

	return removed, nil
}

// * Start schedules Run on a cron spec such as "@every 1h" or "0 * * * *".
func (s *Sweeper) Start(schedule string) error {
	const op = "sweeper.Start"

	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		_, _ = s.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.cron.Start()
	s.log.Info("sweeper started", slog.String("schedule", schedule))

	return nil
}

// Stop waits for a running pass to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()

	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("sweeper stop timed out")
	}
}
