package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"user_service/internal/config"
	"user_service/internal/lib/logger/sl"
	"user_service/internal/notifier"
	"user_service/internal/rabbitmq"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoadNotifier("./config/config.yaml")
	log := setupLogger(cfg.Env)

	log.Info("starting notifier", slog.String("env", cfg.Env))

	if err := run(ctx, cfg, log); err != nil {
		log.Error("notifier stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("notifier gracefully stopped")
}

func run(ctx context.Context, cfg *config.Notifier, log *slog.Logger) error {
	broker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		return err
	}
	defer broker.Close()

	n := notifier.New(log, notifier.NewMailer(cfg.SMTP))

	log.Info("consumer started", slog.String("queue", cfg.RabbitMQ.QueueName))

	return broker.Consume(ctx, n.Handle)
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
