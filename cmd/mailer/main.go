package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/config"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/mailer"
	pkgconfig "github.com/Ritik272004/PROJMANAGEMENT/pkg/config"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New("auth-mailer", cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting auth mailer",
		slog.String("environment", cfg.Environment),
		slog.String("group", cfg.MailerGroupID),
		slog.Any("brokers", cfg.KafkaBrokers),
	)

	worker, err := mailer.NewWorker(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize mailer: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := worker.Run(ctx); err != nil {
		return fmt.Errorf("run mailer: %w", err)
	}

	log.Info("auth mailer stopped")
	return nil
}
