package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/config"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/event"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/metrics"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/notify"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/database"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/health"
	pkgkafka "github.com/Ritik272004/PROJMANAGEMENT/pkg/kafka"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/middleware"
)

// idempotencyKeyPrefix namespaces processed event IDs in Redis.
const idempotencyKeyPrefix = "auth-mailer:processed"

// countingSender records delivery outcomes the same way the in-process
// dispatcher does.
type countingSender struct {
	notify.Sender
}

func (s countingSender) Send(ctx context.Context, msg *notify.Message) error {
	if err := s.Sender.Send(ctx, msg); err != nil {
		metrics.NotificationsSent.WithLabelValues(s.Name(), metrics.OutcomeFailure).Inc()
		return err
	}
	metrics.NotificationsSent.WithLabelValues(s.Name(), metrics.OutcomeSuccess).Inc()
	return nil
}

// NewHandler builds the event handler chain: events whose ID was already
// processed are skipped, the rest are delivered through sender.
func NewHandler(sender notify.Sender, store pkgkafka.IdempotencyStore, group string, logger *slog.Logger) pkgkafka.Handler {
	deliver := event.NotificationHandler(countingSender{Sender: sender}, logger)
	return pkgkafka.IdempotentHandler(store, event.TopicNotificationRequested, group, deliver, logger)
}

// Worker consumes notification.requested events and delivers them by SMTP.
type Worker struct {
	logger     *slog.Logger
	redis      *redis.Client
	consumer   *pkgkafka.Consumer
	dlq        *pkgkafka.DLQProducer
	httpServer *http.Server
}

// NewWorker connects to Redis and the SMTP relay and prepares the consumer.
func NewWorker(cfg *config.Config, logger *slog.Logger) (*Worker, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

	renderer, err := notify.NewRenderer(notify.Product{Name: cfg.MailProductName, Link: cfg.MailProductLink})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("build mail renderer: %w", err)
	}
	smtp, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.MailFrom,
		Timeout:  cfg.NotifyTimeout,
	}, renderer, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("create smtp sender: %w", err)
	}

	store := pkgkafka.NewRedisIdempotencyStore(rdb, idempotencyKeyPrefix, cfg.MailerIdempotencyTTL)
	handler := NewHandler(smtp, store, cfg.MailerGroupID, logger)

	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.MailerGroupID,
		Topic:    event.TopicNotificationRequested,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, handler, logger).WithDLQ(dlq)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	return &Worker{
		logger:   logger,
		redis:    rdb,
		consumer: consumer,
		dlq:      dlq,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MailerHTTPPort),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run consumes until ctx is canceled, then shuts down.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		w.logger.Info("starting mailer health server", slog.String("addr", w.httpServer.Addr))
		if err := w.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := w.consumer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("kafka consumer: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = w.Shutdown()
		return err
	}

	return w.Shutdown()
}

// Shutdown stops the health server and closes the consumer, DLQ writer and
// Redis client.
func (w *Worker) Shutdown() error {
	w.logger.Info("shutting down mailer...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := w.consumer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("kafka consumer: %w", err))
	}
	if err := w.dlq.Close(); err != nil {
		errs = append(errs, fmt.Errorf("dlq producer: %w", err))
	}
	if err := w.redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis: %w", err))
	}

	w.logger.Info("mailer shutdown complete")
	return errors.Join(errs...)
}
