package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/auth"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/config"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/event"
	handler "github.com/Ritik272004/PROJMANAGEMENT/internal/handler/http"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/notify"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/repository"
	mongorepo "github.com/Ritik272004/PROJMANAGEMENT/internal/repository/mongo"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/repository/postgres"
	"github.com/Ritik272004/PROJMANAGEMENT/internal/service"
	"github.com/Ritik272004/PROJMANAGEMENT/migrations"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/database"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/health"
	pkgkafka "github.com/Ritik272004/PROJMANAGEMENT/pkg/kafka"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/middleware"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/tracing"
)

const serviceName = "auth"

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	mongo          *mongo.Client
	producer       *pkgkafka.Producer
	dispatcher     *notify.Dispatcher
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	healthHandler := health.NewHandler()

	repo, err := a.openStore(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	sender, err := a.newSender(healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.dispatcher = notify.NewDispatcher(sender, cfg.NotifyTimeout, logger)
	logger.Info("notification transport selected", slog.String("transport", sender.Name()))

	// Build the dependency graph.
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Issuer:        cfg.TokenIssuer,
		AccessSecret:  cfg.AccessTokenSecret,
		AccessTTL:     cfg.AccessTokenExpiry,
		RefreshSecret: cfg.RefreshTokenSecret,
		RefreshTTL:    cfg.RefreshTokenExpiry,
	})
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("create token manager: %w", err)
	}

	credentialService := service.NewCredentialService(
		repo,
		auth.NewHasher(cfg.PasswordHashCost, cfg.PasswordHashWorkers),
		tokens,
		auth.NewSecretGenerator(cfg.EphemeralSecretTTL),
		a.dispatcher,
		service.Links{
			Verification:  cfg.VerificationURL,
			PasswordReset: cfg.PasswordResetURL,
		},
		logger,
	)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(
		credentialService,
		healthHandler,
		handler.CookieConfig{Secure: cfg.CookieSecure},
		corsConfig,
		logger,
	)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// openStore connects the configured record store and registers its health check.
func (a *App) openStore(ctx context.Context, healthHandler *health.Handler) (repository.UserRepository, error) {
	cfg := a.cfg

	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := database.NewMongoClient(ctx, database.MongoConfig{
			URI:                    cfg.MongoURI,
			Database:               cfg.MongoDB,
			ServerSelectionTimeout: 5 * time.Second,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		a.mongo = client
		a.logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDB))

		repo := mongorepo.NewUserRepository(client.Database(cfg.MongoDB))
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		healthHandler.RegisterCritical("mongo", func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		})
		return repo, nil

	default:
		pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
			Host:            cfg.PostgresHost,
			Port:            cfg.PostgresPort,
			User:            cfg.PostgresUser,
			Password:        cfg.PostgresPass,
			DBName:          cfg.PostgresDB,
			SSLMode:         cfg.PostgresSSL,
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: cfg.DBMaxConnLifetime,
			MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		a.logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)

		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}
		if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if cfg.SlowQueryThreshold > 0 {
			database.SetSlowQueryLogging(cfg.SlowQueryThreshold, a.logger)
		}

		healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
		return postgres.NewUserRepository(pool), nil
	}
}

// newSender builds the configured notification transport.
func (a *App) newSender(healthHandler *health.Handler) (notify.Sender, error) {
	cfg := a.cfg

	switch cfg.NotifyTransport {
	case config.NotifyKafka:
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), a.logger)
		a.logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
		return event.NewNotificationPublisher(a.producer), nil

	case config.NotifySMTP:
		renderer, err := notify.NewRenderer(notify.Product{Name: cfg.MailProductName, Link: cfg.MailProductLink})
		if err != nil {
			return nil, fmt.Errorf("build mail renderer: %w", err)
		}
		sender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.MailFrom,
			Timeout:  cfg.NotifyTimeout,
		}, renderer, a.logger)
		if err != nil {
			return nil, fmt.Errorf("create smtp sender: %w", err)
		}
		return sender, nil

	default:
		return notify.NewLogSender(a.logger), nil
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Notification dispatcher (finish background sends)
// 3. Tracer, Kafka producer and record store
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Sends were started by drained requests; give them their own budget.
	mailCtx, mailCancel := context.WithTimeout(context.Background(), a.cfg.NotifyTimeout+time.Second)
	defer mailCancel()
	if err := a.dispatcher.Wait(mailCtx); err != nil {
		a.logger.Error("notification dispatcher drain error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.closeResources()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases whatever NewApp managed to open.
func (a *App) closeResources() []error {
	var errs []error

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.logger.Error("mongo disconnect error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errs
}
