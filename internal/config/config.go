package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/Ritik272004/PROJMANAGEMENT/pkg/config"
)

const (
	defaultAccessSecret  = "change-this-access-token-secret"
	defaultRefreshSecret = "change-this-refresh-token-secret"
	minSecretLength      = 32
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Notification transports.
const (
	NotifyLog   = "log"
	NotifySMTP  = "smtp"
	NotifyKafka = "kafka"
)

// Config holds all configuration for the auth service and the mailer worker.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"AUTH_HTTP_PORT" envDefault:"8000"`

	// Record store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"projmanagement"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"projmanagement_secret"`
	PostgresDB   string `env:"AUTH_DB_NAME" envDefault:"auth_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns         int32         `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime  time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// MongoDB
	MongoURI string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB  string `env:"MONGO_DB" envDefault:"projmanagement"`

	// Redis (mailer idempotency)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Session tokens
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET" envDefault:"change-this-access-token-secret"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET" envDefault:"change-this-refresh-token-secret"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"240h"`
	TokenIssuer        string        `env:"TOKEN_ISSUER" envDefault:"projmanagement-auth"`

	// Hashing
	PasswordHashCost    int `env:"PASSWORD_HASH_COST" envDefault:"10"`
	PasswordHashWorkers int `env:"PASSWORD_HASH_WORKERS" envDefault:"0"`

	// Verification and reset links
	EphemeralSecretTTL        time.Duration `env:"EPHEMERAL_SECRET_TTL" envDefault:"20m"`
	PublicBaseURL             string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8000"`
	ForgotPasswordRedirectURL string        `env:"FORGOT_PASSWORD_REDIRECT_URL" envDefault:"http://localhost:3000/reset-password"`
	CookieSecure              bool          `env:"COOKIE_SECURE" envDefault:"true"`

	// Notifications
	NotifyTransport string        `env:"NOTIFY_TRANSPORT" envDefault:"log"`
	NotifyTimeout   time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"15s"`
	SMTPHost        string        `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort        int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser        string        `env:"SMTP_USER" envDefault:""`
	SMTPPass        string        `env:"SMTP_PASS" envDefault:""`
	MailFrom        string        `env:"MAIL_FROM" envDefault:"mail.taskmanager@example.com"`
	MailProductName string        `env:"MAIL_PRODUCT_NAME" envDefault:"Task Manager"`
	MailProductLink string        `env:"MAIL_PRODUCT_LINK" envDefault:"https://taskmanagelink.com"`

	// Mailer worker
	MailerHTTPPort       int           `env:"MAILER_HTTP_PORT" envDefault:"8001"`
	MailerGroupID        string        `env:"MAILER_GROUP_ID" envDefault:"auth-mailer"`
	MailerIdempotencyTTL time.Duration `env:"MAILER_IDEMPOTENCY_TTL" envDefault:"24h"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.StoreDriver {
	case StorePostgres, StoreMongo:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreMongo, c.StoreDriver)
	}

	switch c.NotifyTransport {
	case NotifyLog, NotifySMTP, NotifyKafka:
	default:
		return fmt.Errorf("NOTIFY_TRANSPORT must be one of log, smtp, kafka, got %q", c.NotifyTransport)
	}

	if c.AccessTokenExpiry <= 0 || c.RefreshTokenExpiry <= 0 {
		return fmt.Errorf("token expiries must be positive")
	}
	if c.AccessTokenExpiry >= c.RefreshTokenExpiry {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRY (%s) must be shorter than REFRESH_TOKEN_EXPIRY (%s)",
			c.AccessTokenExpiry, c.RefreshTokenExpiry)
	}
	if c.EphemeralSecretTTL <= 0 {
		return fmt.Errorf("EPHEMERAL_SECRET_TTL must be positive")
	}
	// bcrypt.MinCost and bcrypt.MaxCost
	if c.PasswordHashCost < 4 || c.PasswordHashCost > 31 {
		return fmt.Errorf("PASSWORD_HASH_COST must be between 4 and 31, got %d", c.PasswordHashCost)
	}

	// In non-development environments, require explicitly set, strong and distinct secrets.
	if !c.IsDevelopment() {
		if err := checkSecret("ACCESS_TOKEN_SECRET", c.AccessTokenSecret, defaultAccessSecret); err != nil {
			return err
		}
		if err := checkSecret("REFRESH_TOKEN_SECRET", c.RefreshTokenSecret, defaultRefreshSecret); err != nil {
			return err
		}
		if c.AccessTokenSecret == c.RefreshTokenSecret {
			return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
		}
		// The log transport writes plaintext verification and reset links.
		if c.NotifyTransport == NotifyLog {
			return fmt.Errorf("NOTIFY_TRANSPORT %q is only allowed in development, use %q or %q", NotifyLog, NotifySMTP, NotifyKafka)
		}
	}
	return nil
}

func checkSecret(name, value, def string) error {
	if value == def {
		return fmt.Errorf("%s must be explicitly set via environment variable outside development", name)
	}
	if len(value) < minSecretLength {
		return fmt.Errorf("%s must be at least %d characters long, got %d", name, minSecretLength, len(value))
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// VerificationURL returns the link embedded in verification mails.
func (c *Config) VerificationURL(secret string) string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/api/v1/auth/verify-email/" + secret
}

// PasswordResetURL returns the link embedded in password reset mails.
func (c *Config) PasswordResetURL(secret string) string {
	return strings.TrimRight(c.ForgotPasswordRedirectURL, "/") + "/" + secret
}
