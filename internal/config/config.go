package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/accounts/pkg/config"
	"github.com/utafrali/accounts/pkg/database"
	"github.com/utafrali/accounts/pkg/tracing"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the accounts service.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"accounts"`
	ServerName  string `env:"SERVER_NAME" envDefault:"Accounts"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// PostgreSQL
	PostgresHost       string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort       int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser       string        `env:"POSTGRES_USER" envDefault:"accounts"`
	PostgresPass       string        `env:"POSTGRES_PASSWORD" envDefault:"accounts_secret"`
	PostgresDB         string        `env:"POSTGRES_DB" envDefault:"accounts"`
	PostgresSSL        string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer        string        `env:"JWT_ISSUER" envDefault:"accounts"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	JWTResetExpiry   time.Duration `env:"JWT_RESET_TOKEN_EXPIRY" envDefault:"10m"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// OTP
	OTPLength        int           `env:"OTP_LENGTH" envDefault:"6"`
	OTPExpiry        time.Duration `env:"OTP_EXPIRY" envDefault:"5m"`
	OTPMaxAttempts   int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	OTPAttemptWindow time.Duration `env:"OTP_ATTEMPT_WINDOW" envDefault:"15m"`

	// Avatars
	AvatarStorage       string        `env:"AVATAR_STORAGE" envDefault:"local"`
	AvatarRoot          string        `env:"AVATAR_ROOT" envDefault:"./uploads/avatars"`
	AvatarDeleteTimeout time.Duration `env:"AVATAR_DELETE_TIMEOUT" envDefault:"10s"`

	// HTTP edge
	CORSAllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	CORSAllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	AuthRateLimit        int      `env:"AUTH_RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	MetricsAllowedCIDRs  []string `env:"METRICS_ALLOWED_CIDRS" envSeparator:","`

	// Tracing
	TracingEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	TracingEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	TracingInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceVersion    string  `env:"SERVICE_VERSION" envDefault:"dev"`
}

// Load reads configuration from the environment, after loading any of the
// given .env files that exist.
func Load(envFiles ...string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, envFiles...); err != nil {
		return nil, fmt.Errorf("load accounts config: %w", err)
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

	durations := map[string]time.Duration{
		"JWT_ACCESS_TOKEN_EXPIRY":  c.JWTAccessExpiry,
		"JWT_REFRESH_TOKEN_EXPIRY": c.JWTRefreshExpiry,
		"JWT_RESET_TOKEN_EXPIRY":   c.JWTResetExpiry,
		"OTP_EXPIRY":               c.OTPExpiry,
		"OTP_ATTEMPT_WINDOW":       c.OTPAttemptWindow,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.OTPLength < 4 || c.OTPLength > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", c.OTPLength)
	}
	if c.OTPMaxAttempts < 1 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be at least 1, got %d", c.OTPMaxAttempts)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}

	switch c.AvatarStorage {
	case "local", "memory":
	default:
		return fmt.Errorf("AVATAR_STORAGE must be \"local\" or \"memory\", got %q", c.AvatarStorage)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	// Outside development, require an explicitly set, strong JWT secret.
	if !c.IsDevelopment() {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}

	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Postgres returns the pool configuration for the accounts database.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	return pg
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// Tracing returns the OpenTelemetry configuration.
func (c *Config) Tracing() tracing.Config {
	tc := tracing.DefaultConfig(c.ServiceName)
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.TracingEndpoint
	tc.SampleRate = c.TracingSampleRate
	tc.Insecure = c.TracingInsecure
	tc.ServiceVersion = c.ServiceVersion
	tc.Enabled = c.TracingEnabled
	return tc
}
