package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	AI           AIConfig
	Queue        QueueConfig
	Maintenance  MaintenanceConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	Locale                string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// AIConfig configures the text-generation provider. An empty APIKey selects
// the heuristic analyzer only.
type AIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// QueueConfig controls the enrichment queue and its workers.
type QueueConfig struct {
	KeyPrefix    string
	Workers      int
	MaxAttempts  int
	Backoff      time.Duration
	PollTimeout  time.Duration
	LeaseTTL     time.Duration
	LeaseRetry   time.Duration
	ShutdownWait time.Duration
}

// MaintenanceConfig drives the scheduled housekeeping jobs.
type MaintenanceConfig struct {
	Enabled           bool
	ProcessingTimeout time.Duration
	ReaperInterval    time.Duration
	StaleAfter        time.Duration
	PurgeAfter        time.Duration
	CleanupCron       string
}

// NotificationConfig controls outbound enrichment notifications. An empty
// WebhookURL only logs events.
type NotificationConfig struct {
	WebhookURL     string
	WebhookTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	temperature, err := strconv.ParseFloat(getEnv("AI_TEMPERATURE", "0.3"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AI_TEMPERATURE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-enrichment-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			Locale:                strings.ToLower(getEnv("APP_LOCALE", "en")),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		AI: AIConfig{
			APIKey:      strings.TrimSpace(os.Getenv("AI_API_KEY")),
			Model:       getEnv("AI_MODEL", "gpt-3.5-turbo"),
			BaseURL:     strings.TrimRight(getEnv("AI_BASE_URL", "https://api.openai.com/v1"), "/"),
			Timeout:     getEnvAsDuration("AI_TIMEOUT", 30*time.Second),
			Temperature: temperature,
			MaxTokens:   getEnvAsInt("AI_MAX_TOKENS", 500),
		},
		Queue: QueueConfig{
			KeyPrefix:    getEnv("QUEUE_KEY_PREFIX", "enrichment"),
			Workers:      getEnvAsInt("QUEUE_WORKERS", 4),
			MaxAttempts:  getEnvAsInt("QUEUE_MAX_ATTEMPTS", 3),
			Backoff:      getEnvAsDuration("QUEUE_BACKOFF", 60*time.Second),
			PollTimeout:  getEnvAsDuration("QUEUE_POLL_TIMEOUT", 2*time.Second),
			LeaseTTL:     getEnvAsDuration("QUEUE_LEASE_TTL", 2*time.Minute),
			LeaseRetry:   getEnvAsDuration("QUEUE_LEASE_RETRY", 5*time.Second),
			ShutdownWait: getEnvAsDuration("QUEUE_SHUTDOWN_WAIT", 45*time.Second),
		},
		Maintenance: MaintenanceConfig{
			Enabled:           getEnvAsBool("MAINTENANCE_ENABLED", true),
			ProcessingTimeout: getEnvAsDuration("MAINTENANCE_PROCESSING_TIMEOUT", 10*time.Minute),
			ReaperInterval:    getEnvAsDuration("MAINTENANCE_REAPER_INTERVAL", time.Minute),
			StaleAfter:        getEnvAsDuration("MAINTENANCE_STALE_AFTER", 7*24*time.Hour),
			PurgeAfter:        getEnvAsDuration("MAINTENANCE_PURGE_AFTER", 14*24*time.Hour),
			CleanupCron:       getEnv("MAINTENANCE_CLEANUP_CRON", "0 3 * * *"),
		},
		Notification: NotificationConfig{
			WebhookURL:     strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_URL")),
			WebhookTimeout: getEnvAsDuration("NOTIFY_WEBHOOK_TIMEOUT", 5*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the workers cannot run with.
func (c *Config) Validate() error {
	if c.Queue.Workers < 1 {
		return fmt.Errorf("QUEUE_WORKERS must be greater than 0")
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be greater than 0")
	}
	if c.Queue.Backoff < 0 {
		return fmt.Errorf("QUEUE_BACKOFF must not be negative")
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ProviderEnabled reports whether a provider credential is configured.
func (a AIConfig) ProviderEnabled() bool {
	return a.APIKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsDuration accepts Go duration strings ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(val); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
