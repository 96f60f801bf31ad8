package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the queue.
type Config struct {
	App      AppConfig
	Queue    QueueConfig
	Snapshot SnapshotConfig
	Audit    AuditConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Metrics  MetricsConfig
}

// AppConfig names the running instance.
type AppConfig struct {
	Name string
	Env  string
}

// QueueConfig controls the durable queue.
type QueueConfig struct {
	LogPath      string
	SnapshotPath string
	// Capacity bounds live tickets; 0 means unbounded.
	Capacity     int
	AutoSnapshot bool
}

// SnapshotConfig holds snapshot key material. Key takes precedence over
// Passphrase.
type SnapshotConfig struct {
	Key        string
	Passphrase string
	Salt       string
}

// AuditConfig selects audit sinks.
type AuditConfig struct {
	Dir             string
	RedisEnabled    bool
	PostgresEnabled bool
	RedisKey        string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior. Format is "json" or "console".
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines session token parameters.
type AuthConfig struct {
	TokenSecret     string
	TokenTTLMinutes int
}

// MetricsConfig controls the prometheus textfile written on exit.
type MetricsConfig struct {
	TextfilePath string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	capacity := getEnvAsInt("QUEUE_CAPACITY", 10000)
	if capacity < 0 {
		capacity = 10000
	}

	cfg := &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "ticketq"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Queue: QueueConfig{
			LogPath:      getEnv("QUEUE_LOG_PATH", "ticketsLog.csv"),
			SnapshotPath: getEnv("QUEUE_SNAPSHOT_PATH", "tickets.snapshot"),
			Capacity:     capacity,
			AutoSnapshot: getEnvAsBool("QUEUE_AUTO_SNAPSHOT", true),
		},
		Snapshot: SnapshotConfig{
			Key:        os.Getenv("SNAPSHOT_KEY"),
			Passphrase: os.Getenv("SNAPSHOT_PASSPHRASE"),
			Salt:       os.Getenv("SNAPSHOT_SALT"),
		},
		Audit: AuditConfig{
			Dir:             getEnv("AUDIT_DIR", "."),
			RedisEnabled:    getEnvAsBool("AUDIT_REDIS_ENABLED", false),
			PostgresEnabled: getEnvAsBool("AUDIT_POSTGRES_ENABLED", false),
			RedisKey:        getEnv("AUDIT_REDIS_KEY", "ticketq:audit"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 0)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			TokenSecret:     getEnv("AUTH_TOKEN_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 480),
		},
		Metrics: MetricsConfig{
			TextfilePath: os.Getenv("METRICS_TEXTFILE"),
		},
	}

	return cfg, nil
}

// TokenTTL returns the session token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	if a.TokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(a.TokenTTLMinutes) * time.Minute
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
