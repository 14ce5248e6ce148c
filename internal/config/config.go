package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Role        string
	Environment string
	HTTPAddr    string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Task      TaskConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type RateLimitConfig struct {
	Enabled bool

	WeatherIngestLocationRate  float64
	WeatherIngestLocationBurst int
	WeatherIngestLockTTL       time.Duration
}

type TaskConfig struct {
	PollInterval      time.Duration
	BatchSize         int
	Concurrency       int
	TaskTimeout       time.Duration
	RecoveryThreshold time.Duration
	MaxAttempts       int
	RetryBackoff      time.Duration
	BackfillSchedule  string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "turfkeeper"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Role:         normalizeRole(getenv("APP_ROLE", RoleAll)),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       getenvInt64("NODE_ID", 1),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "turfkeeper"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		RateLimit: RateLimitConfig{
			Enabled:                    getenvBool("RATE_LIMIT_ENABLED", false),
			WeatherIngestLocationRate:  getenvFloat("RATE_LIMIT_WEATHER_INGEST_RATE", 2),
			WeatherIngestLocationBurst: int(getenvInt64("RATE_LIMIT_WEATHER_INGEST_BURST", 10)),
			WeatherIngestLockTTL:       getenvDuration("RATE_LIMIT_WEATHER_INGEST_LOCK_TTL", 30*time.Second),
		},
		Task: TaskConfig{
			PollInterval:      getenvDuration("TASK_POLL_INTERVAL", 2*time.Second),
			BatchSize:         int(getenvInt64("TASK_BATCH_SIZE", 20)),
			Concurrency:       int(getenvInt64("TASK_CONCURRENCY", 4)),
			TaskTimeout:       getenvDuration("TASK_TIMEOUT", 2*time.Minute),
			RecoveryThreshold: getenvDuration("TASK_RECOVERY_THRESHOLD", 15*time.Minute),
			MaxAttempts:       int(getenvInt64("TASK_MAX_ATTEMPTS", 3)),
			RetryBackoff:      getenvDuration("TASK_RETRY_BACKOFF", 10*time.Second),
			BackfillSchedule:  strings.TrimSpace(getenv("TASK_BACKFILL_SCHEDULE", "30 3 * * *")),
		},
	}

	return cfg
}

const (
	RoleAll    = "all"
	RoleAPI    = "api"
	RoleWorker = "worker"
)

// RunsAPI reports whether this process serves HTTP.
func (c Config) RunsAPI() bool {
	return c.Role == RoleAll || c.Role == RoleAPI
}

// RunsWorker reports whether this process executes background tasks.
func (c Config) RunsWorker() bool {
	return c.Role == RoleAll || c.Role == RoleWorker
}

func normalizeRole(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case RoleAPI, RoleWorker:
		return value
	default:
		return RoleAll
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
