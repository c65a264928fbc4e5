package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime settings for the induction service and tools.
type Config struct {
	Addr            string
	DBDriver        string
	DatabaseURL     string
	SQLitePath      string
	Location        *time.Location
	LoadConcurrency int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	ArchiveBucket string
	ArchivePrefix string

	SignerKeyB64 string
	SignerID     string

	PlanRPS     float64
	PlanBurst   int
	CORSOrigins []string

	RulesFile string
	LogFormat string
	LogLevel  string
}

const (
	defaultAddr            = ":8070"
	defaultDriver          = "postgres"
	defaultSQLitePath      = "induction.db"
	defaultLoadConcurrency = 4
	defaultCacheTTL        = 10 * time.Minute
	defaultKafkaTopic      = "induction.plans"
	defaultPlanRPS         = 2
	defaultPlanBurst       = 4
)

// Load reads environment variables and returns a Config.
func Load() (Config, error) {
	cfg := Config{
		Addr:            getEnv("INDUCTION_ADDR", defaultAddr),
		DBDriver:        strings.ToLower(getEnv("INDUCTION_DB_DRIVER", defaultDriver)),
		DatabaseURL:     firstNonEmpty(os.Getenv("INDUCTION_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		SQLitePath:      getEnv("INDUCTION_SQLITE_PATH", defaultSQLitePath),
		LoadConcurrency: getInt("INDUCTION_LOAD_CONCURRENCY", defaultLoadConcurrency),
		RedisAddr:       os.Getenv("INDUCTION_REDIS_ADDR"),
		RedisPassword:   os.Getenv("INDUCTION_REDIS_PASSWORD"),
		RedisDB:         getInt("INDUCTION_REDIS_DB", 0),
		CacheTTL:        getDuration("INDUCTION_CACHE_TTL", defaultCacheTTL),
		KafkaBrokers:    splitList(os.Getenv("INDUCTION_KAFKA_BROKERS")),
		KafkaTopic:      getEnv("INDUCTION_KAFKA_TOPIC", defaultKafkaTopic),
		ArchiveBucket:   os.Getenv("INDUCTION_ARCHIVE_BUCKET"),
		ArchivePrefix:   os.Getenv("INDUCTION_ARCHIVE_PREFIX"),
		SignerKeyB64:    os.Getenv("INDUCTION_SIGNER_KEY_B64"),
		SignerID:        getEnv("INDUCTION_SIGNER_ID", "induction-planner-dev"),
		PlanRPS:         getFloat("INDUCTION_PLAN_RPS", defaultPlanRPS),
		PlanBurst:       getInt("INDUCTION_PLAN_BURST", defaultPlanBurst),
		CORSOrigins:     splitList(os.Getenv("INDUCTION_CORS_ORIGINS")),
		RulesFile:       os.Getenv("INDUCTION_RULES_FILE"),
		LogFormat:       strings.ToLower(getEnv("INDUCTION_LOG_FORMAT", "json")),
		LogLevel:        strings.ToLower(getEnv("INDUCTION_LOG_LEVEL", "info")),
	}

	tz := getEnv("INDUCTION_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("INDUCTION_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	switch cfg.DBDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL or INDUCTION_DATABASE_URL is required for the postgres driver")
		}
	case "sqlite":
	default:
		return Config{}, fmt.Errorf("INDUCTION_DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver)
	}
	if cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("INDUCTION_REDIS_DB must not be negative")
	}
	return cfg, nil
}

// DSN is the connection string for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return c.DatabaseURL
}

// NewLogger builds the process logger from INDUCTION_LOG_FORMAT and
// INDUCTION_LOG_LEVEL.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
