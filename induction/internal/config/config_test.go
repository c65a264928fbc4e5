package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"INDUCTION_ADDR", "INDUCTION_DB_DRIVER", "INDUCTION_DATABASE_URL", "DATABASE_URL",
		"INDUCTION_SQLITE_PATH", "INDUCTION_TIMEZONE", "INDUCTION_LOAD_CONCURRENCY",
		"INDUCTION_REDIS_ADDR", "INDUCTION_REDIS_DB", "INDUCTION_CACHE_TTL",
		"INDUCTION_KAFKA_BROKERS", "INDUCTION_KAFKA_TOPIC", "INDUCTION_PLAN_RPS", "INDUCTION_PLAN_BURST",
		"INDUCTION_CORS_ORIGINS", "INDUCTION_LOG_FORMAT", "INDUCTION_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadRequiresDatabaseURLForPostgres(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://depot@localhost/induction")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8070", cfg.Addr)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://depot@localhost/induction", cfg.DSN())
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 4, cfg.LoadConcurrency)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "induction.plans", cfg.KafkaTopic)
	assert.Equal(t, 2.0, cfg.PlanRPS)
	assert.Equal(t, 4, cfg.PlanBurst)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadSQLiteAndLists(t *testing.T) {
	clearEnv(t)
	t.Setenv("INDUCTION_DB_DRIVER", "SQLite")
	t.Setenv("INDUCTION_SQLITE_PATH", "/var/lib/induction/depot.db")
	t.Setenv("INDUCTION_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("INDUCTION_CORS_ORIGINS", "https://ops.depot.example")
	t.Setenv("INDUCTION_CACHE_TTL", "90s")
	t.Setenv("INDUCTION_PLAN_RPS", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/var/lib/induction/depot.db", cfg.DSN())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://ops.depot.example"}, cfg.CORSOrigins)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, 0.5, cfg.PlanRPS)
}

func TestLoadRejectsUnknownDriverAndZone(t *testing.T) {
	clearEnv(t)
	t.Setenv("INDUCTION_DB_DRIVER", "mysql")
	_, err := Load()
	assert.ErrorContains(t, err, "INDUCTION_DB_DRIVER")

	clearEnv(t)
	t.Setenv("INDUCTION_DB_DRIVER", "sqlite")
	t.Setenv("INDUCTION_TIMEZONE", "Not/AZone")
	_, err = Load()
	assert.ErrorContains(t, err, "INDUCTION_TIMEZONE")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Config{LogFormat: "json", LogLevel: "warn"}.NewLogger(&buf)
	logger.Info("dropped")
	logger.Warn("kept", "trainset", "TS-2001")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"trainset":"TS-2001"`)

	buf.Reset()
	Config{LogFormat: "text"}.NewLogger(&buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(`
thresholds:
  expiry_warning: 72h
  mileage_deviation: 2500
watch:
  - name: heavy
    expression: trainset.mileage > 150000.0
    alert: Heavy trainset
`))
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, rules.Thresholds.ExpiryWarning)
	assert.Equal(t, 2500.0, rules.Thresholds.MileageDeviation)
	require.Len(t, rules.Watch, 1)
	assert.Equal(t, "watch:heavy", rules.Watch[0].Name())
}

func TestParseRulesErrors(t *testing.T) {
	_, err := ParseRules([]byte("thresholds:\n  expiry_warning: soon\n"))
	assert.ErrorContains(t, err, "expiry_warning")

	_, err = ParseRules([]byte("watch:\n  - name: broken\n    expression: trainset.mileage >\n    alert: x\n"))
	assert.ErrorContains(t, err, "CEL compile error")

	_, err = ParseRules([]byte("watch: [unterminated"))
	assert.ErrorContains(t, err, "parse rules")
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, rules.Thresholds.ExpiryWarning)
	assert.Empty(t, rules.Watch)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("thresholds:\n  mileage_deviation: 8000\n"), 0o600))
	rules, err = LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, 8000.0, rules.Thresholds.MileageDeviation)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
