package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestApplyYAML(t *testing.T) {
	cfg := Default()
	err := cfg.applyYAML([]byte(`
port: "9090"
storage: memory
migrate_on_start: false
cors_origins: [https://shop.example]
commit:
  timeout: 2s
  max_attempts: 5
  price_tolerance: "0.05"
  isolation: serializable
kafka:
  brokers: [k1:9092, k2:9092]
  topic: sales.orders
outbox:
  poll_interval: 250ms
  batch_size: 20
  metrics_addr: ":9200"
tracing:
  stdout: true
`))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.False(t, cfg.MigrateOnStart)
	assert.Equal(t, []string{"https://shop.example"}, cfg.CORSOrigins)
	assert.Equal(t, 2*time.Second, cfg.CommitTimeout)
	assert.Equal(t, 5, cfg.CommitMaxAttempts)
	assert.True(t, cfg.PriceTolerance.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, "serializable", cfg.TxIsolation)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "sales.orders", cfg.KafkaTopic)
	assert.Equal(t, 250*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, 20, cfg.OutboxBatchSize)
	assert.Equal(t, ":9200", cfg.OutboxMetricsAddr)
	assert.True(t, cfg.TracesStdout)
	// untouched keys keep their defaults
	assert.Equal(t, Default().DatabaseURL, cfg.DatabaseURL)
}

func TestApplyYAML_Errors(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.applyYAML([]byte("port: [")))
	assert.Error(t, cfg.applyYAML([]byte("commit:\n  price_tolerance: abc\n")))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                 "7000",
		"DATABASE_URL":         "postgres://x",
		"STORAGE":              "MEMORY",
		"CORS_ORIGINS":         "http://a, http://b",
		"COMMIT_TIMEOUT":       "750ms",
		"COMMIT_MAX_ATTEMPTS":  "4",
		"PRICE_TOLERANCE":      "0",
		"TX_ISOLATION":         "repeatable read",
		"KAFKA_BROKERS":        "k:9092",
		"KAFKA_TOPIC":          "t",
		"OUTBOX_POLL_INTERVAL": "3s",
		"OUTBOX_BATCH_SIZE":    "7",
		"OUTBOX_METRICS_ADDR":  "",
		"OTEL_TRACES_STDOUT":   "true",
		"MIGRATE_ON_START":     "false",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "postgres://x", cfg.DatabaseURL)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORSOrigins)
	assert.Equal(t, 750*time.Millisecond, cfg.CommitTimeout)
	assert.Equal(t, 4, cfg.CommitMaxAttempts)
	assert.True(t, cfg.PriceTolerance.IsZero())
	assert.Equal(t, "repeatable read", cfg.TxIsolation)
	assert.Equal(t, []string{"k:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "t", cfg.KafkaTopic)
	assert.Equal(t, 3*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 7, cfg.OutboxBatchSize)
	assert.Equal(t, ":9102", cfg.OutboxMetricsAddr, "blank values are ignored")
	assert.True(t, cfg.TracesStdout)
	assert.False(t, cfg.MigrateOnStart)
}

func TestApplyEnv_RejectsMalformedValues(t *testing.T) {
	for _, key := range []string{"COMMIT_TIMEOUT", "COMMIT_MAX_ATTEMPTS", "PRICE_TOLERANCE", "OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE", "OTEL_TRACES_STDOUT", "MIGRATE_ON_START"} {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			err := cfg.applyEnv(func(k string) (string, bool) {
				if k == key {
					return "not-a-value", true
				}
				return "", false
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown storage", func(c *Config) { c.Storage = "sqlite" }},
		{"postgres without dsn", func(c *Config) { c.DatabaseURL = "" }},
		{"zero timeout", func(c *Config) { c.CommitTimeout = 0 }},
		{"no attempts", func(c *Config) { c.CommitMaxAttempts = 0 }},
		{"negative tolerance", func(c *Config) { c.PriceTolerance = decimal.NewFromInt(-1) }},
		{"zero batch", func(c *Config) { c.OutboxBatchSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Storage = StorageMemory
	cfg.DatabaseURL = ""
	assert.NoError(t, cfg.Validate())
}

func TestParseEnvFile(t *testing.T) {
	input := "\ufeff# comment\nexport PORT=9000\nNAME=\"quoted value\"\nSINGLE='x'\nBROKEN\n=nokey\n"
	vars, err := parseEnvFile(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"PORT":   "9000",
		"NAME":   "quoted value",
		"SINGLE": "x",
	}, vars)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("port: \"6000\"\nkafka:\n  topic: from-yaml\ncommit:\n  max_attempts: 9\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("KAFKA_TOPIC=from-dotenv\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("KAFKA_TOPIC")
	})

	t.Setenv("CONFIG_FILE", yamlPath)
	t.Setenv("PORT", "6001")

	cfg, err := Load(log.New(io.Discard, "", 0))
	require.NoError(t, err)
	assert.Equal(t, "6001", cfg.Port, "environment beats yaml")
	assert.Equal(t, "from-dotenv", cfg.KafkaTopic, ".env beats yaml")
	assert.Equal(t, 9, cfg.CommitMaxAttempts, "yaml beats defaults")
}
