package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/report"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/source"
)

var envKeys = []string{
	"CACHE_TTL_SECONDS", "REPORT_OUTPUT_DIR", "CO2_THRESHOLD", "TEMP_THRESHOLD",
	"REPORT_TYPES", "CSV_SOURCE_PATH", "SQLITE_SOURCE_PATH", "SQLITE_SOURCE_QUERY",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_GROUP_ID", "KAFKA_MAX_MESSAGES",
	"KAFKA_POLL_TIMEOUT", "INGEST_INTERVAL", "METRICS_ADDR", "ECOWATCH_CONFIG_PATH",
}

// clearEnv unsets every variable the loader reads, restoring them after the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		if old, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { os.Setenv(key, old) })
		}
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "reports_output", cfg.Reports.OutputDir)
	assert.Equal(t, 800.0, cfg.Reports.CO2Threshold)
	assert.Equal(t, 30.0, cfg.Reports.TempThreshold)
	assert.Equal(t, []string{"room_status", "critical_alerts"}, cfg.Reports.Types)
	assert.Equal(t, DefaultCSVPath, cfg.Sources.CSV.Path)
	assert.Equal(t, source.DefaultColumns, cfg.Sources.CSV.Columns)
	assert.Empty(t, cfg.Sources.SQLite.Path)
	assert.Equal(t, source.DefaultSQLiteQuery, cfg.Sources.SQLite.Query)
	assert.Empty(t, cfg.Sources.Kafka.Brokers)
	assert.Equal(t, "ecowatch.readings", cfg.Sources.Kafka.Topic)
	assert.Equal(t, 1000, cfg.Sources.Kafka.MaxMessages)
	assert.Equal(t, 2*time.Second, cfg.Sources.Kafka.PollTimeout)
	assert.Zero(t, cfg.Run.Interval)
	assert.Empty(t, cfg.Run.MetricsAddr)

	types, err := cfg.ReportTypes()
	require.NoError(t, err)
	assert.Equal(t, []report.Type{report.TypeRoomStatus, report.TypeCriticalAlerts}, types)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_TTL_SECONDS", "60")
	t.Setenv("REPORT_OUTPUT_DIR", "/tmp/out")
	t.Setenv("CO2_THRESHOLD", "1000")
	t.Setenv("TEMP_THRESHOLD", "not-a-number")
	t.Setenv("REPORT_TYPES", "critical_alerts")
	t.Setenv("CSV_SOURCE_PATH", "")
	t.Setenv("SQLITE_SOURCE_PATH", "readings.db")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("KAFKA_MAX_MESSAGES", "50")
	t.Setenv("INGEST_INTERVAL", "30s")
	t.Setenv("METRICS_ADDR", ":9100")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "/tmp/out", cfg.Reports.OutputDir)
	assert.Equal(t, 1000.0, cfg.Reports.CO2Threshold)
	assert.Equal(t, 30.0, cfg.Reports.TempThreshold, "invalid values fall back to the default")
	assert.Equal(t, []string{"critical_alerts"}, cfg.Reports.Types)
	assert.Empty(t, cfg.Sources.CSV.Path, "an empty path disables the CSV source")
	assert.Equal(t, "readings.db", cfg.Sources.SQLite.Path)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Sources.Kafka.Brokers)
	assert.Equal(t, 50, cfg.Sources.Kafka.MaxMessages)
	assert.Equal(t, 30*time.Second, cfg.Run.Interval)
	assert.Equal(t, ":9100", cfg.Run.MetricsAddr)
}

func TestLoadFromEnvErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unparsable ttl", key: "CACHE_TTL_SECONDS", value: "five"},
		{name: "zero ttl", key: "CACHE_TTL_SECONDS", value: "0"},
		{name: "unknown report type", key: "REPORT_TYPES", value: "room_status,weekly"},
		{name: "negative interval", key: "INGEST_INTERVAL", value: "-1s"},
		{name: "missing config file", key: "ECOWATCH_CONFIG_PATH", value: "/nonexistent/ecowatch.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := LoadFromEnv()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "ecowatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  ttl: 2m
reports:
  co2Threshold: 1200
  types:
    - room_status
sources:
  csv:
    path: export.csv
    columns:
      ts: timestamp
      kind: sensor_type
      where: room
      t: temperature
      h: humidity
      co2: co2_level
  kafka:
    brokers: [broker-1:9092, broker-2:9092]
    pollTimeout: 500ms
run:
  interval: 30s
`), 0644))
	t.Setenv("ECOWATCH_CONFIG_PATH", path)
	t.Setenv("TEMP_THRESHOLD", "35")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 1200.0, cfg.Reports.CO2Threshold)
	assert.Equal(t, 35.0, cfg.Reports.TempThreshold, "keys absent from the file keep the env value")
	assert.Equal(t, []string{"room_status"}, cfg.Reports.Types)
	assert.Equal(t, "export.csv", cfg.Sources.CSV.Path)
	assert.Equal(t, "co2_level", cfg.Sources.CSV.Columns["co2"])
	assert.NotContains(t, cfg.Sources.CSV.Columns, "Timestamp", "a columns mapping replaces the defaults")
	assert.Len(t, cfg.Sources.CSV.Columns, 6)
	assert.Equal(t, report.Options{CO2Threshold: 1200, TempThreshold: 35}, cfg.ReportOptions())

	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 30*time.Second, cfg.Run.Interval)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Sources.Kafka.Brokers)
	assert.Equal(t, 500*time.Millisecond, cfg.Sources.Kafka.PollTimeout)
	assert.Equal(t, DefaultKafkaTopic, cfg.Sources.Kafka.Topic)
}

func TestLoadConfigFileKeepsDefaultColumns(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "ecowatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  csv:\n    path: export.csv\n"), 0644))
	t.Setenv("ECOWATCH_CONFIG_PATH", path)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "export.csv", cfg.Sources.CSV.Path)
	assert.Equal(t, source.DefaultColumns, cfg.Sources.CSV.Columns)
}

func TestLoadConfigFileInvalidYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reports: [unterminated"), 0644))
	t.Setenv("ECOWATCH_CONFIG_PATH", path)

	_, err := LoadFromEnv()
	assert.Error(t, err)
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CACHE_TTL_SECONDS=120\n"), 0644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv("CACHE_TTL_SECONDS")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Cache:   CacheConfig{TTL: time.Minute},
			Reports: ReportsConfig{OutputDir: "out", CO2Threshold: 800, TempThreshold: 30, Types: []string{"room_status"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no output dir", mutate: func(c *Config) { c.Reports.OutputDir = "" }, wantErr: true},
		{name: "negative co2 threshold", mutate: func(c *Config) { c.Reports.CO2Threshold = -1 }, wantErr: true},
		{name: "kafka without topic", mutate: func(c *Config) {
			c.Sources.Kafka = KafkaConfig{Brokers: []string{"k:9092"}, MaxMessages: 1, PollTimeout: time.Second}
		}, wantErr: true},
		{name: "kafka complete", mutate: func(c *Config) {
			c.Sources.Kafka = KafkaConfig{Brokers: []string{"k:9092"}, Topic: "t", MaxMessages: 1, PollTimeout: time.Second}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
