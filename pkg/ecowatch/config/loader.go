package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/report"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/source"
)

// Defaults
const (
	DefaultCacheTTLSeconds = 300
	DefaultOutputDir       = "reports_output"
	DefaultCSVPath         = "logs_ambientales_ecowatch.csv"
	DefaultKafkaTopic      = "ecowatch.readings"
	DefaultKafkaGroupID    = "ecowatch"
	DefaultReportTypes     = "room_status,critical_alerts"
)

// Load reads a .env file from the working directory if there is one, then
// builds the configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		klog.V(2).InfoS("Ignoring unreadable .env file", "err", err)
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}

	klog.V(2).InfoS("Loaded configuration",
		"cacheTTL", cfg.Cache.TTL,
		"outputDir", cfg.Reports.OutputDir,
		"reportTypes", cfg.Reports.Types,
		"csvSource", cfg.Sources.CSV.Path,
		"sqliteSource", cfg.Sources.SQLite.Path,
		"kafkaBrokers", cfg.Sources.Kafka.Brokers,
		"interval", cfg.Run.Interval)

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables, then applies
// the YAML file named by ECOWATCH_CONFIG_PATH, if any.
func LoadFromEnv() (*Config, error) {
	ttlSeconds := DefaultCacheTTLSeconds
	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_TTL_SECONDS %q: %w", v, err)
		}
		ttlSeconds = n
	}

	cfg := &Config{
		Cache: CacheConfig{
			TTL: time.Duration(ttlSeconds) * time.Second,
		},
		Reports: ReportsConfig{
			OutputDir:     getEnvOrDefault("REPORT_OUTPUT_DIR", DefaultOutputDir),
			CO2Threshold:  getFloatOrDefault("CO2_THRESHOLD", report.DefaultCO2Threshold),
			TempThreshold: getFloatOrDefault("TEMP_THRESHOLD", report.DefaultTempThreshold),
			Types:         splitList(getEnvOrDefault("REPORT_TYPES", DefaultReportTypes)),
		},
		Sources: SourcesConfig{
			CSV: CSVConfig{
				Path:    getEnvOrDefault("CSV_SOURCE_PATH", DefaultCSVPath),
				Columns: defaultColumns(),
			},
			SQLite: SQLiteConfig{
				Path:  os.Getenv("SQLITE_SOURCE_PATH"),
				Query: getEnvOrDefault("SQLITE_SOURCE_QUERY", source.DefaultSQLiteQuery),
			},
			Kafka: KafkaConfig{
				Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
				Topic:       getEnvOrDefault("KAFKA_TOPIC", DefaultKafkaTopic),
				GroupID:     getEnvOrDefault("KAFKA_GROUP_ID", DefaultKafkaGroupID),
				MaxMessages: getIntOrDefault("KAFKA_MAX_MESSAGES", 1000),
				PollTimeout: getDurationOrDefault("KAFKA_POLL_TIMEOUT", 2*time.Second),
			},
		},
		Run: RunConfig{
			Interval:    getDurationOrDefault("INGEST_INTERVAL", 0),
			MetricsAddr: os.Getenv("METRICS_ADDR"),
		},
	}

	// CSV_SOURCE_PATH set to an empty value disables the CSV source
	if v, ok := os.LookupEnv("CSV_SOURCE_PATH"); ok && v == "" {
		cfg.Sources.CSV.Path = ""
	}

	if path := os.Getenv("ECOWATCH_CONFIG_PATH"); path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %v", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}

	return cfg, nil
}

// loadConfigFile overlays the YAML file at path onto cfg. Keys absent from
// the file keep their current value; a columns mapping replaces the default
// one instead of merging with it.
func loadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %v", path, err)
	}

	columns := cfg.Sources.CSV.Columns
	cfg.Sources.CSV.Columns = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %v", path, err)
	}
	if len(cfg.Sources.CSV.Columns) == 0 {
		cfg.Sources.CSV.Columns = columns
	}
	return nil
}

func defaultColumns() map[string]string {
	columns := make(map[string]string, len(source.DefaultColumns))
	for k, v := range source.DefaultColumns {
		columns[k] = v
	}
	return columns
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.Atoi(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid integer value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.ParseFloat(strValue, 64); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid float value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := time.ParseDuration(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid duration value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}
