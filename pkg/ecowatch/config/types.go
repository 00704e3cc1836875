package config

import (
	"fmt"
	"time"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/report"
)

// Config holds all configuration for an ecowatch run
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Reports ReportsConfig `yaml:"reports"`
	Sources SourcesConfig `yaml:"sources"`
	Run     RunConfig     `yaml:"run"`
}

// CacheConfig holds the retention window of the in-memory cache
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// ReportsConfig holds report generation settings
type ReportsConfig struct {
	OutputDir     string   `yaml:"outputDir"`
	CO2Threshold  float64  `yaml:"co2Threshold"`  // ppm
	TempThreshold float64  `yaml:"tempThreshold"` // degrees Celsius
	Types         []string `yaml:"types"`
}

// SourcesConfig holds the reading sources; a source with an empty path or broker list is disabled
type SourcesConfig struct {
	CSV    CSVConfig    `yaml:"csv"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	Kafka  KafkaConfig  `yaml:"kafka"`
}

// CSVConfig holds the CSV export source settings
type CSVConfig struct {
	Path    string            `yaml:"path"`
	Columns map[string]string `yaml:"columns"` // CSV header -> reading field
}

// SQLiteConfig holds the SQLite source settings
type SQLiteConfig struct {
	Path  string `yaml:"path"`
	Query string `yaml:"query"`
}

// KafkaConfig holds the streaming source settings
type KafkaConfig struct {
	Brokers     []string      `yaml:"brokers"`
	Topic       string        `yaml:"topic"`
	GroupID     string        `yaml:"groupId"`
	MaxMessages int           `yaml:"maxMessages"`
	PollTimeout time.Duration `yaml:"pollTimeout"`
}

// RunConfig holds process level settings
type RunConfig struct {
	Interval    time.Duration `yaml:"interval"`    // 0 runs once
	MetricsAddr string        `yaml:"metricsAddr"` // empty disables the metrics endpoint
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	if c.Reports.OutputDir == "" {
		return fmt.Errorf("report output directory is required")
	}
	if c.Reports.CO2Threshold < 0 || c.Reports.TempThreshold < -273.15 {
		return fmt.Errorf("invalid alert thresholds: co2=%v temperature=%v", c.Reports.CO2Threshold, c.Reports.TempThreshold)
	}
	if _, err := c.ReportTypes(); err != nil {
		return err
	}

	if len(c.Sources.Kafka.Brokers) > 0 {
		if c.Sources.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when brokers are set")
		}
		if c.Sources.Kafka.MaxMessages <= 0 {
			return fmt.Errorf("kafka max messages must be positive")
		}
		if c.Sources.Kafka.PollTimeout <= 0 {
			return fmt.Errorf("kafka poll timeout must be positive")
		}
	}

	if c.Run.Interval < 0 {
		return fmt.Errorf("ingest interval must not be negative")
	}
	return nil
}

// ReportTypes resolves the configured report names
func (c *Config) ReportTypes() ([]report.Type, error) {
	types := make([]report.Type, 0, len(c.Reports.Types))
	for _, name := range c.Reports.Types {
		t, err := report.ParseType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// ReportOptions returns the report constructor options
func (c *Config) ReportOptions() report.Options {
	return report.Options{
		CO2Threshold:  c.Reports.CO2Threshold,
		TempThreshold: c.Reports.TempThreshold,
	}
}
