// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Defaults used when the environment leaves a setting empty.
const (
	DefaultDatasetPath    = "~/test_dataset"
	DefaultSourceURI      = "gs://gresearch/robotics"
	DefaultDatasetVersion = "0.1.0"
	DefaultSplit          = "train"
	DefaultSampleSize     = 10
	DefaultSeed           = 42
	metaDBFileName        = "fogx_meta.sqlite"
)

// StorageConfig holds credentials for the object stores RT-X data can be read from.
type StorageConfig struct {
	// S3 fields are optional and nil when not configured.
	S3KeyID    *string
	S3Secret   *string
	S3Endpoint *string
	S3Region   *string

	GCSKeyFile string // service account key file; empty means anonymous access

	AzureAccountName string
	AzureAccountKey  string
}

// HasS3Config returns true if all required S3 fields are set.
func (s *StorageConfig) HasS3Config() bool {
	return s.S3KeyID != nil && s.S3Secret != nil &&
		s.S3Endpoint != nil && s.S3Region != nil
}

// HasAzureConfig returns true when shared-key Azure credentials are present.
func (s *StorageConfig) HasAzureConfig() bool {
	return s.AzureAccountName != "" && s.AzureAccountKey != ""
}

// Config holds the configuration for dataset preparation.
type Config struct {
	DatasetPath    string // directory holding one DuckDB file per dataset
	SourceURI      string // root of the RT-X datasets (gs://, s3://, az://, file path)
	DatasetVersion string
	Split          string
	SampleSize     int
	Shuffle        bool
	Seed           uint64
	Parallelism    int
	RequestsPerSec float64 // 0 disables throttling of source reads
	MetadataOnly   bool
	MetaDBPath     string // SQLite run catalog
	LogLevel       string // log level: debug, info, warn, error (default "info")

	Storage StorageConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps a level name to an slog.Level, defaulting to Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadFromEnv loads configuration from environment variables.
// Storage credentials are optional; public GCS buckets need none.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DatasetPath:    os.Getenv("FOG_DATASET_PATH"),
		SourceURI:      os.Getenv("FOG_SOURCE_URI"),
		DatasetVersion: os.Getenv("FOG_DATASET_VERSION"),
		Split:          os.Getenv("FOG_SPLIT"),
		Shuffle:        parseBoolEnvDefault("FOG_SHUFFLE", true),
		MetadataOnly:   parseBoolEnvDefault("FOG_METADATA_ONLY", true),
		MetaDBPath:     os.Getenv("META_DB_PATH"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		SampleSize:     DefaultSampleSize,
		Seed:           DefaultSeed,
		Parallelism:    1,
	}

	if v := os.Getenv("FOG_SAMPLE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("FOG_SAMPLE_SIZE must be a positive integer, got %q", v)
		}
		cfg.SampleSize = n
	}
	if v := os.Getenv("FOG_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("FOG_SEED must be an unsigned integer, got %q", v)
		}
		cfg.Seed = n
	}
	if v := os.Getenv("FOG_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Parallelism = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid FOG_PARALLELISM %q", v))
		}
	}
	if v := os.Getenv("FOG_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.RequestsPerSec = f
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid FOG_REQUESTS_PER_SECOND %q", v))
		}
	}

	// S3 fields are optional; only set if present
	if v := os.Getenv("KEY_ID"); v != "" {
		cfg.Storage.S3KeyID = &v
	}
	if v := os.Getenv("SECRET"); v != "" {
		cfg.Storage.S3Secret = &v
	}
	if v := os.Getenv("ENDPOINT"); v != "" {
		cfg.Storage.S3Endpoint = &v
	}
	if v := os.Getenv("REGION"); v != "" {
		cfg.Storage.S3Region = &v
	}
	cfg.Storage.GCSKeyFile = os.Getenv("GCS_KEY_FILE")
	cfg.Storage.AzureAccountName = os.Getenv("AZURE_ACCOUNT_NAME")
	cfg.Storage.AzureAccountKey = os.Getenv("AZURE_ACCOUNT_KEY")

	// Defaults
	if cfg.DatasetPath == "" {
		cfg.DatasetPath = DefaultDatasetPath
	}
	if cfg.SourceURI == "" {
		cfg.SourceURI = DefaultSourceURI
	}
	if cfg.DatasetVersion == "" {
		cfg.DatasetVersion = DefaultDatasetVersion
	}
	if cfg.Split == "" {
		cfg.Split = DefaultSplit
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	expanded, err := ExpandHome(cfg.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("expand FOG_DATASET_PATH: %w", err)
	}
	cfg.DatasetPath = expanded
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = MetaDBPathFor(cfg.DatasetPath)
	}

	if strings.HasPrefix(cfg.SourceURI, "s3://") && !cfg.Storage.HasS3Config() {
		cfg.Warnings = append(cfg.Warnings, "source is s3:// but KEY_ID/SECRET/ENDPOINT/REGION are not all set")
	}
	if strings.HasPrefix(cfg.SourceURI, "az://") && !cfg.Storage.HasAzureConfig() {
		cfg.Warnings = append(cfg.Warnings, "source is az:// but AZURE_ACCOUNT_NAME/AZURE_ACCOUNT_KEY are not set")
	}

	return cfg, nil
}

// MetaDBPathFor is the default run catalog location for a dataset path.
func MetaDBPathFor(datasetPath string) string {
	return filepath.Join(datasetPath, metaDBFileName)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
