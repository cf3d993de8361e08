// Package config loads the synchronization core's configuration
// surface (spec.md §6) from a YAML file with environment-variable
// overrides, mirroring rcong315/RunDJServer's cmd/*/main.go pattern of
// godotenv.Load plus os.Getenv, generalized to a structured file for
// the much larger knob count this core exposes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full enumerated configuration surface of spec.md §6.
// EmergencyStop is intentionally absent: it is runtime-mutable and
// lives only in internal/safety.Gate, never loaded from a file.
type Config struct {
	MaxGlobalSyncConcurrency  int           `yaml:"max_global_sync_concurrency"`
	MaxPerAdapterConcurrency  int           `yaml:"max_per_adapter_concurrency"`
	DefaultSyncMode           string        `yaml:"default_sync_mode"`
	MatchAutoThreshold        float64       `yaml:"match_auto_threshold"`
	MatchCandidateThreshold   float64       `yaml:"match_candidate_threshold"`
	RetryMaxAttempts          int           `yaml:"retry_max_attempts"`
	RetryBaseDelayMS          int           `yaml:"retry_base_delay_ms"`
	RetryJitterRatio          float64       `yaml:"retry_jitter_ratio"`
	TestModeEnabled           bool          `yaml:"test_mode_enabled"`
	TestPrefixSet             []string      `yaml:"test_prefix_set"`

	LogLevel    string `yaml:"log_level"`
	MetricsPort string `yaml:"metrics_port"`
	HTTPPort    string `yaml:"http_port"`
	DBPath      string `yaml:"db_path"`
}

// Default returns the configuration surface's documented defaults
// (spec.md §6).
func Default() Config {
	return Config{
		MaxGlobalSyncConcurrency: 2,
		MaxPerAdapterConcurrency: 1,
		DefaultSyncMode:          "full_bidirectional",
		MatchAutoThreshold:       0.82,
		MatchCandidateThreshold:  0.60,
		RetryMaxAttempts:         5,
		RetryBaseDelayMS:         250,
		RetryJitterRatio:         0.2,
		TestModeEnabled:          false,
		TestPrefixSet:            []string{"\U0001F9EA", "[TEST]", "SELECTA_TEST_"},
		LogLevel:                 "info",
		MetricsPort:              "9090",
		HTTPPort:                 "8080",
		DBPath:                   "selecta-sync.db",
	}
}

// RetryBaseDelay is RetryBaseDelayMS as a time.Duration.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// Load reads a YAML config file (if path is non-empty and exists),
// starting from Default(), then applies environment-variable
// overrides. A .env file is loaded first (when DEBUG=true) exactly the
// way every cmd/*/main.go in the teacher does, so local development
// doesn't require exporting shell variables by hand.
func Load(path string) (Config, error) {
	if os.Getenv("DEBUG") == "true" {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: .env file not found, using system environment variables\n")
		}
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("reading config file %q: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SELECTA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SELECTA_METRICS_PORT"); v != "" {
		cfg.MetricsPort = v
	}
	if v := os.Getenv("SELECTA_HTTP_PORT"); v != "" {
		cfg.HTTPPort = v
	}
	if v := os.Getenv("SELECTA_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SELECTA_TEST_MODE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TestModeEnabled = b
		}
	}
}

// Validate rejects a configuration that would violate a downstream
// invariant (e.g. a negative concurrency bound the job queue's
// semaphore could not be constructed with).
func (c Config) Validate() error {
	if c.MaxGlobalSyncConcurrency < 1 {
		return fmt.Errorf("max_global_sync_concurrency must be >= 1, got %d", c.MaxGlobalSyncConcurrency)
	}
	if c.MaxPerAdapterConcurrency < 1 {
		return fmt.Errorf("max_per_adapter_concurrency must be >= 1, got %d", c.MaxPerAdapterConcurrency)
	}
	if c.MatchAutoThreshold < c.MatchCandidateThreshold {
		return fmt.Errorf("match_auto_threshold (%.2f) must be >= match_candidate_threshold (%.2f)", c.MatchAutoThreshold, c.MatchCandidateThreshold)
	}
	if c.RetryMaxAttempts < 0 {
		return fmt.Errorf("retry_max_attempts must be >= 0, got %d", c.RetryMaxAttempts)
	}
	return nil
}
