package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to run the verify engine.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Data        DataConfig        `yaml:"data"`
	Validation  ValidationConfig  `yaml:"validation"`
	History     HistoryConfig     `yaml:"history"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig controls the HTTP listeners in serve mode.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// CalibrationConfig points at the conformal calibration parameter file.
type CalibrationConfig struct {
	Path string `yaml:"path"`
}

// DataConfig controls where trajectory records are read from.
type DataConfig struct {
	// Dir is the default directory searched for trajectory files.
	Dir string `yaml:"dir"`
	// Pattern is the glob applied inside Dir.
	Pattern string `yaml:"pattern"`
	// Workers bounds the batch validation pool.
	Workers int `yaml:"workers"`
	// CacheTTL keeps parsed trajectories memoised in serve mode; zero
	// disables caching.
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// ValidationConfig fixes the pass/fail comparison.
type ValidationConfig struct {
	Tolerance float64 `yaml:"tolerance"`
	// Policy is "one-sided" (default) or "symmetric".
	Policy string `yaml:"policy"`
}

// HistoryConfig controls the SQLite run history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment
// overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("KOOPMAN_VERIFY_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Calibration: CalibrationConfig{Path: "configs/calibration.yaml"},
		Data: DataConfig{
			Dir:      "data",
			Pattern:  "*.json",
			Workers:  4,
			CacheTTL: 5 * time.Minute,
		},
		Validation: ValidationConfig{
			Tolerance: 0.05,
			Policy:    "one-sided",
		},
		History: HistoryConfig{Enabled: false, Path: "koopman-verify.db"},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KOOPMAN_VERIFY_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("KOOPMAN_VERIFY_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("KOOPMAN_VERIFY_CALIBRATION_PATH"); v != "" {
		cfg.Calibration.Path = v
	}
	if v := os.Getenv("KOOPMAN_VERIFY_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("KOOPMAN_VERIFY_DATA_PATTERN"); v != "" {
		cfg.Data.Pattern = v
	}
	if v := os.Getenv("KOOPMAN_VERIFY_DATA_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Data.Workers = n
		}
	}
	if v := os.Getenv("KOOPMAN_VERIFY_DATA_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Data.CacheTTL = d
		}
	}
	if v := os.Getenv("KOOPMAN_VERIFY_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Validation.Tolerance = f
		}
	}
	if v := os.Getenv("KOOPMAN_VERIFY_POLICY"); v != "" {
		cfg.Validation.Policy = v
	}
	if v := os.Getenv("KOOPMAN_VERIFY_HISTORY_ENABLED"); v != "" {
		cfg.History.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("KOOPMAN_VERIFY_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("KOOPMAN_VERIFY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KOOPMAN_VERIFY_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}
