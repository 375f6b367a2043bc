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

// Config captures the settings required to boot the triage engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Queue     QueueConfig     `yaml:"queue"`
	Data      DataConfig      `yaml:"data"`
	Reasoning ReasoningConfig `yaml:"reasoning"`
	Tickets   TicketsConfig   `yaml:"tickets"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// QueueConfig controls admission: worker-pool size and eviction windows.
type QueueConfig struct {
	Workers   int           `yaml:"workers"`
	Retention time.Duration `yaml:"retention"`
	PollGrace time.Duration `yaml:"pollGrace"`
}

// DataConfig points at the three read-only evidence corpora.
type DataConfig struct {
	LogDir          string `yaml:"logDir"`
	KBPath          string `yaml:"kbPath"`
	CaseArchivePath string `yaml:"caseArchivePath"`
}

// ReasoningConfig configures the external reasoning service client.
type ReasoningConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	APIKey       string        `yaml:"apiKey"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryBackoff time.Duration `yaml:"retryBackoff"`
}

// TicketsConfig controls the optional SQLite ticket sink.
type TicketsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TRIAGE_CONFIG")
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

	if cfg.Queue.Workers < 1 {
		return nil, fmt.Errorf("queue.workers must be at least 1, got %d", cfg.Queue.Workers)
	}
	if cfg.Data.CaseArchivePath == "" {
		return nil, fmt.Errorf("data.caseArchivePath is required")
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Queue: QueueConfig{
			Workers:   2,
			Retention: 30 * time.Minute,
			PollGrace: 10 * time.Minute,
		},
		Data: DataConfig{
			LogDir:          "data/logs",
			KBPath:          "data/knowledge_base.txt",
			CaseArchivePath: "data/case_log.xlsx",
		},
		Reasoning: ReasoningConfig{
			Model:        "gpt-4.1-nano",
			Timeout:      30 * time.Second,
			RetryBackoff: 2 * time.Second,
		},
		Tickets: TicketsConfig{Enabled: false, Path: "tickets.db"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRIAGE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("TRIAGE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("TRIAGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRIAGE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("TRIAGE_QUEUE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.Workers = n
		}
	}
	if v := os.Getenv("TRIAGE_QUEUE_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Queue.Retention = d
		}
	}
	if v := os.Getenv("TRIAGE_QUEUE_POLL_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Queue.PollGrace = d
		}
	}
	if v := os.Getenv("TRIAGE_LOG_DIR"); v != "" {
		cfg.Data.LogDir = v
	}
	if v := os.Getenv("TRIAGE_KB_PATH"); v != "" {
		cfg.Data.KBPath = v
	}
	if v := os.Getenv("TRIAGE_CASE_ARCHIVE_PATH"); v != "" {
		cfg.Data.CaseArchivePath = v
	}
	if v := os.Getenv("TRIAGE_REASONING_ENDPOINT"); v != "" {
		cfg.Reasoning.Endpoint = v
	}
	if v := os.Getenv("TRIAGE_REASONING_API_KEY"); v != "" {
		cfg.Reasoning.APIKey = v
	}
	if v := os.Getenv("TRIAGE_REASONING_MODEL"); v != "" {
		cfg.Reasoning.Model = v
	}
	if v := os.Getenv("TRIAGE_REASONING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Reasoning.Timeout = d
		}
	}
	if v := os.Getenv("TRIAGE_REASONING_RETRY_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Reasoning.RetryBackoff = d
		}
	}
	if v := os.Getenv("TRIAGE_TICKETS_ENABLED"); v != "" {
		cfg.Tickets.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("TRIAGE_TICKETS_PATH"); v != "" {
		cfg.Tickets.Path = v
	}
}
