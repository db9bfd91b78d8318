package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	NATS         NATSConfig         `yaml:"nats"`
	Store        StoreConfig        `yaml:"store"`
	Web          WebConfig          `yaml:"web"`
	Recurring    RecurringConfig    `yaml:"recurring"`
	Agents       []AgentConfig      `yaml:"agents"`
}

type OrchestratorConfig struct {
	MaxAgents int `yaml:"max_agents"`
	MaxTasks  int `yaml:"max_tasks"`
	// TaskQueueSize is accepted for compatibility but not separately
	// enforced; MaxTasks bounds the store.
	TaskQueueSize  int           `yaml:"task_queue_size"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	// AutoScale is reserved; the scheduler never grows the agent pool.
	AutoScale bool   `yaml:"auto_scale"`
	LogLevel  string `yaml:"log_level"`
}

// AgentConfig describes an agent registered with the orchestrator at startup.
type AgentConfig struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Role      string   `yaml:"role"`
	Tools     []string `yaml:"tools"`
	TaskTypes []string `yaml:"task_types"`
	Priority  int      `yaml:"priority"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type RecurringConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

func defaults() Config {
	return Config{
		Orchestrator: OrchestratorConfig{
			MaxAgents:      10,
			MaxTasks:       100,
			TaskQueueSize:  100,
			DefaultTimeout: 5 * time.Minute,
			LogLevel:       "info",
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/taskhive.db",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Recurring: RecurringConfig{
			PollInterval: 30 * time.Second,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("TASKHIVE_CONFIG")
	if path == "" {
		path = "config/taskhive.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TASKHIVE_MAX_AGENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.MaxAgents = n
		}
	}
	if v := os.Getenv("TASKHIVE_MAX_TASKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.MaxTasks = n
		}
	}
	if v := os.Getenv("TASKHIVE_LOG_LEVEL"); v != "" {
		cfg.Orchestrator.LogLevel = v
	}
	if v := os.Getenv("TASKHIVE_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("TASKHIVE_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("TASKHIVE_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("TASKHIVE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
}

// SlogLevel maps the configured log level onto a slog handler level.
// Unknown values fall back to info.
func (c OrchestratorConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
