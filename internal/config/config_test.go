package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Orchestrator.MaxAgents != 10 {
		t.Errorf("expected max_agents 10, got %d", cfg.Orchestrator.MaxAgents)
	}
	if cfg.Orchestrator.MaxTasks != 100 {
		t.Errorf("expected max_tasks 100, got %d", cfg.Orchestrator.MaxTasks)
	}
	if cfg.Orchestrator.DefaultTimeout != 5*time.Minute {
		t.Errorf("expected default_timeout 5m, got %v", cfg.Orchestrator.DefaultTimeout)
	}
	if cfg.NATS.Port != 4222 {
		t.Errorf("expected nats port 4222, got %d", cfg.NATS.Port)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected web port 8080, got %d", cfg.Web.Port)
	}
	if !cfg.Web.Enabled {
		t.Error("expected web enabled by default")
	}
	if cfg.Store.Path != "data/taskhive.db" {
		t.Errorf("expected store path data/taskhive.db, got %s", cfg.Store.Path)
	}
	if cfg.Recurring.PollInterval != 30*time.Second {
		t.Errorf("expected recurring poll_interval 30s, got %v", cfg.Recurring.PollInterval)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	// Point config to a non-existent file so we use defaults
	t.Setenv("TASKHIVE_CONFIG", "/nonexistent/config.yaml")
	t.Setenv("TASKHIVE_MAX_AGENTS", "25")
	t.Setenv("TASKHIVE_WEB_PASSWORD", "secret")
	t.Setenv("TASKHIVE_WEB_PORT", "9090")
	t.Setenv("TASKHIVE_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Orchestrator.MaxAgents != 25 {
		t.Errorf("expected max_agents 25, got %d", cfg.Orchestrator.MaxAgents)
	}
	if cfg.Web.Auth != "secret" {
		t.Errorf("expected web auth secret, got %s", cfg.Web.Auth)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected web port 9090, got %d", cfg.Web.Port)
	}
	if cfg.Orchestrator.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Orchestrator.LogLevel)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskhive.yaml")
	content := `
orchestrator:
  max_agents: 3
  max_tasks: 7
  default_timeout: 90s
  log_level: warn
web:
  enabled: false
agents:
  - id: coder-1
    name: Coder
    role: coder
    tools: [bash, edit]
    priority: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TASKHIVE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Orchestrator.MaxAgents != 3 {
		t.Errorf("expected max_agents 3, got %d", cfg.Orchestrator.MaxAgents)
	}
	if cfg.Orchestrator.MaxTasks != 7 {
		t.Errorf("expected max_tasks 7, got %d", cfg.Orchestrator.MaxTasks)
	}
	if cfg.Orchestrator.DefaultTimeout != 90*time.Second {
		t.Errorf("expected default_timeout 90s, got %v", cfg.Orchestrator.DefaultTimeout)
	}
	if cfg.Web.Enabled {
		t.Error("expected web disabled")
	}
	if len(cfg.Agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(cfg.Agents))
	}
	if cfg.Agents[0].Role != "coder" {
		t.Errorf("expected role coder, got %s", cfg.Agents[0].Role)
	}
	if len(cfg.Agents[0].Tools) != 2 {
		t.Errorf("expected 2 tools, got %d", len(cfg.Agents[0].Tools))
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range cases {
		c := OrchestratorConfig{LogLevel: in}
		if got := c.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
