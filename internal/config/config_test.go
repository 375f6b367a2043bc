package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "data:\n  caseArchivePath: data/case_log.xlsx\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Errorf("address = %q", cfg.Server.Address)
	}
	if cfg.Queue.Workers != 2 {
		t.Errorf("workers = %d, want 2", cfg.Queue.Workers)
	}
	if cfg.Queue.Retention != 30*time.Minute {
		t.Errorf("retention = %s", cfg.Queue.Retention)
	}
	if cfg.Reasoning.Model != "gpt-4.1-nano" {
		t.Errorf("model = %q", cfg.Reasoning.Model)
	}
	if cfg.Tickets.Enabled {
		t.Error("tickets should default to disabled")
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  address: ":9090"
queue:
  workers: 4
  retention: 1h
data:
  caseArchivePath: /srv/cases.xlsx
reasoning:
  endpoint: http://localhost:8090
  model: test-model
  timeout: 5s
tickets:
  enabled: true
  path: /tmp/tickets.db
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Address != ":9090" {
		t.Errorf("address = %q", cfg.Server.Address)
	}
	if cfg.Queue.Workers != 4 || cfg.Queue.Retention != time.Hour {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if cfg.Reasoning.Endpoint != "http://localhost:8090" || cfg.Reasoning.Timeout != 5*time.Second {
		t.Errorf("reasoning = %+v", cfg.Reasoning)
	}
	if !cfg.Tickets.Enabled || cfg.Tickets.Path != "/tmp/tickets.db" {
		t.Errorf("tickets = %+v", cfg.Tickets)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TRIAGE_QUEUE_WORKERS", "8")
	t.Setenv("TRIAGE_REASONING_MODEL", "env-model")
	t.Setenv("TRIAGE_TICKETS_ENABLED", "true")

	cfg, err := Load(writeConfig(t, "data:\n  caseArchivePath: data/case_log.xlsx\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Queue.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Queue.Workers)
	}
	if cfg.Reasoning.Model != "env-model" {
		t.Errorf("model = %q", cfg.Reasoning.Model)
	}
	if !cfg.Tickets.Enabled {
		t.Error("expected env to enable tickets")
	}
}

func TestLoadRejectsInvalidWorkers(t *testing.T) {
	_, err := Load(writeConfig(t, `
queue:
  workers: 0
data:
  caseArchivePath: data/case_log.xlsx
`))
	if err == nil {
		t.Fatal("expected validation error for zero workers")
	}
}

func TestLoadRequiresCaseArchive(t *testing.T) {
	if _, err := Load(writeConfig(t, "data:\n  caseArchivePath: \"\"\n")); err == nil {
		t.Fatal("expected validation error for missing case archive path")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
