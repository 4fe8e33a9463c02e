package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"showrunner/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to report exists=false")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.Workflow.TopicMaxRetries != 2 {
		t.Fatalf("unexpected default topic_max_retries %d", cfg.Workflow.TopicMaxRetries)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[workflow]
max_retries = 5
retry_base_delay_seconds = 2
retry_max_delay_seconds = 60
[workflow.stage_timeout_seconds]
tts = 900
[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}
	if cfg.Workflow.MaxRetries != 5 {
		t.Fatalf("override not applied: %d", cfg.Workflow.MaxRetries)
	}
	if got := cfg.StageTimeoutSeconds("tts"); got != 900 {
		t.Fatalf("stage timeout override not applied: %d", got)
	}
	if got := cfg.StageTimeoutSeconds("render"); got != cfg.Workflow.DefaultTimeoutSecs {
		t.Fatalf("expected default timeout for render, got %d", got)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("logging format override not applied: %s", cfg.Logging.Format)
	}
}

func TestLoadRejectsBadLoggingFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nformat = \"xml\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for bad logging format")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("sample config is empty")
	}
}
