package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"easel/internal/config"
)

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workflow.MaxConcurrent != 5 {
		t.Fatalf("expected default max_concurrent 5, got %d", cfg.Workflow.MaxConcurrent)
	}
	if cfg.Workflow.LockStaleTimeout != 300 {
		t.Fatalf("expected default lock_stale_timeout 300, got %d", cfg.Workflow.LockStaleTimeout)
	}
	if cfg.Workflow.RetentionLimit != 100 {
		t.Fatalf("expected default retention_limit 100, got %d", cfg.Workflow.RetentionLimit)
	}
	if cfg.Paths.APIBind == "" {
		t.Fatal("expected default api bind")
	}
}

func TestLoadParsesAndExpandsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
images_dir = "` + dir + `/images"

[gemini]
api_key = "abc123"

[workflow]
max_concurrent = 2

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolvedPath, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if resolvedPath != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolvedPath)
	}
	if cfg.Workflow.MaxConcurrent != 2 {
		t.Fatalf("expected max_concurrent 2, got %d", cfg.Workflow.MaxConcurrent)
	}
	if cfg.Gemini.APIKey != "abc123" {
		t.Fatalf("expected api key from file, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("expected absolute data_dir, got %q", cfg.Paths.DataDir)
	}
}

func TestValidateRejectsStaleTimeoutBelowHeartbeat(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.HeartbeatInterval = 60
	cfg.Workflow.LockStaleTimeout = 60
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "lock_stale_timeout") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for log format")
	}
}

func TestAPIKeyEnvFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	cfg, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gemini.APIKey != "from-env" {
		t.Fatalf("expected env fallback, got %q", cfg.Gemini.APIKey)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ImagesDir = filepath.Join(base, "images")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.ImagesDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err=%v", dir, err)
		}
	}
}
