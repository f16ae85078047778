package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"DataDir", cfg.DataDir, filepath.Join("data", "raw", "rss")},
		{"Fetch.TimeoutSeconds", cfg.Fetch.TimeoutSeconds, 10},
		{"Fetch.MaxConcurrent", cfg.Fetch.MaxConcurrent, 5},
		{"Fetch.UserAgent", cfg.Fetch.UserAgent, "feedhub/1.0 RSS Reader"},
		{"Lock.TimeoutSeconds", cfg.Lock.TimeoutSeconds, 10},
		{"Enrich.TimeoutSeconds", cfg.Enrich.TimeoutSeconds, 15},
		{"Schedule.Cron", cfg.Schedule.Cron, "@every 1h"},
		{"Log.Level", cfg.Log.Level, "info"},
	}

	for _, c := range checks {
		switch want := c.want.(type) {
		case int:
			if c.got.(int) != want {
				t.Errorf("%s: got %v, want %v", c.name, c.got, want)
			}
		case string:
			if c.got.(string) != want {
				t.Errorf("%s: got %v, want %v", c.name, c.got, want)
			}
		}
	}
}

func TestSetDefaults_DoesNotOverride(t *testing.T) {
	cfg := &Config{
		DataDir: "/var/lib/feedhub",
		Fetch:   FetchConfig{TimeoutSeconds: 30, MaxConcurrent: 8, UserAgent: "custom/2.0"},
		Lock:    LockConfig{TimeoutSeconds: 5},
		Log:     LogConfig{Level: "debug"},
	}
	setDefaults(cfg)

	if cfg.DataDir != "/var/lib/feedhub" {
		t.Errorf("DataDir should not be overridden: got %s", cfg.DataDir)
	}
	if cfg.Fetch.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds should not be overridden: got %d", cfg.Fetch.TimeoutSeconds)
	}
	if cfg.Fetch.MaxConcurrent != 8 {
		t.Errorf("MaxConcurrent should not be overridden: got %d", cfg.Fetch.MaxConcurrent)
	}
	if cfg.Fetch.UserAgent != "custom/2.0" {
		t.Errorf("UserAgent should not be overridden: got %s", cfg.Fetch.UserAgent)
	}
	if cfg.Lock.TimeoutSeconds != 5 {
		t.Errorf("Lock.TimeoutSeconds should not be overridden: got %d", cfg.Lock.TimeoutSeconds)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level should not be overridden: got %s", cfg.Log.Level)
	}
}

func TestSetDefaults_MaxConcurrentCap(t *testing.T) {
	cfg := &Config{Fetch: FetchConfig{MaxConcurrent: 64}}
	setDefaults(cfg)
	if cfg.Fetch.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent should be capped at 10, got %d", cfg.Fetch.MaxConcurrent)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	yamlContent := `
data_dir: /tmp/feedhub-test
fetch:
  timeout_seconds: 20
  max_concurrent: 3
lock:
  cross_process: true
log:
  level: debug
`
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != "/tmp/feedhub-test" {
		t.Errorf("DataDir: got %q", cfg.DataDir)
	}
	if cfg.Fetch.TimeoutSeconds != 20 {
		t.Errorf("Fetch.TimeoutSeconds: got %d, want 20", cfg.Fetch.TimeoutSeconds)
	}
	if cfg.Fetch.MaxConcurrent != 3 {
		t.Errorf("Fetch.MaxConcurrent: got %d, want 3", cfg.Fetch.MaxConcurrent)
	}
	if !cfg.Lock.CrossProcess {
		t.Error("Lock.CrossProcess: got false, want true")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q, want %q", cfg.Log.Level, "debug")
	}
	// Defaults should be applied for unset fields
	if cfg.Lock.TimeoutSeconds != 10 {
		t.Errorf("Lock.TimeoutSeconds should default to 10, got %d", cfg.Lock.TimeoutSeconds)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DATA_DIR", "/tmp/from-env")

	yamlContent := `
data_dir: "${TEST_DATA_DIR}"
`
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != "/tmp/from-env" {
		t.Errorf("expected env var expansion, got %q", cfg.DataDir)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	// 零配置可运行：文件不存在时回落到默认配置
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load should fall back to defaults: %v", err)
	}
	if cfg.Fetch.TimeoutSeconds != 10 {
		t.Errorf("expected default timeout, got %d", cfg.Fetch.TimeoutSeconds)
	}
}
