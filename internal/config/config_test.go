package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Engine.Workers < 1 {
		t.Errorf("default workers = %d", cfg.Engine.Workers)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if cfg.Name != "normcode" {
		t.Errorf("got name %q", cfg.Name)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "normcode.yaml")
	raw := []byte(`
engine:
  workers: 8
  call_timeout: 30s
paths:
  data_dir: /srv/plans/data
llm:
  provider: gemini
  model: gemini-2.0-flash
`)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Engine.Workers)
	}
	if d, _ := cfg.CallTimeout(); d != 30*time.Second {
		t.Errorf("call timeout = %v", d)
	}
	if cfg.Paths.DataDir != "/srv/plans/data" {
		t.Errorf("data dir = %q", cfg.Paths.DataDir)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	// Untouched sections keep their defaults.
	if cfg.Checkpoint.DatabasePath == "" {
		t.Error("checkpoint path default lost")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NORMCODE_API_KEY", "sk-test")
	t.Setenv("NORMCODE_WORKERS", "2")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key override lost: %q", cfg.LLM.APIKey)
	}
	if cfg.Engine.Workers != 2 {
		t.Errorf("workers override lost: %d", cfg.Engine.Workers)
	}
}

func TestValidateRejectsBadTimeout(t *testing.T) {
	cfg := Default()
	cfg.Engine.CallTimeout = "soon"
	if err := cfg.Validate(); err == nil {
		t.Error("bad call_timeout accepted")
	}
}
