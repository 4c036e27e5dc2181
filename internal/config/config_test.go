package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	// The default file being absent is fine.
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultProvider != "anthropic" {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
	if cfg.MaxSteps != 20 {
		t.Errorf("MaxSteps = %d", cfg.MaxSteps)
	}
	if cfg.Trajectory.Backend != "file" {
		t.Errorf("Trajectory.Backend = %q", cfg.Trajectory.Backend)
	}
	if _, ok := cfg.ModelProviders["anthropic"]; !ok {
		t.Error("builtin anthropic provider missing")
	}
	if _, ok := cfg.ModelProviders["ollama"]; !ok {
		t.Error("builtin ollama provider missing")
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() of an explicit missing file should fail")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
default_provider: openai
max_steps: 7
model_providers:
  openai:
    model: gpt-4o-mini
    max_tokens: 2048
trajectory:
  backend: sqlite
  path: runs.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultProvider != "openai" || cfg.MaxSteps != 7 {
		t.Errorf("top-level overrides not applied: %+v", cfg)
	}
	if cfg.Trajectory.Backend != "sqlite" || cfg.Trajectory.Path != "runs.db" {
		t.Errorf("trajectory config = %+v", cfg.Trajectory)
	}

	params := cfg.ModelProviders["openai"]
	if params.Model != "gpt-4o-mini" || params.MaxTokens != 2048 {
		t.Errorf("openai params = %+v", params)
	}
	// Unset fields backfill from the builtin defaults.
	if params.MaxRetries != 10 || params.TopP != 1.0 {
		t.Errorf("defaults not backfilled: %+v", params)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "max_steps: 7\n")
	t.Setenv("AGENT_MAX_STEPS", "31")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxSteps != 31 {
		t.Errorf("MaxSteps = %d, want env override 31", cfg.MaxSteps)
	}
}

func TestLoadSubstitutesEnvVarsInAPIKeys(t *testing.T) {
	t.Setenv("MY_SECRET_KEY", "sk-test-123")
	path := writeConfig(t, `
model_providers:
  anthropic:
    api_key: ${MY_SECRET_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.ModelProviders["anthropic"].APIKey; got != "sk-test-123" {
		t.Errorf("APIKey = %q, want substituted value", got)
	}
}

func TestProviderParams(t *testing.T) {
	path := writeConfig(t, `
default_provider: ollama
model_providers:
  ollama:
    model: qwen2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	provider, params, err := cfg.ProviderParams("")
	if err != nil {
		t.Fatalf("ProviderParams() error = %v", err)
	}
	if provider != domain.ProviderOllama || params.Model != "qwen2" {
		t.Errorf("ProviderParams() = %v, %+v", provider, params)
	}

	if _, _, err := cfg.ProviderParams("nope"); err == nil {
		t.Error("unknown provider should fail")
	}
}
