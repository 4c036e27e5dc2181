// Package config loads agent configuration from a YAML file and environment
// variables. File values override built-in defaults; AGENT_-prefixed
// environment variables override the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
)

// DefaultFile is the config file consulted when none is given.
const DefaultFile = "config.yaml"

// Config is the agent's full configuration.
type Config struct {
	DefaultProvider string                     `koanf:"default_provider"`
	MaxSteps        int                        `koanf:"max_steps"`
	ModelProviders  map[string]ModelParameters `koanf:"model_providers"`
	Trajectory      TrajectoryConfig           `koanf:"trajectory"`
	Telemetry       TelemetryConfig            `koanf:"telemetry"`
}

// ModelParameters configures one model provider.
type ModelParameters struct {
	Model             string  `koanf:"model"`
	APIKey            string  `koanf:"api_key"`
	BaseURL           string  `koanf:"base_url"`
	APIVersion        string  `koanf:"api_version"`
	MaxTokens         int     `koanf:"max_tokens"`
	Temperature       float64 `koanf:"temperature"`
	TopP              float64 `koanf:"top_p"`
	TopK              int     `koanf:"top_k"`
	MaxRetries        int     `koanf:"max_retries"`
	ParallelToolCalls bool    `koanf:"parallel_tool_calls"`
}

// TrajectoryConfig selects where trajectory documents are written.
type TrajectoryConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `koanf:"backend"`
	// Path is the trajectory file path or SQLite DSN. Empty means an
	// auto-timestamped file in the current directory.
	Path string `koanf:"path"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from configFile (DefaultFile when empty; a
// missing default file is not an error, a missing explicit one is) and the
// environment.
func Load(configFile string) (*Config, error) {
	k := koanf.New(".")

	explicit := configFile != ""
	if configFile == "" {
		configFile = DefaultFile
	}

	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", configFile, err)
		}
	}

	// Environment variables override file config, AGENT_MAX_STEPS=30 etc.
	if err := k.Load(env.Provider("AGENT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AGENT_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	fillProviderDefaults(cfg)

	for name, params := range cfg.ModelProviders {
		params.APIKey = substituteEnvVars(params.APIKey)
		cfg.ModelProviders[name] = params
	}

	if cfg.Trajectory.Backend == "" {
		cfg.Trajectory.Backend = "file"
	}

	return cfg, nil
}

// ProviderParams resolves the model parameters for a provider name,
// defaulting to the configured default provider.
func (c *Config) ProviderParams(provider string) (domain.Provider, ModelParameters, error) {
	if provider == "" {
		provider = c.DefaultProvider
	}
	params, ok := c.ModelProviders[provider]
	if !ok {
		return "", ModelParameters{}, fmt.Errorf("unknown provider %q", provider)
	}
	return domain.ParseProvider(provider), params, nil
}

func defaults() *Config {
	return &Config{
		DefaultProvider: "anthropic",
		MaxSteps:        20,
		ModelProviders:  map[string]ModelParameters{},
		Trajectory:      TrajectoryConfig{Backend: "file"},
	}
}

// fillProviderDefaults seeds the well-known providers so a bare environment
// (API keys only, no config file) still works, and backfills zero values on
// providers the file did configure.
func fillProviderDefaults(cfg *Config) {
	builtin := map[string]ModelParameters{
		"anthropic": {
			Model:             "claude-3-5-sonnet-20241022",
			APIKey:            os.Getenv("ANTHROPIC_API_KEY"),
			MaxTokens:         4096,
			Temperature:       0.5,
			TopP:              1.0,
			MaxRetries:        10,
			ParallelToolCalls: true,
		},
		"openai": {
			Model:             "gpt-4o",
			APIKey:            os.Getenv("OPENAI_API_KEY"),
			MaxTokens:         4096,
			Temperature:       0.5,
			TopP:              1.0,
			MaxRetries:        10,
			ParallelToolCalls: true,
		},
		"azure": {
			Model:             "gpt-4o",
			APIKey:            os.Getenv("AZURE_API_KEY"),
			BaseURL:           os.Getenv("AZURE_BASE_URL"),
			APIVersion:        "2024-03-01-preview",
			MaxTokens:         4096,
			Temperature:       0.5,
			TopP:              1.0,
			MaxRetries:        10,
			ParallelToolCalls: true,
		},
		"openrouter": {
			Model:             "openai/gpt-4o",
			APIKey:            os.Getenv("OPENROUTER_API_KEY"),
			BaseURL:           "https://openrouter.ai/api/v1",
			MaxTokens:         4096,
			Temperature:       0.5,
			TopP:              1.0,
			MaxRetries:        10,
			ParallelToolCalls: true,
		},
		"ollama": {
			Model:       "llama3",
			BaseURL:     "http://localhost:11434/v1",
			MaxTokens:   4096,
			Temperature: 0.5,
			TopP:        1.0,
			MaxRetries:  10,
		},
	}

	for name, def := range builtin {
		params, ok := cfg.ModelProviders[name]
		if !ok {
			cfg.ModelProviders[name] = def
			continue
		}
		if params.Model == "" {
			params.Model = def.Model
		}
		if params.APIKey == "" {
			params.APIKey = def.APIKey
		}
		if params.BaseURL == "" {
			params.BaseURL = def.BaseURL
		}
		if params.APIVersion == "" {
			params.APIVersion = def.APIVersion
		}
		if params.MaxTokens == 0 {
			params.MaxTokens = def.MaxTokens
		}
		if params.Temperature == 0 {
			params.Temperature = def.Temperature
		}
		if params.TopP == 0 {
			params.TopP = def.TopP
		}
		if params.MaxRetries == 0 {
			params.MaxRetries = def.MaxRetries
		}
		cfg.ModelProviders[name] = params
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
