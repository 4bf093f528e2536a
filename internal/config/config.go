// Package config loads and validates NormCode configuration. Configuration
// lives in a YAML file (normcode.yaml by default); a handful of settings can
// be overridden through environment variables so API keys stay out of files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all NormCode configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM actuation
	LLM LLMConfig `yaml:"llm"`

	// Execution engine
	Engine EngineConfig `yaml:"engine"`

	// Path-mapping table: logical resource ids to physical locations
	Paths PathsConfig `yaml:"paths"`

	// Checkpoint store
	Checkpoint CheckpointConfig `yaml:"checkpoint"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the paradigm actuator's LLM client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai-compat | gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// EngineConfig configures the execution cycle loop.
type EngineConfig struct {
	// Workers bounds parallel actuation within a cycle.
	Workers int `yaml:"workers"`

	// CallTimeout applies per tool call; a timed-out call is a failure.
	CallTimeout string `yaml:"call_timeout"`

	// Retries re-attempts a failed actuation. Zero (the default) means a
	// failure blocks dependents immediately.
	Retries int `yaml:"retries"`
}

// PathsConfig is the path-mapping table consumed by the perception codec at
// compile-time validation and runtime perception.
type PathsConfig struct {
	ParadigmDir string `yaml:"paradigm_dir"`
	PromptDir   string `yaml:"prompt_dir"`
	DataDir     string `yaml:"data_dir"`
	ScriptDir   string `yaml:"script_dir"`
	SaveDir     string `yaml:"save_dir"`

	// Params maps stored parameter names to their values.
	Params map[string]string `yaml:"params"`
}

// CheckpointConfig configures the checkpoint database.
type CheckpointConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	Level      string          `yaml:"level" json:"level"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
	JSONFormat bool            `yaml:"json_format" json:"json_format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Name:    "normcode",
		Version: "0.1.0",
		LLM: LLMConfig{
			Provider: "openai-compat",
			Model:    "gpt-4o-mini",
			Timeout:  "120s",
		},
		Engine: EngineConfig{
			Workers:     4,
			CallTimeout: "120s",
			Retries:     0,
		},
		Paths: PathsConfig{
			ParadigmDir: "paradigms",
			PromptDir:   "prompts",
			DataDir:     "data",
			ScriptDir:   "scripts",
			SaveDir:     "out",
		},
		Checkpoint: CheckpointConfig{
			DatabasePath: filepath.Join(".normcode", "checkpoints.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, applying defaults for missing
// fields and environment overrides afterwards. A missing file yields the
// defaults, not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides selected settings from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("NORMCODE_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("NORMCODE_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("NORMCODE_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("NORMCODE_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("NORMCODE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Engine.Workers = n
		}
	}
	if v := os.Getenv("NORMCODE_DB"); v != "" {
		c.Checkpoint.DatabasePath = v
	}
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be at least 1, got %d", c.Engine.Workers)
	}
	if _, err := c.CallTimeout(); err != nil {
		return err
	}
	if _, err := c.LLMTimeout(); err != nil {
		return err
	}
	if c.Checkpoint.DatabasePath == "" {
		return fmt.Errorf("checkpoint.database_path must not be empty")
	}
	return nil
}

// CallTimeout parses the per-tool-call timeout.
func (c *Config) CallTimeout() (time.Duration, error) {
	if c.Engine.CallTimeout == "" {
		return 120 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Engine.CallTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid engine.call_timeout %q: %w", c.Engine.CallTimeout, err)
	}
	return d, nil
}

// LLMTimeout parses the LLM client timeout.
func (c *Config) LLMTimeout() (time.Duration, error) {
	if c.LLM.Timeout == "" {
		return 120 * time.Second, nil
	}
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid llm.timeout %q: %w", c.LLM.Timeout, err)
	}
	return d, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
