// Package config provides configuration loading, validation, and credential lookup.
//
// Settings come from three layers, later layers winning:
//
//  1. Defaults (Default)
//  2. The YAML config file (gippity.yaml or --config)
//  3. Environment overrides (GIPPITY_MODEL, GIPPITY_BASE_URL, GIPPITY_DB)
//
// Credentials are never stored in the config file. GetAPIKey resolves them from
// the decrypted secrets file first, then the environment, which may itself be
// populated from a .env file by LoadDotEnv.
//
// USAGE PATTERNS:
//
//	_ = config.LoadDotEnv("")
//	cfg, err := config.Load("gippity.yaml")
//	key, err := config.GetAPIKey(cfg.Model.Provider)
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"autogippity/pkg/logx"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Environment variables for credentials and overrides.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_GENAI_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"

	EnvModel    = "GIPPITY_MODEL"
	EnvBaseURL  = "GIPPITY_BASE_URL"
	EnvDBPath   = "GIPPITY_DB"
	EnvPassword = "GIPPITY_PASSWORD"
)

// Defaults.
const (
	DefaultConfigFile       = "gippity.yaml"
	DefaultModel            = "gpt-3.5-turbo"
	DefaultTemperature      = 0.1
	DefaultMaxTokens        = 1024
	DefaultModelTimeout     = 60 * time.Second
	DefaultProbeTimeout     = 5 * time.Second
	DefaultProbeConcurrency = 1
	DefaultOllamaHost       = "http://localhost:11434"
	ProjectConfigDir        = ".gippity"
	DefaultDBPath           = ProjectConfigDir + "/runs.db"
)

// ErrMissingCredential is returned when the selected provider has no API key.
// It is raised before any network call is made.
var ErrMissingCredential = errors.New("missing credential")

// ModelInfo contains static information about a known LLM model.
type ModelInfo struct {
	Provider         string // API provider
	MaxContextTokens int    // Maximum context window size in tokens
	MaxOutputTokens  int    // Maximum output tokens per request
}

// KnownModels registry contains provider information for common models.
// Unknown models are inferred via ProviderPatterns.
//
//nolint:gochecknoglobals // Intentional global for static model registry
var KnownModels = map[string]ModelInfo{
	"gpt-3.5-turbo": {
		Provider:         ProviderOpenAI,
		MaxContextTokens: 16385,
		MaxOutputTokens:  4096,
	},
	"gpt-4o-mini": {
		Provider:         ProviderOpenAI,
		MaxContextTokens: 128000,
		MaxOutputTokens:  16384,
	},
	"claude-sonnet-4-5": {
		Provider:         ProviderAnthropic,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	"gemini-2.5-flash": {
		Provider:         ProviderGoogle,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  65536,
	},
}

// ProviderPattern represents a pattern for inferring provider from model name.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

// ProviderPatterns defines rules for inferring providers from unknown model names.
//
//nolint:gochecknoglobals // Intentional global for inference rules
var ProviderPatterns = []ProviderPattern{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"phi", ProviderOllama},
	{"llama", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"codellama", ProviderOllama},
	{"deepseek", ProviderOllama},
	{"ollama:", ProviderOllama}, // Explicit prefix like "ollama:phi4"
}

// GetModelProvider returns the API provider for a given model.
// First checks KnownModels, then tries pattern matching.
func GetModelProvider(modelName string) (string, error) {
	if info, exists := KnownModels[modelName]; exists {
		return info.Provider, nil
	}
	for i := range ProviderPatterns {
		if strings.HasPrefix(modelName, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}
	return "", fmt.Errorf("unknown model '%s': no known provider mapping or pattern match - cannot determine API provider", modelName)
}

// ModelConfig selects and tunes the Model Gateway.
type ModelConfig struct {
	Name        string        `yaml:"name"`
	Provider    string        `yaml:"provider,omitempty"` // inferred from Name when empty
	BaseURL     string        `yaml:"base_url,omitempty"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ProbeConfig controls URL liveness probing.
type ProbeConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
}

// PathsConfig holds output locations for generated artifacts.
type PathsConfig struct {
	WebServerProject string `yaml:"web_server_project"`
	CodeTemplate     string `yaml:"code_template"`
	ExecMain         string `yaml:"exec_main"`
	APISchema        string `yaml:"api_schema"`
	FactSheet        string `yaml:"fact_sheet"`
	EventLogDir      string `yaml:"event_log_dir"`
}

// StorageConfig locates the run history database.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// MetricsConfig controls the Prometheus text dump written after a run.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output,omitempty"`
}

// TracingConfig toggles OpenTelemetry spans.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DebugConfig mirrors the DEBUG/DEBUG_DOMAINS environment switches.
type DebugConfig struct {
	Enabled bool     `yaml:"enabled"`
	Domains []string `yaml:"domains,omitempty"`
}

// Config is the full gippity configuration.
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Probe   ProbeConfig   `yaml:"probe"`
	Paths   PathsConfig   `yaml:"paths"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Debug   DebugConfig   `yaml:"debug"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads path, applies defaults and environment overrides, and validates.
// A missing file is not an error: defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config YAML %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			logx.Infof("config file %s not found, using defaults", path)
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	resolveProvider(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment. Variables already set are left untouched. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model.Name = v
		cfg.Model.Provider = ""
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Storage.DBPath = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Model.Name == "" {
		cfg.Model.Name = DefaultModel
	}
	if cfg.Model.Temperature == 0 {
		cfg.Model.Temperature = DefaultTemperature
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = DefaultMaxTokens
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = DefaultModelTimeout
	}

	if cfg.Probe.Timeout == 0 {
		cfg.Probe.Timeout = DefaultProbeTimeout
	}
	if cfg.Probe.Concurrency == 0 {
		cfg.Probe.Concurrency = DefaultProbeConcurrency
	}

	if cfg.Paths.WebServerProject == "" {
		cfg.Paths.WebServerProject = "web_template"
	}
	if cfg.Paths.CodeTemplate == "" {
		cfg.Paths.CodeTemplate = cfg.Paths.WebServerProject + "/code_template.go"
	}
	if cfg.Paths.ExecMain == "" {
		cfg.Paths.ExecMain = cfg.Paths.WebServerProject + "/main.go"
	}
	if cfg.Paths.APISchema == "" {
		cfg.Paths.APISchema = "schemas/api_schema.json"
	}
	if cfg.Paths.FactSheet == "" {
		cfg.Paths.FactSheet = ProjectConfigDir + "/factsheet.json"
	}
	if cfg.Paths.EventLogDir == "" {
		cfg.Paths.EventLogDir = ProjectConfigDir + "/logs"
	}

	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = DefaultDBPath
	}
}

// resolveProvider pins the provider inferred from the model name. Default
// leaves it empty so a caller that changes Model.Name gets a fresh inference.
func resolveProvider(cfg *Config) {
	if cfg.Model.Provider != "" {
		return
	}
	if provider, err := GetModelProvider(cfg.Model.Name); err == nil {
		cfg.Model.Provider = provider
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderOllama:
	case "":
		return fmt.Errorf("model %q: cannot determine provider, set model.provider", cfg.Model.Name)
	default:
		return fmt.Errorf("unknown provider %q", cfg.Model.Provider)
	}
	if cfg.Model.Temperature < 0 || cfg.Model.Temperature > 2 {
		return fmt.Errorf("model.temperature must be between 0.0 and 2.0, got %v", cfg.Model.Temperature)
	}
	if cfg.Model.MaxTokens < 0 {
		return fmt.Errorf("model.max_tokens must be positive, got %d", cfg.Model.MaxTokens)
	}
	if cfg.Model.Timeout < 0 || cfg.Probe.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if cfg.Probe.Concurrency < 1 {
		return fmt.Errorf("probe.concurrency must be at least 1, got %d", cfg.Probe.Concurrency)
	}
	return nil
}

// GetAPIKey returns the API key for a given provider.
// Checks secrets file first, then falls back to environment variables.
// For Ollama, returns the host URL instead of an API key.
func GetAPIKey(provider string) (string, error) {
	var envVar string
	switch provider {
	case ProviderAnthropic:
		envVar = EnvAnthropicAPIKey
	case ProviderOpenAI:
		envVar = EnvOpenAIAPIKey
	case ProviderGoogle:
		envVar = EnvGoogleAPIKey
	case ProviderOllama:
		host := os.Getenv(EnvOllamaHost)
		if host == "" {
			host = DefaultOllamaHost
		}
		return host, nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	key, err := GetSecret(envVar)
	if err == nil && key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: %s not found in secrets file or environment variables", ErrMissingCredential, envVar)
}
