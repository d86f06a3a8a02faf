package modelrouter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
	"github.com/ferro-labs/model-router/tokens"
)

// FileConfig is the declarative subset of Config that can be loaded from a
// JSON or YAML file: provider credentials, static models, overrides, and
// scoring defaults. Hooks, handlers, sources, and the breaker and cache
// knobs are code-only and are layered on via Build's result.
type FileConfig struct {
	Providers []ProviderConfig   `json:"providers,omitempty" yaml:"providers,omitempty"`
	Models    []models.ModelInfo `json:"models,omitempty" yaml:"models,omitempty"`
	Overrides []models.Override  `json:"overrides,omitempty" yaml:"overrides,omitempty"`

	WeightProfiles         map[string]models.Weights `json:"weight_profiles,omitempty" yaml:"weight_profiles,omitempty"`
	DefaultWeights         *models.Weights           `json:"default_weights,omitempty" yaml:"default_weights,omitempty"`
	DefaultPricePerMTokens float64                   `json:"default_price_per_m_tokens,omitempty" yaml:"default_price_per_m_tokens,omitempty"`

	DefaultMetadata *models.Metadata `json:"default_metadata,omitempty" yaml:"default_metadata,omitempty"`
	TokenDivisors   tokens.Divisors  `json:"token_divisors,omitempty" yaml:"token_divisors,omitempty"`
	UsageLog        *UsageLogConfig  `json:"usage_log,omitempty" yaml:"usage_log,omitempty"`
}

// ProviderConfig declares one provider binding.
type ProviderConfig struct {
	// Type selects the implementation: "openai" or "bedrock".
	Type string `json:"type" yaml:"type"`

	// APIKey is the literal credential; APIKeyEnv names an environment
	// variable to read instead and wins when both are set.
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`

	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// Region applies to bedrock.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Priority orders providers during selection; lower wins. Zero keeps the
	// implementation default.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

// ValidateFileConfig validates a FileConfig for correctness.
func ValidateFileConfig(cfg FileConfig) error {
	for i, p := range cfg.Providers {
		switch p.Type {
		case "openai", "bedrock":
		default:
			return fmt.Errorf("provider %d: unknown type %q", i, p.Type)
		}
		if p.Priority < 0 {
			return fmt.Errorf("provider %d: negative priority", i)
		}
	}
	for i, m := range cfg.Models {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("model %d: %w", i, err)
		}
	}
	for i := range cfg.Overrides {
		o := cfg.Overrides[i]
		if err := o.Compile(); err != nil {
			return fmt.Errorf("override %d: %w", i, err)
		}
	}
	if cfg.UsageLog != nil {
		switch cfg.UsageLog.Driver {
		case "", "sqlite", "postgres":
		default:
			return fmt.Errorf("usage log: unknown driver %q", cfg.UsageLog.Driver)
		}
	}
	return nil
}

// Build instantiates the declared providers and assembles a Config ready
// for New. Code-only fields (hooks, handlers, sources, context callbacks)
// can be set on the result before construction.
func (c FileConfig) Build() (Config, error) {
	if err := ValidateFileConfig(c); err != nil {
		return Config{}, err
	}

	var ps []providers.Provider
	for i, pc := range c.Providers {
		apiKey := pc.APIKey
		if pc.APIKeyEnv != "" {
			if v := os.Getenv(pc.APIKeyEnv); v != "" {
				apiKey = v
			}
		}

		var (
			p   providers.Provider
			err error
		)
		switch pc.Type {
		case "openai":
			var op *providers.OpenAIProvider
			op, err = providers.NewOpenAI(apiKey, pc.BaseURL)
			if err == nil && pc.Priority > 0 {
				op.SetPriority(pc.Priority)
			}
			p = op
		case "bedrock":
			var bp *providers.BedrockProvider
			bp, err = providers.NewBedrock(pc.Region)
			if err == nil && pc.Priority > 0 {
				bp.SetPriority(pc.Priority)
			}
			p = bp
		}
		if err != nil {
			return Config{}, fmt.Errorf("provider %d (%s): %w", i, pc.Type, err)
		}
		ps = append(ps, p)
	}

	return Config{
		Providers:              ps,
		Models:                 c.Models,
		Overrides:              c.Overrides,
		WeightProfiles:         c.WeightProfiles,
		DefaultWeights:         c.DefaultWeights,
		DefaultPricePerMTokens: c.DefaultPricePerMTokens,
		DefaultMetadata:        c.DefaultMetadata,
		TokenDivisors:          c.TokenDivisors,
		UsageLog:               c.UsageLog,
	}, nil
}

// NewFromFile loads, validates, and builds a Router from a config file.
func NewFromFile(path string) (*Router, error) {
	fc, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg, err := fc.Build()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}
