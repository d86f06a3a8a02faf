package modelrouter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ferro-labs/model-router/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "router.yaml", `
providers:
  - type: openai
    api_key: sk-test
    priority: 5
models:
  - id: gpt-4o
    provider: openai
    context_window: 128000
    capabilities: [chat, streaming]
weight_profiles:
  throughput:
    speed: 1.0
default_price_per_m_tokens: 1.5
usage_log:
  driver: sqlite
  dsn: requests.db
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].Type != "openai" || cfg.Providers[0].Priority != 5 {
		t.Errorf("providers = %+v", cfg.Providers)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].ContextWindow != 128000 {
		t.Errorf("models = %+v", cfg.Models)
	}
	if !cfg.Models[0].Capabilities.Has(models.CapStreaming) {
		t.Errorf("capabilities = %v", cfg.Models[0].Capabilities)
	}
	if _, ok := cfg.WeightProfiles["throughput"]; !ok {
		t.Errorf("weight profiles = %v", cfg.WeightProfiles)
	}
	if cfg.DefaultPricePerMTokens != 1.5 {
		t.Errorf("default price = %v", cfg.DefaultPricePerMTokens)
	}
	if cfg.UsageLog == nil || cfg.UsageLog.Driver != "sqlite" {
		t.Errorf("usage log = %+v", cfg.UsageLog)
	}
	if err := ValidateFileConfig(*cfg); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeFile(t, "router.json", `{
  "providers": [{"type": "bedrock", "region": "us-east-1"}],
  "models": [{"id": "claude-sonnet", "provider": "bedrock", "context_window": 200000}]
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].Region != "us-east-1" {
		t.Errorf("providers = %+v", cfg.Providers)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].ID != "claude-sonnet" {
		t.Errorf("models = %+v", cfg.Models)
	}
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "router.toml", "providers = []")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestValidateFileConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     FileConfig
		wantErr bool
	}{
		{"empty", FileConfig{}, false},
		{"unknown provider type", FileConfig{
			Providers: []ProviderConfig{{Type: "azure"}},
		}, true},
		{"negative priority", FileConfig{
			Providers: []ProviderConfig{{Type: "openai", Priority: -1}},
		}, true},
		{"invalid model", FileConfig{
			Models: []models.ModelInfo{{ID: "x", Provider: "openai"}},
		}, true},
		{"bad override pattern", FileConfig{
			Overrides: []models.Override{{ModelPattern: "["}},
		}, true},
		{"unknown usage log driver", FileConfig{
			UsageLog: &UsageLogConfig{Driver: "redis"},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileConfig_Build(t *testing.T) {
	t.Setenv("TEST_ROUTER_KEY", "sk-from-env")
	fc := FileConfig{
		Providers: []ProviderConfig{{
			Type:      "openai",
			APIKey:    "sk-literal",
			APIKeyEnv: "TEST_ROUTER_KEY",
			Priority:  3,
		}},
		Models: []models.ModelInfo{testChatModel("gpt-4o", "openai")},
	}

	cfg, err := fc.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(cfg.Providers) != 1 {
		t.Fatalf("providers = %d", len(cfg.Providers))
	}
	if cfg.Providers[0].Name() != "openai" || cfg.Providers[0].Priority() != 3 {
		t.Errorf("provider = %s priority %d", cfg.Providers[0].Name(), cfg.Providers[0].Priority())
	}
	if len(cfg.Models) != 1 {
		t.Errorf("models = %d", len(cfg.Models))
	}

	// Unknown types fail before instantiation.
	fc.Providers[0].Type = "azure"
	if _, err := fc.Build(); err == nil {
		t.Error("expected build failure for unknown type")
	}
}
