package models

import (
	"testing"
)

func ptr(f float64) *float64 { return &f }

func TestCapabilitySet_HasAddUnion(t *testing.T) {
	var s CapabilitySet
	if s.Has(CapChat) {
		t.Error("empty set should not contain chat")
	}
	s = s.Add(CapChat).Add(CapVision).Add(CapChat)
	if len(s) != 2 {
		t.Fatalf("expected 2 entries after duplicate add, got %d", len(s))
	}
	u := s.Union(CapabilitySet{CapVision, CapTools})
	if len(u) != 3 {
		t.Fatalf("expected union of 3, got %d", len(u))
	}
	// Order preserved: receiver first.
	if u[0] != CapChat || u[2] != CapTools {
		t.Errorf("unexpected union order: %v", u)
	}
}

func TestParameterSet_Minus(t *testing.T) {
	s := ParameterSet{ParamTemperature, ParamTools, ParamSeed}
	got := s.Minus(ParameterSet{ParamTools})
	if len(got) != 2 || got.Has(ParamTools) {
		t.Errorf("expected tools removed, got %v", got)
	}
}

func TestModelInfo_Validate(t *testing.T) {
	tests := []struct {
		name    string
		model   ModelInfo
		wantErr bool
	}{
		{"valid", ModelInfo{ID: "gpt-4o", Provider: "openai", ContextWindow: 128000}, false},
		{"missing id", ModelInfo{Provider: "openai", ContextWindow: 128000}, true},
		{"missing provider", ModelInfo{ID: "gpt-4o", ContextWindow: 128000}, true},
		{"zero context window", ModelInfo{ID: "gpt-4o", Provider: "openai"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.model.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestModelInfo_Key(t *testing.T) {
	m := ModelInfo{ID: "claude-sonnet", Provider: "bedrock"}
	if m.Key() != "bedrock/claude-sonnet" {
		t.Errorf("unexpected key %q", m.Key())
	}
}

func TestMerge(t *testing.T) {
	base := ModelInfo{
		ID:            "gpt-4o",
		Provider:      "openai",
		DisplayName:   "GPT-4o",
		Capabilities:  CapabilitySet{CapChat},
		Tier:          TierEfficient,
		ContextWindow: 8192,
		Pricing:       Pricing{Text: &TokenPricing{Input: ptr(2.5)}},
		Metadata:      map[string]any{"family": "gpt"},
	}
	src := ModelInfo{
		ID:            "gpt-4o",
		Provider:      "openai",
		Capabilities:  CapabilitySet{CapChat, CapVision},
		Tier:          TierFlagship,
		ContextWindow: 128000,
		Pricing:       Pricing{Text: &TokenPricing{Output: ptr(10)}},
		Metadata:      map[string]any{"source": "catalog"},
	}

	out := Merge(base, src)

	if !out.Capabilities.Has(CapVision) || !out.Capabilities.Has(CapChat) {
		t.Errorf("capabilities not unioned: %v", out.Capabilities)
	}
	if out.Tier != TierFlagship {
		t.Errorf("expected flagship tier, got %s", out.Tier)
	}
	if out.ContextWindow != 128000 {
		t.Errorf("expected max context window, got %d", out.ContextWindow)
	}
	if out.Pricing.Text.Input == nil || *out.Pricing.Text.Input != 2.5 {
		t.Error("base input price lost in merge")
	}
	if out.Pricing.Text.Output == nil || *out.Pricing.Text.Output != 10 {
		t.Error("src output price not merged")
	}
	if out.Metadata["family"] != "gpt" || out.Metadata["source"] != "catalog" {
		t.Errorf("metadata not merged: %v", out.Metadata)
	}
	if out.DisplayName != "GPT-4o" {
		t.Errorf("display name overwritten by empty src: %q", out.DisplayName)
	}
}

func TestMerge_ExperimentalTierDoesNotDowngrade(t *testing.T) {
	base := ModelInfo{ID: "m", Provider: "p", Tier: TierFlagship, ContextWindow: 1}
	src := ModelInfo{ID: "m", Provider: "p", Tier: TierExperimental, ContextWindow: 1}
	if got := Merge(base, src).Tier; got != TierFlagship {
		t.Errorf("expected flagship preserved, got %s", got)
	}
	// When the base has no tier at all, even experimental fills it.
	empty := ModelInfo{ID: "m", Provider: "p", ContextWindow: 1}
	if got := Merge(empty, src).Tier; got != TierExperimental {
		t.Errorf("expected experimental adopted, got %s", got)
	}
}

func TestDetectTier(t *testing.T) {
	tests := []struct {
		id   string
		want Tier
	}{
		{"gpt-4o-mini", TierEfficient},
		{"gpt-4o", TierFlagship},
		{"o1-preview", TierExperimental},
		{"claude-instant-1.2", TierLegacy},
		{"text-embedding-3-small", TierEfficient},
	}
	for _, tt := range tests {
		if got := DetectTier(tt.id); got != tt.want {
			t.Errorf("DetectTier(%q) = %s, want %s", tt.id, got, tt.want)
		}
	}
}
