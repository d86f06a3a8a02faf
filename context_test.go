package modelrouter

import (
	"context"
	"errors"
	"testing"

	"github.com/ferro-labs/model-router/models"
)

func TestBuildRequestContext_ValuePrecedence(t *testing.T) {
	r := mustRouter(t, Config{
		DefaultContext: map[string]any{"org": "acme", "env": "dev", "region": "us"},
		ProvideContext: func(ctx context.Context, values map[string]any) (map[string]any, error) {
			// The callback sees defaults merged with caller values.
			if values["org"] != "acme" {
				t.Errorf("callback input missing defaults: %v", values)
			}
			return map[string]any{"env": "staging", "trace": "t-1"}, nil
		},
	})

	rc, err := r.buildRequestContext(context.Background(), []RequestOption{
		WithContextValues(map[string]any{"env": "prod"}),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// Caller values beat provided values beat defaults.
	if rc.Values["env"] != "prod" {
		t.Errorf("env = %v, want caller's prod", rc.Values["env"])
	}
	if rc.Values["trace"] != "t-1" || rc.Values["region"] != "us" {
		t.Errorf("values = %v", rc.Values)
	}
	if rc.Router != r {
		t.Error("facade back-reference missing")
	}
}

func TestBuildRequestContext_MetadataPrecedence(t *testing.T) {
	r := mustRouter(t, Config{
		DefaultMetadata: &models.Metadata{
			Tier:     models.TierEfficient,
			Required: models.CapabilitySet{models.CapChat},
		},
		ProvideMetadata: func(ctx context.Context, md models.Metadata) (models.Metadata, error) {
			md.Required = md.Required.Add(models.CapJSON)
			return md, nil
		},
	})

	rc, err := r.buildRequestContext(context.Background(), []RequestOption{
		WithMetadata(models.Metadata{Tier: models.TierFlagship}),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// The caller's metadata is merged back on top of the provider's output.
	if rc.Metadata.Tier != models.TierFlagship {
		t.Errorf("tier = %s, want caller's flagship", rc.Metadata.Tier)
	}
	if !rc.Metadata.Required.Has(models.CapChat) || !rc.Metadata.Required.Has(models.CapJSON) {
		t.Errorf("required = %v", rc.Metadata.Required)
	}
}

func TestBuildRequestContext_ProvideErrors(t *testing.T) {
	boom := errors.New("directory unavailable")
	r := mustRouter(t, Config{
		ProvideContext: func(ctx context.Context, values map[string]any) (map[string]any, error) {
			return nil, boom
		},
	})
	if _, err := r.buildRequestContext(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("expected provide error, got %v", err)
	}

	r = mustRouter(t, Config{
		ProvideMetadata: func(ctx context.Context, md models.Metadata) (models.Metadata, error) {
			return models.Metadata{}, boom
		},
	})
	if _, err := r.buildRequestContext(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("expected provide error, got %v", err)
	}
}

func TestWithMetadata_StacksAcrossOptions(t *testing.T) {
	r := mustRouter(t, Config{})
	rc, err := r.buildRequestContext(context.Background(), []RequestOption{
		WithMetadata(models.Metadata{Required: models.CapabilitySet{models.CapChat}}),
		WithMetadata(models.Metadata{Required: models.CapabilitySet{models.CapTools}, Tier: models.TierFlagship}),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rc.Metadata.Required) != 2 || rc.Metadata.Tier != models.TierFlagship {
		t.Errorf("metadata = %+v", rc.Metadata)
	}
}
