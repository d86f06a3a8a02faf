package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/ferro-labs/model-router/models"
)

// ModelSource enumerates model metadata from an external system. Sources
// enrich provider listings during refresh with pricing and metrics the
// provider itself does not expose.
type ModelSource interface {
	Name() string
	FetchModels(ctx context.Context) ([]models.ModelInfo, error)
}

// FuncSource adapts a plain function to the ModelSource interface.
type FuncSource struct {
	SourceName string
	Fetch      func(ctx context.Context) ([]models.ModelInfo, error)
}

// Name returns the source name used in refresh logs.
func (s FuncSource) Name() string { return s.SourceName }

// FetchModels invokes the wrapped function.
func (s FuncSource) FetchModels(ctx context.Context) ([]models.ModelInfo, error) {
	return s.Fetch(ctx)
}

// HTTPSource fetches a JSON model catalog from a URL. The document is either
// a bare array of models or an object with a "models" array.
type HTTPSource struct {
	URL string

	// Token authenticates with a static bearer token. Ignored when OAuth is
	// set.
	Token string

	// OAuth, when non-nil, authenticates via the OAuth2 client-credentials
	// flow; tokens are fetched and refreshed automatically.
	OAuth *clientcredentials.Config

	// Client overrides the HTTP client. Nil uses a 30s-timeout default, or
	// the OAuth-wrapped client when OAuth is set.
	Client *http.Client
}

// Name returns the catalog URL.
func (s *HTTPSource) Name() string { return s.URL }

// FetchModels downloads and decodes the catalog document.
func (s *HTTPSource) FetchModels(ctx context.Context) ([]models.ModelInfo, error) {
	client := s.Client
	if client == nil {
		if s.OAuth != nil {
			client = s.OAuth.Client(ctx)
		} else {
			client = &http.Client{Timeout: 30 * time.Second}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	if s.OAuth == nil && s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model source %s: %w", s.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model source %s: HTTP %d", s.URL, resp.StatusCode)
	}

	var list []models.ModelInfo
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var doc struct {
		Models []models.ModelInfo `json:"models"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("model source %s: %w", s.URL, err)
	}
	return doc.Models, nil
}
