package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	modelrouter "github.com/ferro-labs/model-router"
	"github.com/ferro-labs/model-router/models"
)

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a router error kind to an HTTP status and writes a JSON
// error body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal"

	var re *modelrouter.Error
	if errors.As(err, &re) {
		kind = string(re.Kind)
		switch re.Kind {
		case modelrouter.KindNoModelFound:
			status = http.StatusNotFound
		case modelrouter.KindProviderCapabilityMissing,
			modelrouter.KindDispatchUnsupported,
			modelrouter.KindValidationFailed:
			status = http.StatusBadRequest
		case modelrouter.KindCancelled:
			// Client went away; 499 in the nginx tradition.
			status = 499
		case modelrouter.KindProviderError, modelrouter.KindRegistryError:
			status = http.StatusBadGateway
		}
	}

	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"kind":    kind,
			"message": err.Error(),
		},
	})
}

// requestOptions converts the optional inline metadata block into per-call
// options.
func requestOptions(md *models.Metadata) []modelrouter.RequestOption {
	if md == nil {
		return nil
	}
	return []modelrouter.RequestOption{modelrouter.WithMetadata(*md)}
}

func modelsHandler(router *modelrouter.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"object": "list",
			"data":   router.Models(),
		})
	}
}

func statsHandler(router *modelrouter.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, router.Stats())
	}
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

func refreshHandler(router *modelrouter.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := router.Refresh(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"models": len(router.Models())})
	}
}
