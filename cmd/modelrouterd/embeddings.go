package main

import (
	"encoding/json"
	"net/http"

	modelrouter "github.com/ferro-labs/model-router"
	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
)

type embeddingsHTTPRequest struct {
	providers.EmbeddingRequest
	Metadata *models.Metadata `json:"metadata,omitempty"`
}

func embeddingsHandler(router *modelrouter.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req embeddingsHTTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"kind": "invalid-body", "message": err.Error()},
			})
			return
		}
		resp, err := router.Embed(r.Context(), req.EmbeddingRequest, requestOptions(req.Metadata)...)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
