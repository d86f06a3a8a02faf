package main

import (
	"encoding/json"
	"net/http"

	modelrouter "github.com/ferro-labs/model-router"
	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
)

type imagesHTTPRequest struct {
	providers.ImageRequest
	Metadata *models.Metadata `json:"metadata,omitempty"`
}

func imagesHandler(router *modelrouter.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req imagesHTTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"kind": "invalid-body", "message": err.Error()},
			})
			return
		}
		resp, err := router.GenerateImage(r.Context(), req.ImageRequest, requestOptions(req.Metadata)...)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type imageEditsHTTPRequest struct {
	providers.ImageEditRequest
	Metadata *models.Metadata `json:"metadata,omitempty"`
}

func imageEditsHandler(router *modelrouter.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req imageEditsHTTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"kind": "invalid-body", "message": err.Error()},
			})
			return
		}
		resp, err := router.EditImage(r.Context(), req.ImageEditRequest, requestOptions(req.Metadata)...)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type imageAnalysesHTTPRequest struct {
	providers.ImageAnalysisRequest
	Stream   bool             `json:"stream,omitempty"`
	Metadata *models.Metadata `json:"metadata,omitempty"`
}

func imageAnalysesHandler(router *modelrouter.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req imageAnalysesHTTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"kind": "invalid-body", "message": err.Error()},
			})
			return
		}
		opts := requestOptions(req.Metadata)

		if req.Stream {
			ch, err := router.AnalyzeImageStream(r.Context(), req.ImageAnalysisRequest, opts...)
			if err != nil {
				writeError(w, err)
				return
			}
			writeChatSSE(w, ch)
			return
		}

		resp, err := router.AnalyzeImage(r.Context(), req.ImageAnalysisRequest, opts...)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
