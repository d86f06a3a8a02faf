package main

import (
	"encoding/json"
	"io"
	"net/http"

	modelrouter "github.com/ferro-labs/model-router"
	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
)

type speechHTTPRequest struct {
	providers.SpeechRequest
	Metadata *models.Metadata `json:"metadata,omitempty"`
}

func speechHandler(router *modelrouter.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req speechHTTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"kind": "invalid-body", "message": err.Error()},
			})
			return
		}
		resp, err := router.Speech(r.Context(), req.SpeechRequest, requestOptions(req.Metadata)...)
		if err != nil {
			writeError(w, err)
			return
		}
		mime := resp.MIMEType
		if mime == "" {
			mime = "application/octet-stream"
		}
		w.Header().Set("Content-Type", mime)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp.Audio)
	}
}

// transcriptionsHandler accepts multipart form data: "file" plus optional
// "model", "language", and "prompt" fields.
func transcriptionsHandler(router *modelrouter.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const maxAudio = 64 << 20
		if err := r.ParseMultipartForm(maxAudio); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"kind": "invalid-body", "message": err.Error()},
			})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"kind": "invalid-body", "message": "missing file field"},
			})
			return
		}
		defer func() { _ = file.Close() }()
		audio, err := io.ReadAll(io.LimitReader(file, maxAudio))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"kind": "invalid-body", "message": err.Error()},
			})
			return
		}

		req := providers.TranscriptionRequest{
			Model:    r.FormValue("model"),
			Audio:    audio,
			Filename: header.Filename,
			MIMEType: header.Header.Get("Content-Type"),
			Language: r.FormValue("language"),
			Prompt:   r.FormValue("prompt"),
		}
		resp, err := router.Transcribe(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
