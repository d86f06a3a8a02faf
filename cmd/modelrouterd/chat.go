package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	modelrouter "github.com/ferro-labs/model-router"
	"github.com/ferro-labs/model-router/models"
	"github.com/ferro-labs/model-router/providers"
)

// chatHTTPRequest is the wire shape of POST /v1/chat/completions: the
// neutral chat request plus the stream flag and an optional inline metadata
// block.
type chatHTTPRequest struct {
	providers.ChatRequest
	Stream   bool             `json:"stream,omitempty"`
	Metadata *models.Metadata `json:"metadata,omitempty"`
}

func chatHandler(router *modelrouter.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatHTTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"kind": "invalid-body", "message": err.Error()},
			})
			return
		}
		opts := requestOptions(req.Metadata)

		if req.Stream {
			ch, err := router.ChatStream(r.Context(), req.ChatRequest, opts...)
			if err != nil {
				writeError(w, err)
				return
			}
			writeChatSSE(w, ch)
			return
		}

		resp, err := router.Chat(r.Context(), req.ChatRequest, opts...)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// writeChatSSE streams chat chunks as server-sent events, terminated by a
// [DONE] sentinel.
func writeChatSSE(w http.ResponseWriter, ch <-chan providers.ChatChunk) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)

	for chunk := range ch {
		if chunk.Err != nil {
			payload, _ := json.Marshal(map[string]any{
				"error": map[string]any{"kind": "stream-error", "message": chunk.Err.Error()},
			})
			_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
			if flusher != nil {
				flusher.Flush()
			}
			return
		}
		data, _ := json.Marshal(chunk)
		_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
	_, _ = fmt.Fprintf(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}
