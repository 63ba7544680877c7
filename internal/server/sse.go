// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/strand-ai/strand/internal/agent"
	"github.com/strand-ai/strand/internal/provider"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// ChatStreamRequest is the request body for the SSE streaming endpoint.
type ChatStreamRequest struct {
	Content  string `json:"content"`
	Provider string `json:"provider,omitempty"`
	System   string `json:"system,omitempty"`
}

// sseEvent names mirror the loop-step grammar.
const (
	eventContent     = "content"
	eventThinking    = "thinking"
	eventToolCalls   = "tool_calls"
	eventToolResults = "tool_results"
	eventDone        = "done"
	eventError       = "error"
)

// handleChatStream runs one chat loop and relays its events as SSE. Tool
// execution happens server-side through the registry; the client only
// observes the event stream.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req ChatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest,
			stranderr.Wrapf(err, stranderr.CodeServerRequestInvalid, "decoding request body"))
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest,
			stranderr.New(stranderr.CodeServerRequestInvalid, "content is required"))
		return
	}

	p, ok := s.resolveProvider(req.Provider)
	if !ok {
		writeError(w, http.StatusBadRequest,
			stranderr.Errorf(stranderr.CodeServerRequestInvalid, "unknown provider %q", req.Provider))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError,
			stranderr.New(stranderr.CodeServerStartFailure, "response writer does not support streaming"))
		return
	}

	if req.System != "" {
		p.UpdateConfig(func(cfg *provider.Config) {
			cfg.SystemPrompt = req.System
		})
	}

	streamID := uuid.New().String()
	slog.Info("chat stream started", "stream_id", streamID, "provider", p.Name())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	messages := []provider.Message{{Role: provider.RoleUser, Content: req.Content}}

	detectorCfg := agent.DefaultDetectorConfig()
	resp, err := agent.ChatLoopWithTools(r.Context(), p, messages, nil, agent.Config{
		Registry:  s.cfg.Registry,
		MaxRounds: s.cfg.MaxRounds,
		OnContent: func(text string) {
			send(eventContent, map[string]string{"text": text})
		},
		OnThinking: func(text string) {
			send(eventThinking, map[string]string{"text": text})
		},
		OnToolCalls: func(calls []provider.ToolCall) {
			payload := make([]map[string]any, 0, len(calls))
			for _, call := range calls {
				payload = append(payload, map[string]any{
					"id":        call.ID,
					"name":      call.Name,
					"arguments": json.RawMessage(call.Arguments),
				})
			}
			send(eventToolCalls, map[string]any{"calls": payload})
		},
		OnToolResults: func(results []provider.ToolResult) {
			payload := make([]map[string]any, 0, len(results))
			for _, result := range results {
				payload = append(payload, map[string]any{
					"tool_call_id": result.ToolCallID,
					"content":      result.Content,
					"is_error":     result.IsError,
				})
			}
			send(eventToolResults, map[string]any{"results": payload})
		},
		LoopDetection: &detectorCfg,
	})
	if err != nil {
		slog.Warn("chat stream failed", "stream_id", streamID, "error", err)
		send(eventError, map[string]string{
			"error": err.Error(),
			"code":  string(stranderr.CodeOf(err)),
		})
		return
	}

	send(eventDone, map[string]any{
		"id":      streamID,
		"content": resp.Content,
		"rounds":  resp.Rounds,
		"usage": map[string]int{
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
			"cached_tokens": resp.Usage.CachedTokens,
			"total_tokens":  resp.Usage.Total(),
		},
	})
}
