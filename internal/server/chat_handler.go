// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/conversation"
	"github.com/northbound/kbengine/internal/events"
	"github.com/northbound/kbengine/internal/logger"
	"github.com/northbound/kbengine/internal/models"
)

// ChatService is the subset of internal/chat.Service this handler
// needs, named as an interface the way hive_service.go's
// AnalystPoolInterface decouples HiveService from the worker package.
type ChatService interface {
	SendMessage(ctx context.Context, conversationID, projectID, content string) (models.Message, error)
}

type chatHandler struct {
	chat          ChatService
	broadcaster   *events.Broadcaster
	conversations *conversation.Service
}

type sendMessageRequest struct {
	ProjectID string `json:"project_id"`
	Content   string `json:"content"`
}

// history handles GET /api/v1/conversations/{id}/messages
func (h *chatHandler) history(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	messages, err := h.conversations.Messages(r.Context(), conversationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// send handles POST /api/v1/conversations/{id}/messages. The turn's
// chat-stream-* events (already published to the events websocket by
// internal/chat.Service) are teed onto this response as SSE, per
// SPEC_FULL.md §6's "(SSE response)" annotation on this route.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Content == "" {
		writeError(w, apperrors.Validation("content must not be empty"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.New(apperrors.KindRuntime, "streaming not supported by this connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	listenerID, ch := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listenerID)

	type turnResult struct {
		msg models.Message
		err error
	}
	done := make(chan turnResult, 1)
	go func() {
		msg, err := h.chat.SendMessage(r.Context(), conversationID, req.ProjectID, req.Content)
		done <- turnResult{msg: msg, err: err}
	}()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			if !belongsToConversation(ev, conversationID) {
				continue
			}
			writeSSE(w, flusher, ev)
			if ev.Kind == events.ChatStreamEnd || ev.Kind == events.ChatStreamError {
				return
			}
		case result := <-done:
			if result.err != nil {
				writeSSE(w, flusher, events.Event{Kind: events.ChatStreamError, Payload: map[string]string{
					"conversation_id": conversationID,
					"error":           result.err.Error(),
				}})
				return
			}
			// The turn has finished; keep relaying until its
			// chat-stream-end event arrives.
			done = nil
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Warnf("server: failed to encode SSE event: %v", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func belongsToConversation(ev events.Event, conversationID string) bool {
	switch payload := ev.Payload.(type) {
	case map[string]string:
		id, ok := payload["conversation_id"]
		return !ok || id == conversationID
	case map[string]interface{}:
		id, ok := payload["conversation_id"]
		if !ok {
			return true
		}
		idStr, _ := id.(string)
		return idStr == conversationID
	default:
		return true
	}
}
