// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"net/http"

	"github.com/northbound/kbengine/internal/conversation"
)

type conversationsHandler struct {
	conversations *conversation.Service
}

type createConversationRequest struct {
	Title string `json:"title"`
}

// create handles POST /api/v1/projects/{id}/conversations
func (h *conversationsHandler) create(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req createConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.conversations.Create(r.Context(), projectID, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// list handles GET /api/v1/projects/{id}/conversations
func (h *conversationsHandler) list(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	conversations, err := h.conversations.ListByProject(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}
