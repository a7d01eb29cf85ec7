// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"net/http"

	"github.com/northbound/kbengine/internal/bridge"
	"github.com/northbound/kbengine/internal/conversation"
	"github.com/northbound/kbengine/internal/documentsvc"
	"github.com/northbound/kbengine/internal/events"
	"github.com/northbound/kbengine/internal/project"
)

// Deps collects the services routes.go wires into handlers, one per
// SPEC_FULL.md §2 component that sits behind this HTTP surface.
type Deps struct {
	Projects      *project.Service
	Documents     *documentsvc.Service
	Conversations *conversation.Service
	Chat          ChatService
	Broadcaster   *events.Broadcaster
	Bridge        *bridge.Client
}

// Routes builds the engine's HTTP surface per SPEC_FULL.md §6, mirroring
// the teacher's routes() function in cmd/hive-server/main.go: one
// http.ServeMux, one handler per resource.
func Routes(d Deps) http.Handler {
	mux := http.NewServeMux()

	ph := &projectsHandler{projects: d.Projects}
	dh := &documentsHandler{documents: d.Documents}
	ch := &conversationsHandler{conversations: d.Conversations}
	chh := &chatHandler{chat: d.Chat, broadcaster: d.Broadcaster, conversations: d.Conversations}
	hh := &healthHandler{bridgeClient: d.Bridge}

	mux.HandleFunc("POST /api/v1/projects", ph.create)
	mux.HandleFunc("GET /api/v1/projects", ph.list)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", ph.delete)

	mux.HandleFunc("POST /api/v1/projects/{id}/documents", dh.ingest)
	mux.HandleFunc("GET /api/v1/projects/{id}/documents", dh.list)

	mux.HandleFunc("POST /api/v1/projects/{id}/conversations", ch.create)
	mux.HandleFunc("GET /api/v1/projects/{id}/conversations", ch.list)

	mux.HandleFunc("GET /api/v1/conversations/{id}/messages", chh.history)
	mux.HandleFunc("POST /api/v1/conversations/{id}/messages", chh.send)

	mux.HandleFunc("GET /api/v1/events", d.Broadcaster.HandleWebSocket)
	mux.HandleFunc("GET /api/v1/health", hh.handle)
	mux.HandleFunc("GET /api/v1/logs/stream", HandleLogStream)

	return mux
}
