// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"net/http"

	"github.com/northbound/kbengine/internal/bridge"
)

type healthHandler struct {
	bridgeClient *bridge.Client
}

// handle serves GET /api/v1/health: a bridge ping verifies the
// subprocess is alive and responsive, the way HandleHealth in the
// teacher checks the process it fronts is up.
func (h *healthHandler) handle(w http.ResponseWriter, r *http.Request) {
	status := "up"
	code := http.StatusOK
	if err := h.bridgeClient.Ping(r.Context()); err != nil {
		status = "down"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}
