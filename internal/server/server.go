// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package server exposes the engine over HTTP: a handler per resource,
// wired together by a single http.ServeMux, the way the teacher's
// cmd/hive-server/main.go builds its routes() function. This layer
// exists only so the core components are reachable without a desktop
// shell; it carries no business logic of its own beyond request
// decoding, response encoding, and mapping apperrors.Kind to a status
// code.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/logger"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Warnf("server: failed to encode response: %v", err)
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperrors.KindValidation:
			status = http.StatusBadRequest
		case apperrors.KindNotFound:
			status = http.StatusNotFound
		case apperrors.KindStorage, apperrors.KindRuntime:
			status = http.StatusInternalServerError
		case apperrors.KindEmbedding, apperrors.KindLLM, apperrors.KindExtraction, apperrors.KindChunking:
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apperrors.Validation("invalid JSON body: " + err.Error())
	}
	return nil
}
