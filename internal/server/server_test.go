// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/northbound/kbengine/internal/apperrors"
)

func TestWriteErrorMapsKindToStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", apperrors.Validation("bad input"), 400},
		{"not found", apperrors.NotFound("no such project"), 404},
		{"storage", apperrors.Storage("writing row", errors.New("disk full")), 500},
		{"runtime", apperrors.Runtime("bridge down", errors.New("eof")), 500},
		{"embedding", apperrors.Embedding("batch failed", errors.New("timeout")), 502},
		{"llm", apperrors.LLM("api error", nil), 502},
		{"unknown error type", errors.New("boom"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding response body: %v", err)
			}
			if !strings.Contains(body["error"], tt.err.Error()) {
				t.Fatalf("expected error body to contain %q, got %q", tt.err.Error(), body["error"])
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, 201, map[string]string{"id": "abc"})

	if rec.Code != 201 {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json content type, got %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	if body["id"] != "abc" {
		t.Fatalf("expected id %q, got %q", "abc", body["id"])
	}
}

func TestDecodeJSONInvalidBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader("not json"))
	var v map[string]string
	err := decodeJSON(req, &v)
	if err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.KindValidation {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestDecodeJSONValidBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"demo"}`))
	var v struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(req, &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Name != "demo" {
		t.Fatalf("expected name %q, got %q", "demo", v.Name)
	}
}
