// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/northbound/kbengine/internal/apperrors"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{APIKey: "key", Temperature: 0.7, MaxTokens: 500}, false},
		{"zero max tokens means unset", Config{APIKey: "key", Temperature: 0.7}, false},
		{"missing api key", Config{Temperature: 0.7}, true},
		{"temperature too low", Config{APIKey: "key", Temperature: -0.1}, true},
		{"temperature too high", Config{APIKey: "key", Temperature: 2.1}, true},
		{"max tokens too high", Config{APIKey: "key", MaxTokens: 40000}, true},
		{"max tokens negative", Config{APIKey: "key", MaxTokens: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected an error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewDefaultsBaseURL(t *testing.T) {
	c, err := New(Config{APIKey: "key", Temperature: 0.5})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if c.cfg.BaseURL != "https://api.openai.com/v1" {
		t.Fatalf("expected default base url, got %q", c.cfg.BaseURL)
	}
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected bearer auth header, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: &Message{Role: "assistant", Content: "hello there"}}},
		})
	}))
	defer server.Close()

	c, err := New(Config{APIKey: "test-key", BaseURL: server.URL, Temperature: 0.5})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	got, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("expected %q, got %q", "hello there", got)
	}
}

func TestCompleteEmptyChoicesIsAnLLMError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer server.Close()

	c, err := New(Config{APIKey: "test-key", BaseURL: server.URL, Temperature: 0.5})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected an error for an empty choices response")
	}
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.KindLLM {
		t.Fatalf("expected an LLM error, got %v", err)
	}
}

func TestCompleteNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c, err := New(Config{APIKey: "test-key", BaseURL: server.URL, Temperature: 0.5})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}
