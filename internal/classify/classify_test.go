// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/northbound/kbengine/internal/llm"
)

func newTestLLMClient(t *testing.T, handler http.HandlerFunc) *llm.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := llm.New(llm.Config{APIKey: "test-key", BaseURL: server.URL, Temperature: 0.1})
	if err != nil {
		t.Fatalf("llm.New returned error: %v", err)
	}
	return c
}

func TestSuggestTitle(t *testing.T) {
	var receivedExcerpt string
	llmClient := newTestLLMClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []llm.Message `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) == 2 {
			receivedExcerpt = body.Messages[1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": `"Quarterly Planning Notes"`}},
			},
		})
	})

	c := New(llmClient)
	title := c.SuggestTitle(context.Background(), "Q3 planning covers headcount and budget.")

	if title != "Quarterly Planning Notes" {
		t.Fatalf("expected quotes to be trimmed from the title, got %q", title)
	}
	if receivedExcerpt != "Q3 planning covers headcount and budget." {
		t.Fatalf("expected the excerpt to be forwarded verbatim, got %q", receivedExcerpt)
	}
}

func TestSuggestTitleTruncatesLongExcerpts(t *testing.T) {
	var receivedLen int
	llmClient := newTestLLMClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []llm.Message `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) == 2 {
			receivedLen = len(body.Messages[1].Content)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "Title"}},
			},
		})
	})

	c := New(llmClient)
	c.SuggestTitle(context.Background(), strings.Repeat("a", maxExcerptChars*2))

	if receivedLen != maxExcerptChars {
		t.Fatalf("expected excerpt truncated to %d chars, got %d", maxExcerptChars, receivedLen)
	}
}

func TestSuggestTitleBlankContentReturnsEmpty(t *testing.T) {
	llmClient := newTestLLMClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not call the LLM for blank content")
	})

	c := New(llmClient)
	if got := c.SuggestTitle(context.Background(), "   \n\t  "); got != "" {
		t.Fatalf("expected empty title for blank content, got %q", got)
	}
}

func TestSuggestTitleLLMFailureReturnsEmpty(t *testing.T) {
	llmClient := newTestLLMClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := New(llmClient)
	if got := c.SuggestTitle(context.Background(), "some content"); got != "" {
		t.Fatalf("expected empty title on LLM failure, got %q", got)
	}
}
