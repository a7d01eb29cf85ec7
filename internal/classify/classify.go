// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package classify offers small non-streaming LLM helpers that sit
// outside the chat turn: today, suggesting a short human-readable
// title for a document once ingestion finishes.
//
// Grounded on internal/ai/question.go's AskQuestion: same idiom of a
// tightly scoped system prompt asking for a short answer, now routed
// through internal/llm.Client instead of a bespoke OpenAI call. The
// call uses that client's configured max_tokens and temperature; this
// package sets no budget of its own.
package classify

import (
	"context"
	"strings"

	"github.com/northbound/kbengine/internal/llm"
)

const titleSystemPrompt = `You suggest a short, descriptive title for a document based on an excerpt from it. Respond with the title only: no punctuation at the end, no quotes, no preamble.`

const maxExcerptChars = 2000

// Client suggests titles via a non-streaming LLM call.
type Client struct {
	llmClient *llm.Client
}

func New(llmClient *llm.Client) *Client {
	return &Client{llmClient: llmClient}
}

// SuggestTitle asks the LLM for a short title based on the start of a
// document's extracted text. Returns "" on any LLM failure: title
// suggestion is a convenience, never a blocking step in ingestion.
func (c *Client) SuggestTitle(ctx context.Context, content string) string {
	excerpt := content
	if len(excerpt) > maxExcerptChars {
		excerpt = excerpt[:maxExcerptChars]
	}
	if strings.TrimSpace(excerpt) == "" {
		return ""
	}

	messages := []llm.Message{
		{Role: "system", Content: titleSystemPrompt},
		{Role: "user", Content: excerpt},
	}

	title, err := c.llmClient.Complete(ctx, messages)
	if err != nil {
		return ""
	}
	return strings.Trim(strings.TrimSpace(title), `"'`)
}
