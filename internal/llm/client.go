// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package llm implements the LLM Stream Client: an OpenAI-compatible
// chat-completions caller that parses the SSE token stream and surfaces
// it as a channel of StreamEvent, plus a non-streaming Complete path.
//
// Grounded on
// original_source/src-tauri/src/services/llm_client.rs's
// generate_openai_response/handle_streaming_response/
// handle_non_streaming_response: same request shape
// (model/messages/stream/max_tokens/temperature), same SSE framing
// (buffer bytes, split on '\n', strip "data: ", stop on "[DONE]" or a
// finish_reason of stop/length), same config validation bounds.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/northbound/kbengine/internal/apperrors"
)

// Config configures one LLM Stream Client call.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Stream      bool
}

// Validate enforces the bounds from llm_client.rs's validate_config.
func (c Config) Validate() error {
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return apperrors.Validation("llm temperature must be between 0.0 and 2.0")
	}
	if c.MaxTokens != 0 && (c.MaxTokens < 1 || c.MaxTokens > 32000) {
		return apperrors.Validation("llm max_tokens must be between 1 and 32000")
	}
	if c.APIKey == "" {
		return apperrors.Validation("llm api key is required")
	}
	return nil
}

// Message is one chat turn sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EventKind distinguishes StreamEvent payloads.
type EventKind string

const (
	EventToken    EventKind = "token"
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
)

// StreamEvent is one item from a streaming or non-streaming completion.
type StreamEvent struct {
	Kind    EventKind
	Token   string
	Err     error
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatDelta struct {
	Content string `json:"content"`
}

type chatChoice struct {
	Delta        chatDelta `json:"delta"`
	Message      *Message  `json:"message,omitempty"`
	FinishReason *string   `json:"finish_reason"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// Client calls one OpenAI-compatible endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: 120 * time.Second}}, nil
}

// Stream starts a completion and emits token/complete/error events on the
// returned channel, closing it when the stream ends. Cancelling ctx stops
// the HTTP read and closes the channel. When Config.Stream is false it
// makes one Complete call instead and emits its whole text as a single
// token event followed by a complete event.
func (c *Client) Stream(ctx context.Context, messages []Message) (<-chan StreamEvent, error) {
	events := make(chan StreamEvent, 16)

	if !c.cfg.Stream {
		text, err := c.Complete(ctx, messages)
		if err != nil {
			return nil, err
		}
		events <- StreamEvent{Kind: EventToken, Token: text}
		events <- StreamEvent{Kind: EventComplete}
		close(events)
		return events, nil
	}

	req, err := c.buildRequest(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.LLM("sending request", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apperrors.LLM(fmt.Sprintf("llm api error (status %d)", resp.StatusCode), nil)
	}

	go func() {
		defer resp.Body.Close()
		defer close(events)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimSpace(line[len("data: "):])
			if payload == "[DONE]" {
				events <- StreamEvent{Kind: EventComplete}
				return
			}

			var parsed chatResponse
			if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
				continue // skip malformed SSE frames rather than aborting the stream
			}
			if len(parsed.Choices) == 0 {
				continue
			}
			choice := parsed.Choices[0]
			if choice.Delta.Content != "" {
				events <- StreamEvent{Kind: EventToken, Token: choice.Delta.Content}
			}
			if choice.FinishReason != nil && (*choice.FinishReason == "stop" || *choice.FinishReason == "length") {
				events <- StreamEvent{Kind: EventComplete}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			events <- StreamEvent{Kind: EventError, Err: err}
		}
	}()

	return events, nil
}

// Complete performs a single non-streaming call and returns the full
// response text, matching handle_non_streaming_response.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	req, err := c.buildRequest(ctx, messages, false)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.LLM("sending request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.LLM(fmt.Sprintf("llm api error (status %d)", resp.StatusCode), nil)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperrors.LLM("decoding response", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
		return "", apperrors.LLM("empty response from llm", nil)
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) buildRequest(ctx context.Context, messages []Message, stream bool) (*http.Request, error) {
	body := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   stream,
	}
	if c.cfg.MaxTokens > 0 {
		mt := c.cfg.MaxTokens
		body.MaxTokens = &mt
	}
	if c.cfg.Temperature > 0 {
		t := c.cfg.Temperature
		body.Temperature = &t
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.LLM("encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.LLM("building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	return req, nil
}
