// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package embedding implements the Embedding Client described in
// SPEC_FULL.md §4.5: batching by 25 with order-preserving reassembly and
// exponential-backoff retry around a provider call.
//
// The provider call itself is delegated to the teacher's
// internal/embeddings package (OpenAI/Ollama/mock factory,
// internal/embeddings/{openai,ollama,mock}.go) — this package adds the
// batching and retry discipline the spec requires on top, since the
// teacher's embedder implementations call the provider directly with no
// batching cap or retry loop of their own.
package embedding

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"time"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/embeddings"
	"github.com/northbound/kbengine/internal/logger"
)

const (
	batchSize    = 25
	maxRetries   = 3
	initialDelay = 1000 * time.Millisecond
	maxDelay     = 30 * time.Second
)

// Client batches and retries calls to an underlying embeddings.Embedder.
type Client struct {
	embedder embeddings.Embedder
}

func New(embedder embeddings.Embedder) *Client {
	return &Client{embedder: embedder}
}

func (c *Client) Dimension() int { return c.embedder.Dimension() }

// EmbedOne is syntactic sugar for a one-element batch.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Embed splits texts into batches of 25, embeds each with retry, and
// reassembles the results in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := c.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, err
		}
		result = append(result, vectors...)
	}
	return result, nil
}

// embedBatchWithRetry re-sends a single batch up to maxRetries times with
// exponential backoff, retrying only on connection/timeout/429/5xx errors.
func (c *Client) embedBatchWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	delay := initialDelay
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		vectors, err := c.embedder.EmbedBatch(ctx, batch)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == maxRetries {
			return nil, apperrors.Embedding("embedding batch failed", err)
		}

		logger.Warnf("embedding batch attempt %d/%d failed, retrying in %s: %v", attempt+1, maxRetries, delay, err)

		select {
		case <-ctx.Done():
			return nil, apperrors.Embedding("embedding batch cancelled", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(math.Min(float64(delay*2), float64(maxDelay)))
	}

	return nil, apperrors.Embedding("embedding batch failed after retries", lastErr)
}

func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, code := range []string{"429", "500", "502", "503", "504", "connection", "timeout"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
