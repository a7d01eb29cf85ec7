// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package retrieval implements the Retrieval Service: embed the query,
// run the Storage Adapter's hybrid search, and return ranked chunks —
// failing soft (empty list, logged) so a retrieval outage never blocks a
// chat turn.
//
// Grounded on spec.md §4.7's retrieve() contract together with the
// teacher's internal/vectordb package (vectordb.go), which defines the
// same "embed then search, treat the backing store as swappable" shape
// for its own retrieval path.
package retrieval

import (
	"context"

	"github.com/northbound/kbengine/internal/embedding"
	"github.com/northbound/kbengine/internal/logger"
	"github.com/northbound/kbengine/internal/storage"
)

const (
	semanticBoost          = 0.7
	similarityThreshold    = 0.3
	minCandidatePool       = 50
)

// RetrievedChunk is one ranked hit returned to the Chat Orchestrator.
type RetrievedChunk struct {
	DocumentID     string
	Filename       string
	Content        string
	RelevanceScore float64
}

// Service retrieves context chunks for a query.
type Service struct {
	storage  *storage.Adapter
	embedder *embedding.Client
}

func New(storageAdapter *storage.Adapter, embedder *embedding.Client) *Service {
	return &Service{storage: storageAdapter, embedder: embedder}
}

// Retrieve embeds query and runs a hybrid search scoped to projectID,
// returning up to k chunks. Any failure (embedding or search) is
// swallowed into an empty result: the spec treats retrieval as best
// effort so a chat turn can proceed without context rather than fail.
func (s *Service) Retrieve(ctx context.Context, projectID, query string, k int) []RetrievedChunk {
	vector, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		logger.Warnf("retrieval: embedding query failed, returning no context: %v", err)
		return nil
	}

	numCandidates := 2 * k
	if numCandidates < minCandidatePool {
		numCandidates = minCandidatePool
	}

	hits, err := s.storage.HybridSearch(ctx, storage.HybridSearchParams{
		ProjectID:     projectID,
		QueryText:     query,
		QueryVector:   vector,
		K:             k,
		NumCandidates: numCandidates,
		SemanticBoost: semanticBoost,
	})
	if err != nil {
		logger.Warnf("retrieval: hybrid search failed, returning no context: %v", err)
		return nil
	}

	return toChunks(hits)
}

// RetrieveBySimilarity is the pure-vector fallback for callers that opt
// out of hybrid search.
func (s *Service) RetrieveBySimilarity(ctx context.Context, projectID, query string, k int) []RetrievedChunk {
	vector, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		logger.Warnf("retrieval: embedding query failed, returning no context: %v", err)
		return nil
	}

	hits, err := s.storage.SimilaritySearch(ctx, storage.SimilaritySearchParams{
		ProjectID:   projectID,
		QueryVector: vector,
		K:           k,
		Threshold:   similarityThreshold,
	})
	if err != nil {
		logger.Warnf("retrieval: similarity search failed, returning no context: %v", err)
		return nil
	}

	return toChunks(hits)
}

func toChunks(hits []storage.Hit) []RetrievedChunk {
	out := make([]RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, RetrievedChunk{
			DocumentID:     h.DocumentID,
			Filename:       h.Metadata["filename"],
			Content:        h.Content,
			RelevanceScore: h.Score,
		})
	}
	return out
}
