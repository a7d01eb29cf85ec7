// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package documentsvc implements the Document service: a validating
// wrapper over the Storage Adapter and the Ingestion Coordinator that
// owns the Document mutex named in the concurrency model.
//
// Grounded on
// original_source/src-tauri/src/services/document_service.rs's
// ingest/list/delete/search_similar_chunks surface, now split between
// this package (CRUD and orchestration) and internal/ingestion (the
// pipeline itself) and internal/retrieval (the search call).
package documentsvc

import (
	"context"
	"sync"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/ingestion"
	"github.com/northbound/kbengine/internal/models"
	"github.com/northbound/kbengine/internal/retrieval"
	"github.com/northbound/kbengine/internal/storage"
)

type Service struct {
	mu          sync.Mutex
	storage     *storage.Adapter
	coordinator *ingestion.Coordinator
	retriever   *retrieval.Service
}

func New(storageAdapter *storage.Adapter, coordinator *ingestion.Coordinator, retriever *retrieval.Service) *Service {
	return &Service{storage: storageAdapter, coordinator: coordinator, retriever: retriever}
}

// Ingest runs the full pipeline for one file and returns the persisted
// Document row (which may carry ProcessingStatus=Failed on error — the
// caller decides whether a pipeline error or a Failed status is itself
// the actionable signal).
func (s *Service) Ingest(ctx context.Context, projectID, filePath string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coordinator.Ingest(ctx, projectID, filePath)
}

func (s *Service) Reprocess(ctx context.Context, projectID, documentID, filePath string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coordinator.Reprocess(ctx, projectID, documentID, filePath)
}

func (s *Service) ListByProject(ctx context.Context, projectID string) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.LoadDocumentsByProject(ctx, projectID)
}

func (s *Service) Get(ctx context.Context, id string) (models.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.LoadDocumentByID(ctx, id)
}

// Delete removes a document and its chunks (Document exclusively owns
// its Chunks, per the containment rule).
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.storage.DeleteChunksByDocument(ctx, id); err != nil {
		return err
	}
	n, err := s.storage.DeleteDocumentByID(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("document not found: " + id)
	}
	return nil
}

// SearchSimilarChunks runs the Retrieval Service's hybrid search
// scoped to a project, used by the Chat Orchestrator.
func (s *Service) SearchSimilarChunks(ctx context.Context, projectID, query string, k int) []retrieval.RetrievedChunk {
	return s.retriever.Retrieve(ctx, projectID, query, k)
}
