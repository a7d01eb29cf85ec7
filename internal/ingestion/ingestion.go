// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package ingestion implements the Ingestion Coordinator: it drives one
// document end-to-end through validate -> read -> sha-256 -> the
// Document Processor -> the Embedding Client (batched) -> the Storage
// Adapter, then refreshes the owning project's document_count.
//
// Grounded on spec.md §4.6 for the stage sequence, and on
// internal/server/ingest_handler.go for the general "chunk, embed each
// chunk, upsert with a deterministic per-chunk id" shape (deterministic
// ids are replaced here by the document_id/chunk_index composite key
// the Storage Adapter already upserts on).
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/classify"
	"github.com/northbound/kbengine/internal/document"
	"github.com/northbound/kbengine/internal/embedding"
	"github.com/northbound/kbengine/internal/logger"
	"github.com/northbound/kbengine/internal/models"
	"github.com/northbound/kbengine/internal/storage"
)

// Coordinator runs the ingestion pipeline for one project at a time.
type Coordinator struct {
	processor *document.Processor
	embedder  *embedding.Client
	storage   *storage.Adapter
	titler    *classify.Client
}

func New(processor *document.Processor, embedder *embedding.Client, storageAdapter *storage.Adapter) *Coordinator {
	return &Coordinator{processor: processor, embedder: embedder, storage: storageAdapter}
}

// WithTitler enables document auto-title suggestion on ingestion
// completion. Optional: without it, documents keep their filename as
// their display title.
func (c *Coordinator) WithTitler(titler *classify.Client) *Coordinator {
	c.titler = titler
	return c
}

// Ingest runs a newly discovered file through the full pipeline and
// returns the persisted Document row. On any stage failure the
// Document row is still written, marked Failed with a stage-tagged
// message; chunks already written to the vector store by the time of
// failure are left in place, since the index is additive best-effort.
func (c *Coordinator) Ingest(ctx context.Context, projectID, filePath string) (models.Document, error) {
	doc := models.Document{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		Filename:         filepath.Base(filePath),
		FilePath:         filePath,
		ProcessingStatus: models.DocumentUploaded,
		CreatedAt:        time.Now().UTC(),
	}

	if err := document.ValidateFile(filePath); err != nil {
		return c.fail(ctx, doc, "validation", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return c.fail(ctx, doc, "reading", err)
	}
	doc.FileSize = info.Size()
	doc.MimeType = mimeType(filePath)

	hash, err := hashFile(filePath)
	if err != nil {
		return c.fail(ctx, doc, "reading", err)
	}
	doc.ContentHash = hash
	doc.ProcessingStatus = models.DocumentProcessing
	if err := c.storage.SaveDocument(ctx, doc); err != nil {
		return doc, apperrors.Storage("saving document record", err)
	}

	chunks, _, err := c.processor.BuildChunks(filePath, doc.ID)
	if err != nil {
		return c.fail(ctx, doc, "chunking", err)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}

	if c.titler != nil && len(texts) > 0 {
		doc.Title = c.titler.SuggestTitle(ctx, texts[0])
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return c.fail(ctx, doc, "indexing", err)
	}

	rows := make([]models.VectorRow, len(chunks))
	for i, ch := range chunks {
		rows[i] = models.VectorRow{
			ID:         uuid.NewString(),
			ProjectID:  projectID,
			DocumentID: doc.ID,
			ChunkIndex: ch.ChunkIndex,
			Content:    ch.Content,
			Embedding:  vectors[i],
			Metadata: map[string]string{
				"filename":     doc.Filename,
				"start_offset": strconv.Itoa(ch.StartOffset),
				"end_offset":   strconv.Itoa(ch.EndOffset),
			},
		}
	}
	if err := c.storage.AddDocuments(ctx, rows); err != nil {
		return c.fail(ctx, doc, "indexing", err)
	}

	now := time.Now().UTC()
	doc.ChunkCount = len(chunks)
	doc.ProcessingStatus = models.DocumentIndexed
	doc.ProcessedAt = &now
	if err := c.storage.SaveDocument(ctx, doc); err != nil {
		return doc, apperrors.Storage("saving document record", err)
	}

	if err := c.refreshProjectCount(ctx, projectID); err != nil {
		logger.Warnf("ingestion: refreshing project document count failed: %v", err)
	}

	return doc, nil
}

// Reprocess deletes a document's existing chunks, then re-runs the
// full ingest pipeline against the same file (spec.md §9 Open Question
// a: a retry must first delete existing chunks for that document_id).
func (c *Coordinator) Reprocess(ctx context.Context, projectID, documentID, filePath string) (models.Document, error) {
	if _, err := c.storage.DeleteChunksByDocument(ctx, documentID); err != nil {
		return models.Document{}, apperrors.Storage("deleting existing chunks before reprocess", err)
	}
	if _, err := c.storage.DeleteDocumentByID(ctx, documentID); err != nil {
		return models.Document{}, apperrors.Storage("deleting existing document record before reprocess", err)
	}
	return c.Ingest(ctx, projectID, filePath)
}

func (c *Coordinator) fail(ctx context.Context, doc models.Document, stage string, cause error) (models.Document, error) {
	doc.ProcessingStatus = models.DocumentFailed
	doc.ErrorMessage = cause.Error()
	if err := c.storage.SaveDocument(ctx, doc); err != nil {
		logger.Warnf("ingestion: failed to record failure status for document %s: %v", doc.ID, err)
	}
	return doc, apperrors.Stage(apperrors.KindExtraction, stage, "ingesting document", cause)
}

func (c *Coordinator) refreshProjectCount(ctx context.Context, projectID string) error {
	count, err := c.storage.CountProjectDocuments(ctx, projectID)
	if err != nil {
		return err
	}
	projects, err := c.storage.LoadAllProjects(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		if p.ID != projectID {
			continue
		}
		p.DocumentCount = count
		p.UpdatedAt = time.Now().UTC()
		return c.storage.SaveProject(ctx, p)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func mimeType(path string) string {
	ext := filepath.Ext(path)
	if mt, ok := models.SupportedMimeTypes[ext]; ok {
		return mt
	}
	return "text/plain"
}
