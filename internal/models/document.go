// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package models

import "time"

// DocumentProcessingStatus tracks a Document's ingestion lifecycle.
type DocumentProcessingStatus string

const (
	DocumentUploaded   DocumentProcessingStatus = "Uploaded"
	DocumentProcessing DocumentProcessingStatus = "Processing"
	DocumentIndexed    DocumentProcessingStatus = "Indexed"
	DocumentFailed     DocumentProcessingStatus = "Failed"
)

// MaxFileSize is the ingestion cap, 50 MiB.
const MaxFileSize int64 = 50 * 1024 * 1024

// SupportedMimeTypes is the restricted set a Document's MimeType must fall
// within. Extensions beyond this set (see internal/parser) are
// extracted through the same pipeline but recorded under the closest entry
// here rather than widening this invariant.
var SupportedMimeTypes = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".pdf":      "application/pdf",
	".doc":      "application/msword",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".rtf":      "application/rtf",
}

// Document is a single ingested file belonging to a Project.
type Document struct {
	ID               string                    `json:"id"`
	ProjectID        string                    `json:"project_id"`
	Filename         string                    `json:"filename"`
	Title            string                    `json:"title,omitempty"`
	FilePath         string                    `json:"file_path"`
	FileSize         int64                     `json:"file_size"`
	MimeType         string                    `json:"mime_type"`
	ContentHash      string                    `json:"content_hash"`
	ChunkCount       int                       `json:"chunk_count"`
	ProcessingStatus DocumentProcessingStatus  `json:"processing_status"`
	ErrorMessage     string                    `json:"error_message,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	ProcessedAt      *time.Time                `json:"processed_at,omitempty"`
}

const (
	MinChunkTokens = 10
	MaxChunkTokens = 1000
)

// DocumentChunk is a contiguous substring of a Document's cleaned text.
type DocumentChunk struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	ChunkIndex  int       `json:"chunk_index"`
	Content     string    `json:"content"`
	TokenCount  int       `json:"token_count"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	EmbeddingID string    `json:"embedding_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmbeddingDimension is the fixed vector length produced by the Embedding
// Client and stored in VectorRow.Embedding.
const EmbeddingDimension = 1536

// VectorRow is the persisted, indexed form of a DocumentChunk: the unit the
// Storage Adapter upserts into vector_documents.
type VectorRow struct {
	ID         string            `json:"id"`
	ProjectID  string            `json:"project_id"`
	DocumentID string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Content    string            `json:"content"`
	Embedding  []float32         `json:"embedding"`
	Metadata   map[string]string `json:"metadata"`
}
