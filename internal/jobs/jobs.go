// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package jobs defines the queued job types the Ingestion Coordinator
// runs on the worker pool: ingesting a newly added document and
// reprocessing one that already exists.
//
// Grounded on internal/jobs/recalc_job.go's shape (payload struct,
// NewXJob/EnqueueX/HandleX triplet per job type, logging style), with
// the payload and handler bodies replaced for the document pipeline.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/northbound/kbengine/internal/logger"
	"github.com/northbound/kbengine/internal/queue"
)

const (
	JobTypeIngestDocument    = "ingest_document"
	JobTypeReprocessDocument = "reprocess_document"
)

// IngestDocumentPayload identifies one file to run through the
// ingestion pipeline.
type IngestDocumentPayload struct {
	ProjectID   string    `json:"projectId"`
	FilePath    string    `json:"filePath"`
	RequestedAt time.Time `json:"requestedAt"`
}

// ReprocessDocumentPayload identifies an existing document to delete
// and re-ingest (Open Question a: reprocess deletes the old chunks
// first, then runs the normal ingest pipeline on the same file).
type ReprocessDocumentPayload struct {
	ProjectID   string    `json:"projectId"`
	DocumentID  string    `json:"documentId"`
	FilePath    string    `json:"filePath"`
	RequestedAt time.Time `json:"requestedAt"`
}

// IngestHandler runs an IngestDocumentPayload.
type IngestHandler func(ctx context.Context, payload IngestDocumentPayload) error

// ReprocessHandler runs a ReprocessDocumentPayload.
type ReprocessHandler func(ctx context.Context, payload ReprocessDocumentPayload) error

func NewIngestDocumentJob(payload IngestDocumentPayload) (queue.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return queue.Job{}, err
	}
	return queue.Job{Type: JobTypeIngestDocument, Payload: data, CreatedAt: time.Now()}, nil
}

func NewReprocessDocumentJob(payload ReprocessDocumentPayload) (queue.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return queue.Job{}, err
	}
	return queue.Job{Type: JobTypeReprocessDocument, Payload: data, CreatedAt: time.Now()}, nil
}

func EnqueueIngestDocument(ctx context.Context, q queue.Queue, payload IngestDocumentPayload) error {
	job, err := NewIngestDocumentJob(payload)
	if err != nil {
		return err
	}
	return q.Enqueue(ctx, job)
}

func EnqueueReprocessDocument(ctx context.Context, q queue.Queue, payload ReprocessDocumentPayload) error {
	job, err := NewReprocessDocumentJob(payload)
	if err != nil {
		return err
	}
	return q.Enqueue(ctx, job)
}

// Dispatch routes a dequeued job to the matching handler, logging and
// dropping any job type it doesn't recognise rather than crashing the
// worker.
func Dispatch(ctx context.Context, job queue.Job, onIngest IngestHandler, onReprocess ReprocessHandler) error {
	switch job.Type {
	case JobTypeIngestDocument:
		var payload IngestDocumentPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return err
		}
		return onIngest(ctx, payload)
	case JobTypeReprocessDocument:
		var payload ReprocessDocumentPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return err
		}
		return onReprocess(ctx, payload)
	default:
		logger.Warnf("jobs: dropping job of unknown type %q", job.Type)
		return nil
	}
}
