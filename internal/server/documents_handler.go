// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"errors"
	"net/http"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/documentsvc"
)

type documentsHandler struct {
	documents *documentsvc.Service
}

type ingestDocumentsRequest struct {
	FilePaths []string `json:"file_paths"`
}

type failedDocument struct {
	FilePath string `json:"file_path"`
	Error    string `json:"error"`
	Stage    string `json:"stage,omitempty"`
}

type ingestDocumentsResponse struct {
	Successful []interface{}    `json:"successful"`
	Failed     []failedDocument `json:"failed"`
}

// ingest handles POST /api/v1/projects/{id}/documents. A batch of
// file_paths is accepted per
// original_source's UploadDocumentsRequest; each path is ingested
// independently so one bad file doesn't block the rest of the batch.
func (h *documentsHandler) ingest(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req ingestDocumentsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.FilePaths) == 0 {
		writeError(w, apperrors.Validation("file_paths must not be empty"))
		return
	}

	resp := ingestDocumentsResponse{
		Successful: make([]interface{}, 0, len(req.FilePaths)),
		Failed:     make([]failedDocument, 0),
	}

	for _, path := range req.FilePaths {
		doc, err := h.documents.Ingest(r.Context(), projectID, path)
		if err != nil {
			stage := ""
			var appErr *apperrors.Error
			if errors.As(err, &appErr) {
				stage = appErr.Stage
			}
			resp.Failed = append(resp.Failed, failedDocument{FilePath: path, Error: err.Error(), Stage: stage})
			continue
		}
		resp.Successful = append(resp.Successful, doc)
	}

	writeJSON(w, http.StatusOK, resp)
}

// list handles GET /api/v1/projects/{id}/documents
func (h *documentsHandler) list(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	docs, err := h.documents.ListByProject(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}
