// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package project implements the Project service: a validating
// wrapper over the Storage Adapter that owns the Project mutex named
// in the concurrency model, so callers never touch storage.Adapter's
// project methods directly.
//
// Grounded on
// original_source/src-tauri/src/services/project_service.rs: the
// create/update/delete/list shape and validation-before-persist order,
// generalised from an in-memory HashMap cache to always reading
// through to the Storage Adapter (the Go rewrite has no in-process
// cache to keep in sync).
package project

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/models"
	"github.com/northbound/kbengine/internal/storage"
)

type Service struct {
	mu       sync.Mutex
	storage  *storage.Adapter
	onCreate func(models.Project)
}

func New(storageAdapter *storage.Adapter) *Service {
	return &Service{storage: storageAdapter}
}

// WithOnCreate registers a callback run after a project is persisted,
// outside the service's lock. It lets the process wire up per-project
// infrastructure — an ingestion filesystem watch, say — without this
// package needing to know what that infrastructure is.
func (s *Service) WithOnCreate(fn func(models.Project)) *Service {
	s.onCreate = fn
	return s
}

func (s *Service) Create(ctx context.Context, name, description string) (models.Project, error) {
	s.mu.Lock()

	if err := validateName(name); err != nil {
		s.mu.Unlock()
		return models.Project{}, err
	}
	if err := validateDescription(description); err != nil {
		s.mu.Unlock()
		return models.Project{}, err
	}

	now := time.Now().UTC()
	p := models.Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: description,
		Status:      models.ProjectCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.storage.SaveProject(ctx, p)
	s.mu.Unlock()
	if err != nil {
		return models.Project{}, err
	}

	if s.onCreate != nil {
		s.onCreate(p)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Project, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.storage.LoadAllProjects(ctx)
	if err != nil {
		return models.Project{}, false, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, true, nil
		}
	}
	return models.Project{}, false, nil
}

func (s *Service) List(ctx context.Context) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.LoadAllProjects(ctx)
}

func (s *Service) Update(ctx context.Context, id string, name, description *string) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, found, err := s.getLocked(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if !found {
		return models.Project{}, apperrors.NotFound("project not found: " + id)
	}

	if name != nil {
		if err := validateName(*name); err != nil {
			return models.Project{}, err
		}
		p.Name = strings.TrimSpace(*name)
	}
	if description != nil {
		if err := validateDescription(*description); err != nil {
			return models.Project{}, err
		}
		p.Description = *description
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.storage.SaveProject(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// Delete removes a project and, per the containment rule, everything
// it owns: its chunks (conversations and messages cascade at the
// bridge schema level via ON DELETE CASCADE).
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.storage.DeleteChunksByProject(ctx, id); err != nil {
		return err
	}
	if _, err := s.storage.DeleteProjectByID(ctx, id); err != nil {
		return err
	}
	return nil
}

// RefreshDocumentCount recomputes the denormalised document_count from
// the chunk store and persists it.
func (s *Service) RefreshDocumentCount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, found, err := s.getLocked(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.NotFound("project not found: " + id)
	}
	count, err := s.storage.CountProjectDocuments(ctx, id)
	if err != nil {
		return err
	}
	p.DocumentCount = count
	p.UpdatedAt = time.Now().UTC()
	return s.storage.SaveProject(ctx, p)
}

func (s *Service) getLocked(ctx context.Context, id string) (models.Project, bool, error) {
	projects, err := s.storage.LoadAllProjects(ctx)
	if err != nil {
		return models.Project{}, false, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, true, nil
		}
	}
	return models.Project{}, false, nil
}

func validateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return apperrors.Validation("project name must not be empty")
	}
	if len(trimmed) > models.MaxProjectNameLen {
		return apperrors.Validation("project name exceeds maximum length")
	}
	return nil
}

func validateDescription(desc string) error {
	if len(desc) > models.MaxProjectDescLen {
		return apperrors.Validation("project description exceeds maximum length")
	}
	return nil
}
