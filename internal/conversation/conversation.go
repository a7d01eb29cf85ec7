// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package conversation implements the Conversation service: a
// validating wrapper over the Storage Adapter that owns the
// Conversation mutex named in the concurrency model — the first lock
// in the Conversation -> Document -> Project -> LLM client -> Storage
// Adapter ordering, since a chat turn always starts here.
//
// Grounded on
// original_source/src-tauri/src/services/conversation_service.rs's
// create/list/rename/delete/add_message shape, generalised the same
// way internal/project is: read-through to the Storage Adapter rather
// than keeping an in-process HashMap cache in sync with it.
package conversation

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

const defaultTitle = "New conversation"

type Service struct {
	mu      sync.Mutex
	storage *storage.Adapter
}

func New(storageAdapter *storage.Adapter) *Service {
	return &Service{storage: storageAdapter}
}

func (s *Service) Create(ctx context.Context, projectID, title string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}
	if err := validateTitle(title); err != nil {
		return models.Conversation{}, err
	}

	now := time.Now().UTC()
	c := models.Conversation{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.SaveConversation(ctx, c); err != nil {
		return models.Conversation{}, err
	}
	return c, nil
}

func (s *Service) ListByProject(ctx context.Context, projectID string) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.LoadConversationsByProject(ctx, projectID)
}

func (s *Service) Get(ctx context.Context, id string) (models.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, id)
}

func (s *Service) Rename(ctx context.Context, id, newTitle string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newTitle = strings.TrimSpace(newTitle)
	if err := validateTitle(newTitle); err != nil {
		return models.Conversation{}, err
	}

	c, found, err := s.getLocked(ctx, id)
	if err != nil {
		return models.Conversation{}, err
	}
	if !found {
		return models.Conversation{}, apperrors.NotFound("conversation not found: " + id)
	}
	c.Title = newTitle
	c.UpdatedAt = time.Now().UTC()
	if err := s.storage.SaveConversation(ctx, c); err != nil {
		return models.Conversation{}, err
	}
	return c, nil
}

// Delete removes a conversation and its messages (Conversation
// exclusively owns its Messages, per the containment rule).
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.storage.DeleteMessagesByConversation(ctx, id); err != nil {
		return err
	}
	if _, err := s.storage.DeleteConversationByID(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *Service) Messages(ctx context.Context, id string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.LoadMessagesByConversation(ctx, id)
}

func (s *Service) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.storage.DeleteMessageByID(ctx, messageID); err != nil {
		return err
	}
	return s.refreshMessageCountLocked(ctx, conversationID)
}

func (s *Service) ClearMessages(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.storage.DeleteMessagesByConversation(ctx, id); err != nil {
		return err
	}
	return s.refreshMessageCountLocked(ctx, id)
}

// RefreshMessageCount recomputes message_count, excluding System
// messages per spec.md §9 Open Question (b).
func (s *Service) RefreshMessageCount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshMessageCountLocked(ctx, id)
}

func (s *Service) refreshMessageCountLocked(ctx context.Context, id string) error {
	c, found, err := s.getLocked(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.NotFound("conversation not found: " + id)
	}
	count, err := s.storage.CountNonSystemMessages(ctx, id)
	if err != nil {
		return err
	}
	c.MessageCount = count
	c.UpdatedAt = time.Now().UTC()
	return s.storage.SaveConversation(ctx, c)
}

func (s *Service) getLocked(ctx context.Context, id string) (models.Conversation, bool, error) {
	all, err := s.storage.LoadAllConversations(ctx)
	if err != nil {
		return models.Conversation{}, false, err
	}
	for _, c := range all {
		if c.ID == id {
			return c, true, nil
		}
	}
	return models.Conversation{}, false, nil
}

func validateTitle(title string) error {
	if title == "" {
		return apperrors.Validation("conversation title must not be empty")
	}
	if len(title) > models.MaxConversationTitleLen {
		return apperrors.Validation("conversation title exceeds maximum length")
	}
	return nil
}
