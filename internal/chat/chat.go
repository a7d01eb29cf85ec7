// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package chat implements the Chat Orchestrator: one turn runs through
// Idle -> Persisting-User -> Retrieving -> Building-Prompt -> Streaming
// -> Persisting-Assistant -> Emitting-End -> Idle, publishing UI events
// as it goes and committing the assistant message only after the
// stream completes.
//
// Grounded on
// original_source/src-tauri/src/commands/chat.rs's send_message: same
// five-step shape (persist user message, retrieve context, run history,
// stream the LLM response, persist assistant message then its sources),
// same event names, same "user message persists even if everything
// after it fails" ordering.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/conversation"
	"github.com/northbound/kbengine/internal/events"
	"github.com/northbound/kbengine/internal/llm"
	"github.com/northbound/kbengine/internal/logger"
	"github.com/northbound/kbengine/internal/models"
	"github.com/northbound/kbengine/internal/retrieval"
	"github.com/northbound/kbengine/internal/storage"
)

const contextChunkCount = 5

// Service runs chat turns against one project's conversations.
//
// mu serialises turns the way the teacher's AppStateWrapper serialises
// access to its conversation/document/llm service guards one at a
// time; a single local UI session never runs two turns concurrently,
// so one mutex stands in for the full Conversation -> Document ->
// Project -> LLM client -> Storage Adapter lock chain.
type Service struct {
	mu sync.Mutex

	storage       *storage.Adapter
	retriever     *retrieval.Service
	llmClient     *llm.Client
	publisher     *events.Broadcaster
	conversations *conversation.Service
}

func New(storageAdapter *storage.Adapter, retriever *retrieval.Service, llmClient *llm.Client, publisher *events.Broadcaster, conversations *conversation.Service) *Service {
	return &Service{
		storage:       storageAdapter,
		retriever:     retriever,
		llmClient:     llmClient,
		publisher:     publisher,
		conversations: conversations,
	}
}

// SendMessage runs one full turn and returns the persisted assistant
// message. Cancelling ctx aborts the stream; the user message already
// committed stays committed, and no assistant message is recorded.
func (s *Service) SendMessage(ctx context.Context, conversationID, projectID, content string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Persisting-User: commit before retrieval so the turn is visible
	// in history even if everything downstream fails.
	userMsg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        content,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.storage.SaveMessage(ctx, userMsg); err != nil {
		return models.Message{}, apperrors.Storage("persisting user message", err)
	}

	// Retrieving
	chunks := s.retriever.Retrieve(ctx, projectID, content, contextChunkCount)

	// Building-Prompt
	history, err := s.storage.LoadMessagesByConversation(ctx, conversationID)
	if err != nil {
		logger.Warnf("chat: loading conversation history failed, proceeding with just the new message: %v", err)
		history = []models.Message{userMsg}
	}
	systemMessage := buildSystemMessage(chunks)
	llmMessages := make([]llm.Message, 0, len(history)+1)
	llmMessages = append(llmMessages, llm.Message{Role: "system", Content: systemMessage})
	for _, m := range history {
		llmMessages = append(llmMessages, llm.Message{Role: string(m.Role), Content: m.Content})
	}

	s.publisher.Publish(events.ChatStreamStart, map[string]string{"conversation_id": conversationID})
	if len(chunks) > 0 {
		s.publisher.Publish(events.ChatStreamContext, map[string]interface{}{
			"conversation_id": conversationID,
			"sources":         toSourcePayload(chunks),
		})
	}

	// Streaming
	streamEvents, err := s.llmClient.Stream(ctx, llmMessages)
	if err != nil {
		s.publisher.Publish(events.ChatStreamError, map[string]string{"conversation_id": conversationID, "error": err.Error()})
		return models.Message{}, apperrors.LLM("starting stream", err)
	}

	var response string
	for ev := range streamEvents {
		switch ev.Kind {
		case llm.EventToken:
			response += ev.Token
			s.publisher.Publish(events.ChatStreamToken, map[string]string{"conversation_id": conversationID, "token": ev.Token})
		case llm.EventError:
			s.publisher.Publish(events.ChatStreamError, map[string]string{"conversation_id": conversationID, "error": ev.Err.Error()})
			return models.Message{}, apperrors.LLM("streaming response", ev.Err)
		case llm.EventComplete:
			// handled by channel close below
		}
	}

	if err := ctx.Err(); err != nil {
		s.publisher.Publish(events.ChatStreamError, map[string]string{"conversation_id": conversationID, "error": err.Error()})
		return models.Message{}, apperrors.LLM("stream cancelled", err)
	}

	if response == "" {
		err := fmt.Errorf("llm returned no content")
		s.publisher.Publish(events.ChatStreamError, map[string]string{"conversation_id": conversationID, "error": err.Error()})
		return models.Message{}, apperrors.LLM("empty stream response", err)
	}

	// Persisting-Assistant: message first, then sources as a second
	// write, both must succeed before the end event is emitted.
	assistantMsg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        response,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.storage.SaveMessage(ctx, assistantMsg); err != nil {
		return models.Message{}, apperrors.Storage("persisting assistant message", err)
	}

	if len(chunks) > 0 {
		assistantMsg.Sources = toSources(chunks)
		if err := s.storage.SaveMessage(ctx, assistantMsg); err != nil {
			return models.Message{}, apperrors.Storage("persisting assistant message sources", err)
		}
	}

	// message_count must reflect both halves of the turn (spec.md §8
	// invariant 1); a failure here is logged, not fatal, the same way a
	// history-load failure upstream degrades rather than aborts the turn.
	if err := s.conversations.RefreshMessageCount(ctx, conversationID); err != nil {
		logger.Warnf("chat: refreshing message count for %s failed: %v", conversationID, err)
	}

	// Emitting-End
	s.publisher.Publish(events.ChatStreamEnd, map[string]string{"conversation_id": conversationID, "content": response})

	return assistantMsg, nil
}

func toSources(chunks []retrieval.RetrievedChunk) []models.Source {
	out := make([]models.Source, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, models.Source{
			DocumentID:     c.DocumentID,
			Filename:       c.Filename,
			Content:        c.Content,
			RelevanceScore: c.RelevanceScore,
		})
	}
	return out
}

func toSourcePayload(chunks []retrieval.RetrievedChunk) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, map[string]interface{}{
			"filename":        c.Filename,
			"relevance_score": c.RelevanceScore,
		})
	}
	return out
}
