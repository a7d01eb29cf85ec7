// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/northbound/kbengine/internal/events"
	"github.com/northbound/kbengine/internal/models"
)

func TestBelongsToConversation(t *testing.T) {
	tests := []struct {
		name string
		ev   events.Event
		id   string
		want bool
	}{
		{"string map matching id", events.Event{Payload: map[string]string{"conversation_id": "c1"}}, "c1", true},
		{"string map other id", events.Event{Payload: map[string]string{"conversation_id": "c2"}}, "c1", false},
		{"string map no id key", events.Event{Payload: map[string]string{"step": "x"}}, "c1", true},
		{"interface map matching id", events.Event{Payload: map[string]interface{}{"conversation_id": "c1"}}, "c1", true},
		{"interface map other id", events.Event{Payload: map[string]interface{}{"conversation_id": "c2"}}, "c1", false},
		{"nil payload", events.Event{Payload: nil}, "c1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := belongsToConversation(tt.ev, tt.id); got != tt.want {
				t.Errorf("belongsToConversation() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeChatService struct {
	msg models.Message
	err error
}

func (f *fakeChatService) SendMessage(ctx context.Context, conversationID, projectID, content string) (models.Message, error) {
	return f.msg, f.err
}

func TestChatHandlerSendStreamsMatchingEvents(t *testing.T) {
	broadcaster := events.New()
	defer broadcaster.Stop()

	h := &chatHandler{chat: &fakeChatService{msg: models.Message{ID: "m1"}}, broadcaster: broadcaster}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/conv-1/messages", strings.NewReader(`{"project_id":"p1","content":"hello"}`))
	req.SetPathValue("id", "conv-1")
	rec := httptest.NewRecorder()

	go func() {
		time.Sleep(20 * time.Millisecond)
		broadcaster.Publish(events.ChatStreamToken, map[string]string{"conversation_id": "conv-1", "token": "hi"})
		time.Sleep(10 * time.Millisecond)
		broadcaster.Publish(events.ChatStreamEnd, map[string]string{"conversation_id": "conv-1"})
	}()

	done := make(chan struct{})
	go func() {
		h.send(rec, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send handler did not return after chat-stream-end")
	}

	body := rec.Body.String()
	scanner := bufio.NewScanner(strings.NewReader(body))
	var frames int
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			frames++
		}
	}
	if frames != 2 {
		t.Fatalf("expected 2 SSE frames, got %d in body: %q", frames, body)
	}
	if !strings.Contains(body, `"chat-stream-token"`) || !strings.Contains(body, `"chat-stream-end"`) {
		t.Fatalf("expected both token and end events in body, got %q", body)
	}
}

func TestChatHandlerSendRejectsEmptyContent(t *testing.T) {
	broadcaster := events.New()
	defer broadcaster.Stop()

	h := &chatHandler{chat: &fakeChatService{}, broadcaster: broadcaster}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/conv-1/messages", strings.NewReader(`{"project_id":"p1","content":""}`))
	req.SetPathValue("id", "conv-1")
	rec := httptest.NewRecorder()

	h.send(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}
