// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package events

import (
	"testing"
	"time"
)

func TestSubscribePublishUnsubscribe(t *testing.T) {
	b := New()
	defer b.Stop()

	id, ch := b.Subscribe()

	b.Publish(ChatStreamToken, map[string]string{"token": "hello"})

	select {
	case ev := <-ch:
		if ev.Kind != ChatStreamToken {
			t.Fatalf("expected kind %q, got %q", ChatStreamToken, ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}

	b.Unsubscribe(id)

	if _, open := <-ch; open {
		t.Fatal("expected channel to be closed after Unsubscribe")
	}
}

func TestPublishFansOutToMultipleListeners(t *testing.T) {
	b := New()
	defer b.Stop()

	_, chA := b.Subscribe()
	_, chB := b.Subscribe()

	b.Publish(ChatStreamEnd, nil)

	for _, ch := range []<-chan Event{chA, chB} {
		select {
		case ev := <-ch:
			if ev.Kind != ChatStreamEnd {
				t.Fatalf("expected kind %q, got %q", ChatStreamEnd, ev.Kind)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for published event")
		}
	}
}

func TestPublishWithNoListenersIsANoop(t *testing.T) {
	b := New()
	defer b.Stop()

	// Must not block or panic with nothing subscribed and no client
	// connected.
	b.Publish(StartupProgress, map[string]string{"step": "bridge-spawn"})
}

func TestUnsubscribeUnknownIDIsANoop(t *testing.T) {
	b := New()
	defer b.Stop()

	b.Unsubscribe("does-not-exist")
}
