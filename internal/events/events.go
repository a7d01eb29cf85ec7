// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package events implements UI event broadcasting: a single local
// operator UI connects over a WebSocket and receives chat-stream-*
// events and startup-progress notifications as they occur.
//
// Grounded on internal/server/websocket_handler.go's WebSocketManager,
// stripped to its direct-push half. The teacher's Redis mailbox
// fallback existed to let an offline client pick up a notification on
// reconnect across multiple browser sessions; that need does not apply
// here (Non-goals excludes multi-user operation), so a turn with no
// connected client simply has its events dropped rather than queued.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/northbound/kbengine/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Kind is the UI event taxonomy.
type Kind string

const (
	ChatStreamStart   Kind = "chat-stream-start"
	ChatStreamContext Kind = "chat-stream-context"
	ChatStreamToken   Kind = "chat-stream-token"
	ChatStreamError   Kind = "chat-stream-error"
	ChatStreamEnd     Kind = "chat-stream-end"
	StartupProgress   Kind = "startup-progress"
)

// Event is one message pushed to the UI over the events websocket.
type Event struct {
	Kind    Kind        `json:"kind"`
	Payload interface{} `json:"payload,omitempty"`
}

// Broadcaster holds the (at most one, in practice) connected UI client
// and pushes events to it directly.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[string]*websocket.Conn

	listenMu  sync.RWMutex
	listeners map[string]chan Event

	pingTicker *time.Ticker
	stopOnce   sync.Once
	stopCh     chan struct{}
}

func New() *Broadcaster {
	b := &Broadcaster{
		clients:    make(map[string]*websocket.Conn),
		listeners:  make(map[string]chan Event),
		pingTicker: time.NewTicker(30 * time.Second),
		stopCh:     make(chan struct{}),
	}
	go b.pingLoop()
	return b
}

// Subscribe registers an in-process listener (used by the SSE chat
// endpoint to tee one turn's events onto its own response, alongside
// whatever is also connected over the events websocket) and returns its
// id and receive channel. The caller must call Unsubscribe when done,
// mirroring internal/logger's Subscribe/Unsubscribe pair.
func (b *Broadcaster) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, 16)

	b.listenMu.Lock()
	b.listeners[id] = ch
	b.listenMu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id string) {
	b.listenMu.Lock()
	ch, ok := b.listeners[id]
	if ok {
		delete(b.listeners, id)
	}
	b.listenMu.Unlock()
	if ok {
		close(ch)
	}
}

func (b *Broadcaster) pingLoop() {
	for {
		select {
		case <-b.stopCh:
			return
		case <-b.pingTicker.C:
			b.pingAll()
		}
	}
}

func (b *Broadcaster) pingAll() {
	b.mu.RLock()
	clients := make(map[string]*websocket.Conn, len(b.clients))
	for id, conn := range b.clients {
		clients[id] = conn
	}
	b.mu.RUnlock()

	for id, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
			logger.Warnf("events: client %s failed to ping, dropping: %v", id, err)
			b.remove(id)
			conn.Close()
			continue
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}

// HandleWebSocket upgrades the request and registers the connection
// under client_id until it disconnects.
func (b *Broadcaster) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = "default"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("events: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	b.mu.Lock()
	b.clients[clientID] = conn
	b.mu.Unlock()
	defer b.remove(clientID)

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warnf("events: client %s read error: %v", clientID, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}

func (b *Broadcaster) remove(clientID string) {
	b.mu.Lock()
	delete(b.clients, clientID)
	b.mu.Unlock()
}

// Publish pushes an event to every connected websocket client and every
// in-process listener. A turn with no connected client is a no-op:
// there is no offline mailbox here.
func (b *Broadcaster) Publish(kind Kind, payload interface{}) {
	ev := Event{Kind: kind, Payload: payload}
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Warnf("events: failed to encode %s event: %v", kind, err)
		return
	}

	b.mu.RLock()
	clients := make(map[string]*websocket.Conn, len(b.clients))
	for id, conn := range b.clients {
		clients[id] = conn
	}
	b.mu.RUnlock()

	for id, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Warnf("events: failed to push %s to %s: %v", kind, id, err)
			b.remove(id)
			conn.Close()
		}
	}

	b.listenMu.RLock()
	defer b.listenMu.RUnlock()
	for _, ch := range b.listeners {
		select {
		case ch <- ev:
		default:
			logger.Warnf("events: listener channel full, dropping %s event", kind)
		}
	}
}

// Stop tears down the ping loop and closes all connections.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.pingTicker.Stop()

	b.mu.Lock()
	for id, conn := range b.clients {
		conn.Close()
		delete(b.clients, id)
	}
	b.mu.Unlock()
}
