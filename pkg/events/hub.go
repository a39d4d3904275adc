package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// writeTimeout bounds a single WebSocket send so one slow client can't
// stall delivery to the rest of its room.
const writeTimeout = 5 * time.Second

// subscriberBuffer caps how far a client may lag before messages are
// dropped for it; a client that falls behind must reconnect and rely on
// REST/conversation-log catch-up rather than stall the publisher.
const subscriberBuffer = 64

type roomKey struct {
	fileID string
	kind   Kind
}

// Hub fans server-pushed messages out to every WebSocket connected to a
// given file's auto-detection or chat room.
type Hub struct {
	mu    sync.Mutex
	rooms map[roomKey]map[string]chan ServerMessage
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[roomKey]map[string]chan ServerMessage)}
}

func (h *Hub) subscribe(fileID string, kind Kind) (string, chan ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := roomKey{fileID, kind}
	if h.rooms[key] == nil {
		h.rooms[key] = make(map[string]chan ServerMessage)
	}
	id := uuid.NewString()
	ch := make(chan ServerMessage, subscriberBuffer)
	h.rooms[key][id] = ch
	return id, ch
}

func (h *Hub) unsubscribe(fileID string, kind Kind, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := roomKey{fileID, kind}
	subs, ok := h.rooms[key]
	if !ok {
		return
	}
	if ch, ok := subs[id]; ok {
		close(ch)
		delete(subs, id)
	}
	if len(subs) == 0 {
		delete(h.rooms, key)
	}
}

// Publish delivers msg to every connection currently subscribed to
// fileID's kind room. Drops the message for any subscriber whose buffer
// is full instead of blocking.
func (h *Hub) Publish(fileID string, kind Kind, msg ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.rooms[roomKey{fileID, kind}] {
		select {
		case ch <- msg:
		default:
			slog.Warn("events: dropping message to slow subscriber", "file_id", fileID, "kind", kind, "type", msg.Type)
		}
	}
}

// Serve registers conn in fileID's kind room, replays history, then
// pumps both directions until the connection closes or ctx is done:
// inbound frames go to onMessage, Publish()'d messages go to conn.
// Blocks until the connection ends.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, fileID string, kind Kind, replay []ServerMessage, onMessage func(raw []byte) error) {
	id, ch := h.subscribe(fileID, kind)
	defer h.unsubscribe(fileID, kind, id)

	for _, m := range replay {
		h.write(ctx, conn, m)
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if onMessage == nil {
				continue
			}
			if err := onMessage(data); err != nil {
				slog.Warn("events: client message rejected", "file_id", fileID, "kind", kind, "error", err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.write(ctx, conn, msg)
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("events: marshal server message", "error", err)
		return
	}
	if err := conn.Write(wctx, websocket.MessageText, b); err != nil {
		slog.Debug("events: write failed, connection likely closed", "error", err)
	}
}
