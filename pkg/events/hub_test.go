package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversOnlyToMatchingRoom(t *testing.T) {
	h := NewHub()
	_, detect := h.subscribe("file-1", KindAutoDetection)
	_, chat := h.subscribe("file-1", KindChat)
	_, otherFile := h.subscribe("file-2", KindAutoDetection)

	h.Publish("file-1", KindAutoDetection, ServerMessage{Type: "plan_updated"})

	select {
	case msg := <-detect:
		assert.Equal(t, "plan_updated", msg.Type)
	case <-time.After(time.Second):
		t.Fatal("expected message on matching room")
	}

	select {
	case <-chat:
		t.Fatal("chat room should not receive auto-detection messages")
	default:
	}
	select {
	case <-otherFile:
		t.Fatal("file-2's room should not receive file-1's messages")
	default:
	}
}

func TestUnsubscribeClosesChannelAndEmptiesRoom(t *testing.T) {
	h := NewHub()
	id, ch := h.subscribe("file-1", KindChat)

	h.unsubscribe("file-1", KindChat, id)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	h.mu.Lock()
	_, roomExists := h.rooms[roomKey{"file-1", KindChat}]
	h.mu.Unlock()
	assert.False(t, roomExists, "empty room should be removed")
}

func TestPublishToFullBufferDropsRatherThanBlocks(t *testing.T) {
	h := NewHub()
	_, ch := h.subscribe("file-1", KindAutoDetection)

	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish("file-1", KindAutoDetection, ServerMessage{Type: "llm_interaction"})
	}

	require.Len(t, ch, subscriberBuffer)
}
