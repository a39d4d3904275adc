// Package events fans out server-pushed WebSocket messages for the two
// per-file surfaces spec.md §6 defines: an auto-detection run and a chat
// conversation. Grounded on the teacher's pkg/events/manager.go for the
// connection/room shape, adapted from Postgres LISTEN/NOTIFY catch-up to
// an in-process hub with replay sourced from services.ConversationService
// — tsforge has no separate event bus between the agent runner and the
// API process, so both live in the same binary.
package events

// Kind distinguishes the two WebSocket surfaces a file can have open.
// Only one of each is ever live per file (spec.md §5).
type Kind string

const (
	KindAutoDetection Kind = "auto_detection"
	KindChat          Kind = "chat"
)

// Auto-detection client commands (spec.md §6).
const (
	CommandStartAutoDetection  = "start_auto_detection"
	CommandCancelAutoDetection = "cancel_auto_detection"
)

// ClientCommand is the message shape clients send on
// /ws/auto-detection/{file_id}.
type ClientCommand struct {
	Command string `json:"command"`
}

// ChatContext carries the one-time context a chat client sets before its
// first message (spec.md §6's "set-context" action).
type ChatContext struct {
	UserName string `json:"userName"`
}

// ChatClientMessage is the message shape clients send on
// /ws/chat/{file_id}: either a context-setting action or a chat turn.
type ChatClientMessage struct {
	Action  string       `json:"action,omitempty"`
	Context *ChatContext `json:"context,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Chat server message types (spec.md §6).
const (
	ChatTypeUserMessageReceived = "user_message_received"
	ChatTypeAIResponse          = "ai_response"
	ChatTypeError               = "error"
	ChatTypeEventAdded          = "event_added"
	ChatTypeGuidelineAdded      = "guideline_added"
)

// ServerMessage is the envelope every server push uses on both WebSocket
// surfaces: {type, data} for auto-detection, {type, message|data} for
// chat (spec.md §6).
type ServerMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}
