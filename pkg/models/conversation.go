package models

import "time"

// ConversationKind distinguishes the auto-detection run transcript from
// any other per-file conversation the API exposes over the same
// WebSocket connection manager.
type ConversationKind string

const (
	ConversationAutoDetect ConversationKind = "auto_detection"
	ConversationChat       ConversationKind = "chat"
)

// ConversationStatus is the lifecycle of one detection run.
type ConversationStatus string

const (
	ConversationRunning   ConversationStatus = "running"
	ConversationCompleted ConversationStatus = "completed"
	ConversationFailed    ConversationStatus = "failed"
	ConversationCancelled ConversationStatus = "cancelled"
)

// MessageRole mirrors the teacher's message role constants
// (pkg/models/message.go) — "system", "user", "assistant" — extended
// with "tool" for Plot-Tool Harness call/response pairs.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ConversationMessage is one entry in a conversation's append-only log.
// SequenceNumber is assigned by the ConversationService on append and is
// the catch-up cursor WebSocket clients resume from.
type ConversationMessage struct {
	ID             string
	ConversationID string
	SequenceNumber int
	Role           MessageRole
	Agent          AgentRole
	Content        string
	// ImageBase64 carries a plot snapshot attached to a tool response,
	// mirroring original_source's process_tool_message inline-image
	// attachment.
	ImageBase64 string
	CreatedAt   time.Time
}

// Conversation is the persisted record of one auto-detection run against
// a file: its lifecycle status and the append-only message log that
// WebSocket subscribers replay on reconnect.
type Conversation struct {
	ID        string
	FileID    string
	Kind      ConversationKind
	Status    ConversationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateConversationRequest starts a new auto-detection conversation for a file.
type CreateConversationRequest struct {
	FileID string `json:"file_id"`
}

// AppendMessageRequest appends one message to an existing conversation.
type AppendMessageRequest struct {
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Agent          AgentRole   `json:"agent"`
	Content        string      `json:"content"`
	ImageBase64    string      `json:"image_base64,omitempty"`
}
