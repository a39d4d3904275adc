package agent

import (
	"context"
	"errors"
)

// Message role constants for the wire format sent to the LLM, distinct
// from models.ConversationMessage which is the persisted, file-scoped
// transcript record.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in an LLM request, adapted from the teacher's
// llm_client.go ConversationMessage with the Gemini-specific fields
// dropped (tsforge talks to a single Azure-OpenAI-style chat completions
// endpoint, not a multi-backend gRPC bridge).
type Message struct {
	Role        string
	Content     string
	ImageBase64 string // optional vision attachment, PNG
	ToolCalls   []ToolCall
	ToolCallID  string
	ToolName    string
}

// ToolDefinition describes one callable tool surfaced to the LLM.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string // JSON Schema
}

// ToolCall is the LLM's request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// GenerateInput is one LLM turn's request.
type GenerateInput struct {
	Messages  []Message
	Tools     []ToolDefinition
	MaxTokens int
}

// GenerateResult is one LLM turn's reply, collected from the chunk
// stream by the caller (planner.go/identifier.go/validator.go) rather
// than consumed chunk-by-chunk, since the graph nodes need the whole
// message before deciding how to route.
type GenerateResult struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Usage reports one call's token consumption.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// LLMClient is the interface every node calls through, adapted from the
// teacher's agent.LLMClient (channel-based streaming) but transport
// agnostic: llm_http.go is the concrete Azure-OpenAI-style HTTP
// implementation.
type LLMClient interface {
	Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error)
	Close() error
}

// Chunk is one piece of a streamed LLM response.
type Chunk interface {
	chunkType() chunkType
}

type chunkType string

const (
	chunkTypeText     chunkType = "text"
	chunkTypeToolCall chunkType = "tool_call"
	chunkTypeUsage    chunkType = "usage"
	chunkTypeError    chunkType = "error"
)

// TextChunk is a fragment of the assistant's text response.
type TextChunk struct{ Content string }

// ToolCallChunk signals the LLM wants to invoke a tool.
type ToolCallChunk struct{ ID, Name, Arguments string }

// UsageChunk reports token consumption for the just-completed call.
type UsageChunk struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// ErrorChunk signals an error returned by the LLM provider.
type ErrorChunk struct {
	Message          string
	ImageRejected    bool // true when the provider rejected an image attachment
}

func (c *TextChunk) chunkType() chunkType     { return chunkTypeText }
func (c *ToolCallChunk) chunkType() chunkType { return chunkTypeToolCall }
func (c *UsageChunk) chunkType() chunkType    { return chunkTypeUsage }
func (c *ErrorChunk) chunkType() chunkType    { return chunkTypeError }

// Collect drains a Chunk channel into one GenerateResult, the shape
// every graph node consumes. Tool calls are accumulated by ID so a
// provider that streams argument fragments across multiple chunks still
// yields one ToolCall per ID.
func Collect(ch <-chan Chunk) (GenerateResult, error) {
	var (
		result  GenerateResult
		byID    = map[string]*ToolCall{}
		order   []string
		lastErr error
	)

	for c := range ch {
		switch v := c.(type) {
		case *TextChunk:
			result.Content += v.Content
		case *ToolCallChunk:
			tc, ok := byID[v.ID]
			if !ok {
				tc = &ToolCall{ID: v.ID, Name: v.Name}
				byID[v.ID] = tc
				order = append(order, v.ID)
			}
			if v.Name != "" {
				tc.Name = v.Name
			}
			tc.Arguments += v.Arguments
		case *UsageChunk:
			result.Usage = Usage{
				PromptTokens:     v.PromptTokens,
				CompletionTokens: v.CompletionTokens,
				TotalTokens:      v.TotalTokens,
			}
		case *ErrorChunk:
			lastErr = &llmError{msg: v.Message, imageRejected: v.ImageRejected}
		}
	}

	for _, id := range order {
		result.ToolCalls = append(result.ToolCalls, *byID[id])
	}

	if lastErr != nil {
		return result, lastErr
	}
	return result, nil
}

type llmError struct {
	msg           string
	imageRejected bool
}

func (e *llmError) Error() string { return e.msg }

// IsImageRejected reports whether err (as returned by Collect) signals a
// provider rejecting an image attachment, the one case spec.md §4.11/§7
// calls out for a single automatic retry with text-only content.
func IsImageRejected(err error) bool {
	var e *llmError
	return errors.As(err, &e) && e.imageRejected
}
