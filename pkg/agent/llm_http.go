package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// AzureChatClient implements LLMClient against an Azure-OpenAI-style
// chat completions endpoint, replacing the teacher's llm_grpc.go bridge
// to a separate Python LLM service — tsforge talks to the LLM directly
// over HTTP, so there is no companion process to bridge to.
//
// Grounded on llm_grpc.go's shape (one Generate call per turn, a
// goroutine streaming Chunks onto a channel) with the transport swapped
// for Server-Sent-Events parsing of an OpenAI-compatible stream, the
// de facto standard the rest of the Go ecosystem follows for this API.
type AzureChatClient struct {
	endpoint   string
	apiKey     string
	apiVersion string
	deployment string
	httpClient *http.Client
}

// NewAzureChatClient builds a client bound to one deployment.
func NewAzureChatClient(endpoint, apiKey, apiVersion, deployment string) *AzureChatClient {
	return &AzureChatClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		apiVersion: apiVersion,
		deployment: deployment,
		httpClient: &http.Client{Timeout: 0}, // streaming: no fixed deadline, ctx governs cancellation
	}
}

func (c *AzureChatClient) Close() error { return nil }

type wireMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type chatRequest struct {
	Messages  []wireMessage `json:"messages"`
	Tools     []wireTool    `json:"tools,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream"`
}

type streamDelta struct {
	Choices []struct {
		Delta struct {
			Content   string         `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// Generate posts a chat completion request with stream=true and returns
// a channel of Chunks, closed when the stream ends.
func (c *AzureChatClient) Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error) {
	req := chatRequest{MaxTokens: input.MaxTokens, Stream: true}
	for _, m := range input.Messages {
		req.Messages = append(req.Messages, toWireMessage(m))
	}
	for _, t := range input.Tools {
		wt := wireTool{Type: "function"}
		wt.Function.Name = t.Name
		wt.Function.Description = t.Description
		wt.Function.Parameters = json.RawMessage(t.ParametersSchema)
		req.Tools = append(req.Tools, wt)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("agent: marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", c.endpoint, c.deployment, c.apiVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agent: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("agent: llm request: %w", err)
	}

	out := make(chan Chunk, 16)
	go c.streamResponse(resp, out)
	return out, nil
}

func (c *AzureChatClient) streamResponse(resp *http.Response, out chan<- Chunk) {
	defer close(out)
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, rejected := classifyStatus(resp)
		out <- &ErrorChunk{Message: msg, ImageRejected: rejected}
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			return
		}

		var delta streamDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			continue // skip malformed keep-alive/comment lines
		}
		if delta.Usage != nil {
			out <- &UsageChunk{
				PromptTokens:     delta.Usage.PromptTokens,
				CompletionTokens: delta.Usage.CompletionTokens,
				TotalTokens:      delta.Usage.TotalTokens,
			}
		}
		for _, choice := range delta.Choices {
			if choice.Delta.Content != "" {
				out <- &TextChunk{Content: choice.Delta.Content}
			}
			for _, tc := range choice.Delta.ToolCalls {
				out <- &ToolCallChunk{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		out <- &ErrorChunk{Message: err.Error()}
	}
}

func classifyStatus(resp *http.Response) (msg string, imageRejected bool) {
	buf := make([]byte, 2048)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])
	if resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(body), "image") {
		return body, true
	}
	return fmt.Sprintf("llm request failed: status %d: %s", resp.StatusCode, body), false
}

func toWireMessage(m Message) wireMessage {
	wm := wireMessage{Role: m.Role, ToolCallID: m.ToolCallID, Name: m.ToolName}
	if m.ImageBase64 == "" {
		wm.Content = m.Content
	} else {
		wm.Content = []map[string]any{
			{"type": "text", "text": m.Content},
			{"type": "image_url", "image_url": map[string]string{"url": "data:image/png;base64," + m.ImageBase64}},
		}
	}
	for _, tc := range m.ToolCalls {
		wtc := wireToolCall{ID: tc.ID, Type: "function"}
		wtc.Function.Name = tc.Name
		wtc.Function.Arguments = tc.Arguments
		wm.ToolCalls = append(wm.ToolCalls, wtc)
	}
	return wm
}

// retryTextOnly strips any image attachment, used by callLLM to
// retry a turn once after an ImageRejected error (spec.md §4.11 point 2).
func retryTextOnly(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	for i := range out {
		out[i].ImageBase64 = ""
	}
	return out
}
