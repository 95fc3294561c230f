// Package model defines the contract between the agent execution loop and a
// language-model backend. A backend receives the conversation plus the tool
// schemas and answers with either tool invocations or final content; the
// loop never sees provider-specific wire formats.
package model

import "context"

// Message is one turn of a conversation in the unified chat shape.
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant turns requesting tools
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool turns answering a call
	Name       string     `json:"name,omitempty"`         // tool name on tool turns
}

// ToolCall is a model request to invoke one tool. IDs are unique within a
// model turn and are the only way outcomes are matched back to requests.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a minimal JSON-Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the normalized backend input assembled by the execution loop.
type Request struct {
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int64            `json:"max_tokens,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the backend's decision for one turn: tool invocations to
// execute, or final content ending the turn.
type Response struct {
	Content      string      `json:"content"`
	ToolCalls    []ToolCall  `json:"tool_calls,omitempty"`
	Refusal      string      `json:"refusal,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Empty reports a response carrying neither content nor tool calls (a
// reasoning-only turn the loop retries).
func (r *Response) Empty() bool {
	return r.Content == "" && len(r.ToolCalls) == 0 && r.Refusal == ""
}

// Info contains metadata about a backend implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Backend is the minimal interface the execution loop requires.
type Backend interface {
	// Complete performs one model turn. Implementations must honour ctx
	// cancellation; transient failures should surface as errors the loop
	// can classify (see KindOf).
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns metadata about the backend implementation.
	Info() Info
}
