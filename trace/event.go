// Package trace records a structured, replayable log of agent execution:
// agent start/end, every tool call and result, delegation edges and errors.
// Events belong to a run (one top-level agent invocation, including all of
// its transitive delegates) and export as JSON Lines for external viewers.
package trace

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

// EventType classifies a trace event.
type EventType string

const (
	// EventAgentStart marks the beginning of an agent's run.
	EventAgentStart EventType = "agent_start"
	// EventAgentEnd marks the completion of an agent's run.
	EventAgentEnd EventType = "agent_end"
	// EventAgentDelegate marks an agent handing a task to a delegate.
	EventAgentDelegate EventType = "agent_delegate"
	// EventDelegationEnd marks a delegate returning to its delegator.
	EventDelegationEnd EventType = "delegation_end"
	// EventToolCall marks a tool invocation being issued.
	EventToolCall EventType = "tool_call"
	// EventToolResult marks a tool invocation completing.
	EventToolResult EventType = "tool_result"
	// EventError marks a recorded failure.
	EventError EventType = "error"
)

// Event is a single entry in the execution trace. Field order is the wire
// order of the JSON Lines export and must stay stable across versions.
//
// Timestamps and elapsed times are fractional seconds since the Unix epoch,
// which keeps the export trivially parseable line by line.
type Event struct {
	Timestamp       float64        `json:"timestamp"`
	Type            EventType      `json:"event_type"`
	AgentName       string         `json:"agent_name"`
	RunID           string         `json:"run_id,omitempty"`
	ParentAgent     string         `json:"parent_agent,omitempty"`
	DelegationDepth int            `json:"delegation_depth"`
	ToolName        string         `json:"tool_name,omitempty"`
	ToolCallID      string         `json:"tool_call_id,omitempty"`
	ParallelGroupID string         `json:"parallel_group_id,omitempty"`
	Arguments       map[string]any `json:"arguments,omitempty"`
	Result          string         `json:"result,omitempty"`
	Error           string         `json:"error,omitempty"`
	Elapsed         float64        `json:"elapsed_time,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// NewEvent creates an event of the given type stamped with the current time.
func NewEvent(t EventType, agentName string) Event {
	return Event{Timestamp: nowSeconds(), Type: t, AgentName: agentName}
}

// JSON renders the event as a single JSON line. Arguments or metadata that
// cannot be marshaled are replaced by their string form rather than failing
// the export.
func (e Event) JSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		fallback := e
		fallback.Arguments = map[string]any{"unserializable": fmt.Sprintf("%v", e.Arguments)}
		fallback.Metadata = nil
		b, _ = json.Marshal(fallback)
	}
	return string(b)
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Truncate shortens free-form inputs and results for readability; full
// payloads live in the conversation, not the trace. The cut lands on a rune
// boundary so truncated events stay valid UTF-8 in the export.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Stringify renders an arbitrary tool or agent result for event storage.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}
