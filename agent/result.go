package agent

import (
	"encoding/json"
	"fmt"
)

// Result wraps an agent's final response: the content, execution metadata
// and a success flag. Failures (exhausted retries, iteration cap, refusals)
// are reported here rather than as errors, so callers always get a
// diagnosable result and the metadata "reason"/"error_type" keys explain
// non-success.
type Result struct {
	Content   any            `json:"content"`
	AgentName string         `json:"agent_name"`
	Success   bool           `json:"success"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Text renders the content as a string for display or delegation folding.
func (r *Result) Text() string {
	switch c := r.Content.(type) {
	case string:
		return c
	case nil:
		return ""
	default:
		if b, err := json.MarshalIndent(c, "", "  "); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", c)
	}
}

func failedResult(agentName, content string, metadata map[string]any) *Result {
	return &Result{Content: content, AgentName: agentName, Success: false, Metadata: metadata}
}
