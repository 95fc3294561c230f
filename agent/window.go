package agent

import (
	"encoding/json"

	"github.com/fractalmesh/fractal/model"
)

// Context window trimming. Estimation is a best-effort approximation
// (len/4 + 1 per string) that is monotonic in text length, so repeated
// trimming converges. Messages are removed in atomic groups only: an
// assistant turn with tool calls and all tool results answering it are kept
// or dropped together, because a dangling tool result with no matching
// request would be rejected by the backend.

// EstimateTextTokens approximates the token count of a string.
func EstimateTextTokens(s string) int {
	return len(s)/4 + 1
}

// EstimateTokens approximates the token count of a message sequence, with a
// small per-message and per-field overhead plus reply priming.
func EstimateTokens(msgs []model.Message) int {
	total := 0
	for _, m := range msgs {
		total += 4 // per-message overhead
		total += EstimateTextTokens(m.Content) + 1
		if len(m.ToolCalls) > 0 {
			if b, err := json.Marshal(m.ToolCalls); err == nil {
				total += EstimateTextTokens(string(b)) + 1
			}
		}
		if m.ToolCallID != "" {
			total += EstimateTextTokens(m.ToolCallID) + 1
		}
		if m.Name != "" {
			total += EstimateTextTokens(m.Name) + 1
		}
	}
	return total + 2 // reply priming
}

// groupMessages splits a conversation (system turn excluded) into atomic
// units: a standalone user or assistant turn, or an assistant turn with tool
// calls plus all subsequent tool turns.
func groupMessages(msgs []model.Message) [][]model.Message {
	var groups [][]model.Message
	i := 0
	for i < len(msgs) {
		m := msgs[i]
		if m.Role == "assistant" && len(m.ToolCalls) > 0 {
			group := []model.Message{m}
			j := i + 1
			for j < len(msgs) && msgs[j].Role == "tool" {
				group = append(group, msgs[j])
				j++
			}
			groups = append(groups, group)
			i = j
		} else {
			groups = append(groups, []model.Message{m})
			i++
		}
	}
	return groups
}

// TrimConversation returns a view of the conversation fitting within the
// token budget. The first message must be the system turn; it is always
// retained. Groups are kept newest-first; when nothing fits, the newest
// group containing the most recent user turn is force-kept so the backend
// always sees the current request. The input slice is never mutated.
func TrimConversation(msgs []model.Message, budget int) []model.Message {
	if len(msgs) == 0 || EstimateTokens(msgs) <= budget {
		return msgs
	}

	system := msgs[:1]
	// available may go non-positive when the system turn alone blows the
	// budget; the force-keep below still applies then.
	available := budget - EstimateTokens(system)
	groups := groupMessages(msgs[1:])

	var kept [][]model.Message
	keptTokens := 0
	for i := len(groups) - 1; i >= 0; i-- {
		groupTokens := EstimateTokens(groups[i])
		if keptTokens+groupTokens > available {
			break
		}
		kept = append([][]model.Message{groups[i]}, kept...)
		keptTokens += groupTokens
	}

	if len(kept) == 0 {
		// Nothing fits; retain the newest group holding the latest user turn.
		for i := len(groups) - 1; i >= 0; i-- {
			if containsUser(groups[i]) {
				kept = append(kept, groups[i])
				break
			}
		}
	}

	out := make([]model.Message, 0, len(msgs))
	out = append(out, system...)
	for _, group := range kept {
		out = append(out, group...)
	}
	return out
}

func containsUser(group []model.Message) bool {
	for _, m := range group {
		if m.Role == "user" {
			return true
		}
	}
	return false
}
