package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalmesh/fractal/model"
)

func sys() model.Message { return model.Message{Role: "system", Content: "You are helpful."} }

func userMsg(text string) model.Message { return model.Message{Role: "user", Content: text} }

func assistantMsg(text string) model.Message {
	return model.Message{Role: "assistant", Content: text}
}

func toolTurn(id string) []model.Message {
	return []model.Message{
		{Role: "assistant", ToolCalls: []model.ToolCall{{ID: id, Name: "echo", Arguments: `{}`}}},
		{Role: "tool", ToolCallID: id, Name: "echo", Content: "result " + id},
	}
}

// -------------------- Estimation Tests --------------------

func TestEstimateTextTokens_Monotonic(t *testing.T) {
	assert.Equal(t, 1, EstimateTextTokens(""))
	short := EstimateTextTokens("hello")
	long := EstimateTextTokens(strings.Repeat("hello ", 100))
	assert.Greater(t, long, short)
}

func TestEstimateTokens_CountsToolCalls(t *testing.T) {
	plain := []model.Message{assistantMsg("hi")}
	withCalls := []model.Message{{
		Role:      "assistant",
		Content:   "hi",
		ToolCalls: []model.ToolCall{{ID: "c1", Name: "search", Arguments: `{"query":"golang"}`}},
	}}
	assert.Greater(t, EstimateTokens(withCalls), EstimateTokens(plain))
}

// -------------------- Trimming Tests --------------------

func TestTrimConversation_NoOpWithinBudget(t *testing.T) {
	msgs := []model.Message{sys(), userMsg("hi"), assistantMsg("hello")}
	out := TrimConversation(msgs, 1000)
	assert.Equal(t, msgs, out)
}

func TestTrimConversation_DropsOldestFirst(t *testing.T) {
	big := strings.Repeat("x", 400) // ~100 tokens
	msgs := []model.Message{
		sys(),
		userMsg(big),
		assistantMsg(big),
		userMsg("latest question"),
	}

	out := TrimConversation(msgs, EstimateTokens(msgs)-50)

	// System survives, the oldest turn goes first.
	require.NotEmpty(t, out)
	assert.Equal(t, "system", out[0].Role)
	assert.Equal(t, "latest question", out[len(out)-1].Content)
	assert.Less(t, len(out), len(msgs))
	// The oldest non-system turn is the one that went.
	assert.NotEqual(t, msgs[1], out[1])
}

func TestTrimConversation_AtomicToolGroups(t *testing.T) {
	msgs := []model.Message{sys(), userMsg("start")}
	msgs = append(msgs, toolTurn("a")...)
	msgs = append(msgs, toolTurn("b")...)
	msgs = append(msgs, assistantMsg("final"))

	// Trim until something must go; whatever remains must be well-formed.
	out := TrimConversation(msgs, EstimateTokens(msgs)-10)

	seen := map[string]int{} // tool call id -> assistant=1, +tool=2
	for _, m := range out {
		for _, tc := range m.ToolCalls {
			seen[tc.ID] |= 1
		}
		if m.Role == "tool" {
			seen[m.ToolCallID] |= 2
		}
	}
	for id, mask := range seen {
		assert.Equal(t, 3, mask, "tool call %s split from its result", id)
	}
}

func TestTrimConversation_ForceKeepsNewestUserTurn(t *testing.T) {
	big := strings.Repeat("y", 4000)
	msgs := []model.Message{sys(), userMsg(big)}

	// Budget fits the system turn but not the user turn.
	out := TrimConversation(msgs, EstimateTokens(msgs[:1])+20)

	require.Len(t, out, 2)
	assert.Equal(t, "system", out[0].Role)
	assert.Equal(t, "user", out[1].Role)
}

func TestTrimConversation_OversizedSystemTurnStillTrims(t *testing.T) {
	big := strings.Repeat("s", 4000)
	msgs := []model.Message{
		{Role: "system", Content: big},
		userMsg("old question"),
		assistantMsg("old answer"),
		userMsg("current question"),
	}

	// The system turn alone exceeds the budget; the history still reduces
	// to system plus the newest user turn.
	out := TrimConversation(msgs, 10)

	require.Len(t, out, 2)
	assert.Equal(t, "system", out[0].Role)
	assert.Equal(t, "current question", out[1].Content)
}

func TestTrimConversation_DoesNotMutateInput(t *testing.T) {
	big := strings.Repeat("z", 400)
	msgs := []model.Message{sys(), userMsg(big), assistantMsg(big), userMsg("now")}
	before := len(msgs)

	_ = TrimConversation(msgs, 50)

	assert.Len(t, msgs, before)
	assert.Equal(t, "now", msgs[3].Content)
}

func TestTrimConversation_Idempotent(t *testing.T) {
	big := strings.Repeat("w", 400)
	msgs := []model.Message{sys(), userMsg(big), assistantMsg(big), userMsg("current")}

	budget := EstimateTokens(msgs) - 60
	once := TrimConversation(msgs, budget)
	twice := TrimConversation(once, budget)
	assert.Equal(t, once, twice)
}
