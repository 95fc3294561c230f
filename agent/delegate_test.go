package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalmesh/fractal/model"
	"github.com/fractalmesh/fractal/schema"
	"github.com/fractalmesh/fractal/trace"
)

func mustDelegate(t *testing.T, delegator, delegate *Agent) {
	t.Helper()
	_, err := delegator.RegisterDelegate(delegate)
	require.NoError(t, err)
}

func delegateStep(toolName, query string) model.MockStep {
	return model.MockStep{ToolCalls: []model.ToolCall{
		{ID: "c_" + toolName, Name: toolName, Arguments: `{"query":"` + query + `"}`},
	}}
}

// -------------------- Registration Tests --------------------

func TestRegisterDelegate_DefaultToolSchema(t *testing.T) {
	coordinator := New("Coordinator", model.NewMockBackend())
	researcher := New("Researcher", model.NewMockBackend())

	mustDelegate(t, coordinator, researcher)

	reg, ok := coordinator.Registry().Get("delegate_to_researcher")
	require.True(t, ok)
	assert.Contains(t, reg.Schema.Description, "Researcher")
	assert.Contains(t, reg.Schema.Description, "subordinate agent")
	assert.Equal(t, []string{"query"}, reg.Schema.Required())
}

func TestRegisterDelegate_CustomNameAndParams(t *testing.T) {
	coordinator := New("Coordinator", model.NewMockBackend())
	writer := New("Writer", model.NewMockBackend())

	optional := false
	_, err := coordinator.RegisterDelegate(writer, func(o *DelegateOptions) {
		o.ToolName = "draft_report"
		o.Description = "Hand off a drafting task"
		o.Params = []DelegateParam{
			{Name: "topic", Type: schema.TypeString, Description: "What to write about"},
			{Name: "tone", Description: "Writing tone", Required: &optional},
		}
	})
	require.NoError(t, err)

	reg, ok := coordinator.Registry().Get("draft_report")
	require.True(t, ok)
	assert.Equal(t, "Hand off a drafting task", reg.Schema.Description)
	assert.Equal(t, []string{"topic"}, reg.Schema.Required())

	// Untyped params default to string.
	p, ok := reg.Schema.Parameter("tone")
	require.True(t, ok)
	assert.Equal(t, schema.TypeString, p.Type)
}

func TestRegisterDelegate_SelfRejected(t *testing.T) {
	a := New("Loner", model.NewMockBackend())
	_, err := a.RegisterDelegate(a)
	assert.Error(t, err)
	_, err = a.RegisterDelegate(nil)
	assert.Error(t, err)
}

// -------------------- Execution Tests --------------------

func TestDelegation_ResultFoldsBack(t *testing.T) {
	researchBackend := model.NewMockBackend(
		model.MockStep{Content: "Go was released in 2009."},
	)
	researcher := New("Researcher", researchBackend)

	coordBackend := model.NewMockBackend(
		delegateStep("delegate_to_researcher", "When was Go released?"),
		model.MockStep{Content: "According to research: 2009."},
	)
	coordinator := New("Coordinator", coordBackend)
	mustDelegate(t, coordinator, researcher)

	res, err := coordinator.Run(context.Background(), "When was Go released?")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "According to research: 2009.", res.Content)

	// The delegate saw the query as its user input.
	rReqs := researchBackend.Requests()
	require.Len(t, rReqs, 1)
	assert.Equal(t, "When was Go released?", rReqs[0].Messages[1].Content)

	// Its answer folded back as the delegation tool's result.
	msgs := coordBackend.Requests()[1].Messages
	var toolMsg *model.Message
	for i := range msgs {
		if msgs[i].Role == "tool" {
			toolMsg = &msgs[i]
		}
	}
	require.NotNil(t, toolMsg)
	assert.Equal(t, "Go was released in 2009.", toolMsg.Content)
}

func TestDelegation_StructuredInput(t *testing.T) {
	writerBackend := model.NewMockBackend(model.MockStep{Content: "draft done"})
	writer := New("Writer", writerBackend)

	coordinator := New("Coordinator", model.NewMockBackend(
		model.MockStep{ToolCalls: []model.ToolCall{
			{ID: "c1", Name: "draft_report", Arguments: `{"topic":"go","tone":"formal"}`},
		}},
		model.MockStep{Content: "done"},
	))
	_, err := coordinator.RegisterDelegate(writer, func(o *DelegateOptions) {
		o.ToolName = "draft_report"
		o.Params = []DelegateParam{
			{Name: "topic", Description: "Topic"},
			{Name: "tone", Description: "Tone"},
		}
	})
	require.NoError(t, err)

	_, err = coordinator.Run(context.Background(), "write it")
	require.NoError(t, err)

	// Structured mode forwards the whole argument map as input data.
	reqs := writerBackend.Requests()
	require.Len(t, reqs, 1)
	input := reqs[0].Messages[1].Content
	assert.Contains(t, input, "Input data:")
	assert.Contains(t, input, `"topic": "go"`)
	assert.Contains(t, input, `"tone": "formal"`)
}

func TestDelegation_FailureBecomesToolError(t *testing.T) {
	researcher := New("Researcher", model.NewMockBackend(
		model.MockStep{Refusal: "no"},
	))
	coordBackend := model.NewMockBackend(
		delegateStep("delegate_to_researcher", "anything"),
		model.MockStep{Content: "handled the failure"},
	)
	coordinator := New("Coordinator", coordBackend)
	mustDelegate(t, coordinator, researcher)

	res, err := coordinator.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.True(t, res.Success)

	msgs := coordBackend.Requests()[1].Messages
	var toolMsg *model.Message
	for i := range msgs {
		if msgs[i].Role == "tool" {
			toolMsg = &msgs[i]
		}
	}
	require.NotNil(t, toolMsg)
	assert.Contains(t, toolMsg.Content, "Error:")
	assert.Contains(t, toolMsg.Content, "delegation to Researcher failed")
}

func TestDelegation_DuplicateCallsInOneBatch(t *testing.T) {
	researchBackend := model.NewMockBackend(
		model.MockStep{Content: "first answer"},
		model.MockStep{Content: "second answer"},
	)
	researcher := New("Researcher", researchBackend)

	coordBackend := model.NewMockBackend(
		model.MockStep{ToolCalls: []model.ToolCall{
			{ID: "c1", Name: "delegate_to_researcher", Arguments: `{"query":"first question"}`},
			{ID: "c2", Name: "delegate_to_researcher", Arguments: `{"query":"second question"}`},
		}},
		model.MockStep{Content: "combined"},
	)
	coordinator := New("Coordinator", coordBackend)
	mustDelegate(t, coordinator, researcher)

	res, err := coordinator.Run(context.Background(), "ask twice")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "combined", res.Content)

	// The delegate ran twice, one call at a time and in issue order; its
	// conversation carries both questions without interleaving.
	rReqs := researchBackend.Requests()
	require.Len(t, rReqs, 2)
	assert.Equal(t, "first question", rReqs[0].Messages[1].Content)
	var queries []string
	for _, m := range rReqs[1].Messages {
		if m.Role == "user" {
			queries = append(queries, m.Content)
		}
	}
	assert.Equal(t, []string{"first question", "second question"}, queries)

	// Each answer folded back under its own call id.
	msgs := coordBackend.Requests()[1].Messages
	var toolMsgs []model.Message
	for _, m := range msgs {
		if m.Role == "tool" {
			toolMsgs = append(toolMsgs, m)
		}
	}
	require.Len(t, toolMsgs, 2)
	assert.Equal(t, "c1", toolMsgs[0].ToolCallID)
	assert.Equal(t, "first answer", toolMsgs[0].Content)
	assert.Equal(t, "c2", toolMsgs[1].ToolCallID)
	assert.Equal(t, "second answer", toolMsgs[1].Content)
}

// -------------------- Trace Propagation Tests --------------------

func TestDelegation_SharesOneRun(t *testing.T) {
	ledger := trace.NewLedger(func(o *trace.LedgerOptions) { o.AutoExport = false })

	researcher := New("Researcher", model.NewMockBackend(
		model.MockStep{Content: "found it"},
	))
	coordinator := New("Coordinator", model.NewMockBackend(
		delegateStep("delegate_to_researcher", "look this up"),
		model.MockStep{Content: "done"},
	), func(o *Options) { o.Ledger = ledger })
	mustDelegate(t, coordinator, researcher)

	_, err := coordinator.Run(context.Background(), "go")
	require.NoError(t, err)

	events := ledger.Trace()
	require.NotEmpty(t, events)

	runID := events[0].RunID
	byType := map[trace.EventType][]trace.Event{}
	for _, ev := range events {
		assert.Equal(t, runID, ev.RunID)
		byType[ev.Type] = append(byType[ev.Type], ev)
	}

	// Delegate's events sit one level deeper with the delegator as parent.
	starts := byType[trace.EventAgentStart]
	require.Len(t, starts, 2)
	assert.Equal(t, "Coordinator", starts[0].AgentName)
	assert.Equal(t, 0, starts[0].DelegationDepth)
	assert.Equal(t, "Researcher", starts[1].AgentName)
	assert.Equal(t, 1, starts[1].DelegationDepth)
	assert.Equal(t, "Coordinator", starts[1].ParentAgent)

	require.Len(t, byType[trace.EventAgentDelegate], 1)
	require.Len(t, byType[trace.EventDelegationEnd], 1)
}

func TestDelegation_DepthTwo(t *testing.T) {
	ledger := trace.NewLedger(func(o *trace.LedgerOptions) { o.AutoExport = false })

	leaf := New("Leaf", model.NewMockBackend(model.MockStep{Content: "leaf answer"}))
	middle := New("Middle", model.NewMockBackend(
		delegateStep("delegate_to_leaf", "dig deeper"),
		model.MockStep{Content: "middle answer"},
	))
	root := New("Root", model.NewMockBackend(
		delegateStep("delegate_to_middle", "start"),
		model.MockStep{Content: "root answer"},
	), func(o *Options) { o.Ledger = ledger })

	mustDelegate(t, middle, leaf)
	mustDelegate(t, root, middle)

	res, err := root.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.True(t, res.Success)

	depths := map[string]int{}
	parents := map[string]string{}
	runIDs := map[string]bool{}
	for _, ev := range ledger.Trace() {
		runIDs[ev.RunID] = true
		if ev.Type == trace.EventAgentStart {
			depths[ev.AgentName] = ev.DelegationDepth
			parents[ev.AgentName] = ev.ParentAgent
		}
	}

	assert.Len(t, runIDs, 1)
	assert.Equal(t, 0, depths["Root"])
	assert.Equal(t, 1, depths["Middle"])
	assert.Equal(t, 2, depths["Leaf"])
	assert.Equal(t, "Root", parents["Middle"])
	assert.Equal(t, "Middle", parents["Leaf"])
}

func TestDelegation_UntracedDelegatorRunsClean(t *testing.T) {
	// No ledger anywhere: delegation still works, nothing records.
	researcher := New("Researcher", model.NewMockBackend(
		model.MockStep{Content: "answer"},
	))
	coordinator := New("Coordinator", model.NewMockBackend(
		delegateStep("delegate_to_researcher", "q"),
		model.MockStep{Content: "done"},
	))
	mustDelegate(t, coordinator, researcher)

	res, err := coordinator.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.True(t, res.Success)
}
