package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fractalmesh/fractal/model"
	"github.com/fractalmesh/fractal/tool"
	"github.com/fractalmesh/fractal/trace"
)

const truncateLen = 200

// Run executes the agent against one input until the model produces final
// content, a terminating tool fires, the iteration cap is hit or the backend
// fails beyond retry. The returned error is non-nil only for context
// cancellation; every other failure mode is reported through Result.
//
// When the context carries a tracing scope (set by a delegating agent) the
// run attaches to that scope's ledger and run id; otherwise, if the agent
// has its own ledger, a fresh run is started and prior events are cleared.
func (a *Agent) Run(ctx context.Context, input any) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	systemPrompt, err := a.instruction.Resolve(a.promptVars)
	if err != nil {
		return nil, fmt.Errorf("resolve instruction: %w", err)
	}
	a.messages[0].Content = systemPrompt

	content := renderInput(input)
	a.messages = append(a.messages, model.Message{Role: "user", Content: content})

	scope, inherited := trace.FromContext(ctx)
	ownRun := false
	if !inherited && a.ledger != nil {
		runID := a.ledger.StartRun()
		scope = trace.NewScope(a.ledger, runID)
		ownRun = true
	}

	runStart := time.Now()
	if scope.Active() {
		ev := trace.NewEvent(trace.EventAgentStart, a.name)
		ev.Arguments = map[string]any{"user_input": trace.Truncate(content, truncateLen)}
		ev.Metadata = map[string]any{"model": a.backend.Info().Name}
		scope.Record(ev)
	}

	finish := func(res *Result) *Result {
		if scope.Active() {
			ev := trace.NewEvent(trace.EventAgentEnd, a.name)
			ev.Result = trace.Truncate(res.Text(), truncateLen)
			ev.Elapsed = time.Since(runStart).Seconds()
			ev.Metadata = map[string]any{"success": res.Success}
			for k, v := range res.Metadata {
				ev.Metadata[k] = v
			}
			scope.Record(ev)
		}
		if ownRun {
			a.ledger.EndRun()
		}
		return res
	}
	recordError := func(msg string, md map[string]any) {
		if !scope.Active() {
			return
		}
		ev := trace.NewEvent(trace.EventError, a.name)
		ev.Error = msg
		ev.Metadata = md
		scope.Record(ev)
	}

	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		resp, failRes, err := a.awaitModel(ctx, scope, iteration)
		if err != nil {
			recordError(err.Error(), map[string]any{"error_type": "canceled"})
			finish(failedResult(a.name, err.Error(), map[string]any{
				"iterations": iteration, "error_type": "canceled",
			}))
			return nil, err
		}
		if failRes != nil {
			if et, ok := failRes.Metadata["error_type"]; ok {
				recordError(fmt.Sprintf("%v", failRes.Content), map[string]any{"error_type": et})
			}
			failRes.Metadata["iterations"] = iteration
			return finish(failRes), nil
		}

		// Fold the assistant turn into the conversation before executing
		// anything, so tool results always have their request on record.
		assistant := model.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
		a.messages = append(a.messages, assistant)

		if len(resp.ToolCalls) > 0 {
			termination := a.executeBatch(ctx, scope, resp.ToolCalls)
			if termination != nil {
				return finish(&Result{
					Content:   termination.Content,
					AgentName: a.name,
					Success:   true,
					Metadata: map[string]any{
						"iterations":         iteration,
						"model":              a.backend.Info().Name,
						"terminated_by_tool": termination.ToolName,
					},
				}), nil
			}
			continue
		}

		return finish(&Result{
			Content:   resp.Content,
			AgentName: a.name,
			Success:   true,
			Metadata: map[string]any{
				"iterations": iteration,
				"model":      a.backend.Info().Name,
			},
		}), nil
	}

	recordError("max iterations reached", map[string]any{"reason": "max_iterations_reached"})
	return finish(failedResult(a.name, "Max iterations reached without completion", map[string]any{
		"iterations": a.maxIterations,
		"reason":     "max_iterations_reached",
	})), nil
}

// awaitModel performs one AWAITING_MODEL turn with the retry policy applied:
// rate limits back off exponentially, timeouts linearly, reasoning-only
// responses are nudged, refusals and other errors fail immediately. Exactly
// one of the three return values is meaningful.
func (a *Agent) awaitModel(ctx context.Context, scope trace.Scope, iteration int) (*model.Response, *Result, error) {
	req := model.Request{
		Messages:    a.prepareMessages(),
		Tools:       a.toolDefinitions(),
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}

	for retries := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		resp, err := a.backend.Complete(ctx, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}

			switch model.KindOf(err) {
			case model.ErrorKindRateLimit:
				retries++
				if retries < a.maxRetries {
					a.logger.Warn("agent.model.rate_limited", "agent", a.name, "retry", retries)
					if werr := sleepCtx(ctx, time.Duration(1<<retries)*500*time.Millisecond); werr != nil {
						return nil, nil, werr
					}
					continue
				}
				return nil, failedResult(a.name, fmt.Sprintf("Rate limit exceeded: %v", err), map[string]any{
					"error": err.Error(), "error_type": "rate_limit",
				}), nil
			case model.ErrorKindTimeout:
				retries++
				if retries < a.maxRetries {
					a.logger.Warn("agent.model.timeout", "agent", a.name, "retry", retries)
					if werr := sleepCtx(ctx, time.Duration(retries)*time.Second); werr != nil {
						return nil, nil, werr
					}
					continue
				}
				return nil, failedResult(a.name, fmt.Sprintf("Request timeout: %v", err), map[string]any{
					"error": err.Error(), "error_type": "timeout",
				}), nil
			default:
				a.logger.Error("agent.model.error", "agent", a.name, "error", err.Error())
				return nil, failedResult(a.name, err.Error(), map[string]any{
					"error": err.Error(), "error_type": "api_error",
				}), nil
			}
		}

		if resp.Refusal != "" {
			return nil, failedResult(a.name, fmt.Sprintf("Request refused: %s", resp.Refusal), map[string]any{
				"reason": "refusal",
			}), nil
		}

		if resp.Empty() {
			// Reasoning-only turn: nudge the model toward actual output.
			retries++
			if retries < a.maxRetries {
				a.logger.Debug("agent.model.empty_response", "agent", a.name, "retry", retries)
				a.messages = append(a.messages, model.Message{
					Role:    "user",
					Content: "Please provide your actual response or use a tool.",
				})
				req.Messages = a.prepareMessages()
				continue
			}
			return nil, failedResult(a.name, "Agent failed to provide a valid response after retries", map[string]any{
				"reason": "no_content_after_retries",
			}), nil
		}

		a.logger.Debug("agent.model.response",
			"agent", a.name,
			"iteration", iteration,
			"tool_calls", len(resp.ToolCalls),
			"finish_reason", resp.FinishReason,
		)

		return resp, nil, nil
	}
}

// executeBatch runs one EXECUTING_TOOLS batch: distinct tools execute
// concurrently, each outcome is matched back to its call strictly by tool
// call id (never completion order) and folded into the conversation in issue
// order. Duplicate calls to one tool run sequentially on a single goroutine;
// a delegate tool re-entered concurrently would race on the delegate's
// conversation. The whole batch is awaited before any termination applies;
// the returned outcome is the first successful terminating tool, or nil.
func (a *Agent) executeBatch(ctx context.Context, scope trace.Scope, calls []model.ToolCall) *tool.Outcome {
	groupID := ""
	if len(calls) > 1 {
		groupID = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}

	type pending struct {
		call model.ToolCall
		args map[string]any
	}

	var valid []pending
	for _, c := range calls {
		args := map[string]any{}
		if c.Arguments != "" {
			if err := json.Unmarshal([]byte(c.Arguments), &args); err != nil {
				// Malformed arguments never reach the tool; fold the parse
				// error straight back so the model can correct itself.
				a.messages = append(a.messages, model.Message{
					Role:       "tool",
					ToolCallID: c.ID,
					Name:       c.Name,
					Content:    fmt.Sprintf("Error: Invalid tool arguments - %v", err),
				})
				continue
			}
		}
		valid = append(valid, pending{call: c, args: args})
	}

	if len(valid) == 0 {
		return nil
	}

	if scope.Active() {
		for _, p := range valid {
			ev := trace.NewEvent(trace.EventToolCall, a.name)
			ev.ToolName = p.call.Name
			ev.ToolCallID = p.call.ID
			ev.ParallelGroupID = groupID
			ev.Arguments = p.args
			scope.Record(ev)
		}
	}

	// Tools see the scope through the context so delegate tools can chain
	// the trace without any shared mutable state.
	execCtx := trace.NewContext(ctx, scope)

	byName := map[string][]int{}
	var names []string
	for i, p := range valid {
		if _, seen := byName[p.call.Name]; !seen {
			names = append(names, p.call.Name)
		}
		byName[p.call.Name] = append(byName[p.call.Name], i)
	}

	outcomes := make([]tool.Outcome, len(valid))
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(idxs []int) {
			defer wg.Done()
			for _, idx := range idxs {
				p := valid[idx]
				outcomes[idx] = a.registry.Execute(execCtx, p.call.Name, p.args)
			}
		}(byName[name])
	}
	wg.Wait()

	var termination *tool.Outcome
	for i, p := range valid {
		outcome := outcomes[i]

		if scope.Active() {
			ev := trace.NewEvent(trace.EventToolResult, a.name)
			ev.ToolName = p.call.Name
			ev.ToolCallID = p.call.ID
			ev.ParallelGroupID = groupID
			ev.Result = trace.Truncate(trace.Stringify(outcome.Content), truncateLen)
			ev.Error = outcome.Err
			ev.Elapsed = outcome.Elapsed.Seconds()
			ev.Metadata = map[string]any{
				"success":   !outcome.Failed(),
				"terminate": outcome.Terminates,
			}
			scope.Record(ev)
			if outcome.Failed() {
				errEv := trace.NewEvent(trace.EventError, a.name)
				errEv.ToolName = p.call.Name
				errEv.ToolCallID = p.call.ID
				errEv.Error = outcome.Err
				scope.Record(errEv)
			}
		}

		var response string
		if outcome.Failed() {
			response = "Error: " + outcome.Err
		} else {
			response = serializeToolContent(outcome.Content)
		}
		a.messages = append(a.messages, model.Message{
			Role:       "tool",
			ToolCallID: p.call.ID,
			Name:       p.call.Name,
			Content:    response,
		})

		if outcome.Terminates && !outcome.Failed() && termination == nil {
			o := outcome
			termination = &o
		}
	}

	return termination
}

// prepareMessages returns the conversation view for the next backend call,
// trimmed to the context-window budget when one is configured. The stored
// history is never mutated by trimming.
func (a *Agent) prepareMessages() []model.Message {
	if a.contextWindow <= 0 {
		return a.messages
	}

	reserve := int(a.maxTokens)
	if reserve <= 0 {
		reserve = responseReserve
	}

	schemaTokens := 0
	if defs := a.toolDefinitions(); len(defs) > 0 {
		if b, err := json.Marshal(defs); err == nil {
			schemaTokens = EstimateTextTokens(string(b))
		}
	}

	budget := a.contextWindow - schemaTokens - reserve
	if budget <= 0 {
		return a.messages
	}

	return TrimConversation(a.messages, budget)
}

func renderInput(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return "Input data:\n" + string(b)
	}
}

// serializeToolContent renders a tool's return value for the model.
func serializeToolContent(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case nil:
		return ""
	default:
		b, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", c)
		}
		return string(b)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
