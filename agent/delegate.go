package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fractalmesh/fractal/schema"
	"github.com/fractalmesh/fractal/tool"
	"github.com/fractalmesh/fractal/trace"
)

// DelegateParam describes one argument of a structured delegate tool.
type DelegateParam struct {
	Name        string
	Type        schema.Type
	Description string
	// Required defaults to true when nil.
	Required *bool
}

// DelegateOptions customizes how a delegate agent is exposed as a tool.
type DelegateOptions struct {
	// ToolName overrides the default "delegate_to_<name>" tool name.
	ToolName string
	// Description overrides the default tool description.
	Description string
	// Params switches the tool to structured mode: instead of a single
	// "query" string, the tool accepts these parameters and forwards the
	// whole argument map as the delegate's input.
	Params []DelegateParam
}

// RegisterDelegate exposes another agent as a tool on this agent's registry.
// The delegate runs under a child tracing scope derived from the context of
// the invoking tool call, so its events join the delegator's run with the
// correct depth and parent, and sibling delegations issued in the same
// parallel batch stay independent.
func (a *Agent) RegisterDelegate(delegate *Agent, optFns ...func(*DelegateOptions)) (*schema.Schema, error) {
	if delegate == nil {
		return nil, fmt.Errorf("delegate agent must not be nil")
	}
	if delegate == a {
		return nil, fmt.Errorf("agent %q cannot delegate to itself", a.name)
	}

	opts := DelegateOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	toolName := opts.ToolName
	if toolName == "" {
		toolName = "delegate_to_" + strings.ToLower(delegate.Name())
	}
	description := opts.Description
	if description == "" {
		description = fmt.Sprintf("Delegate tasks to %s (subordinate agent)", delegate.Name())
	}

	s := &schema.Schema{Name: toolName, Description: description}
	structured := len(opts.Params) > 0
	if structured {
		for _, p := range opts.Params {
			required := p.Required == nil || *p.Required
			typ := p.Type
			if typ == "" {
				typ = schema.TypeString
			}
			s.Parameters = append(s.Parameters, schema.Parameter{
				Name:        p.Name,
				Type:        typ,
				Description: p.Description,
				Required:    required,
			})
		}
	} else {
		s.Parameters = []schema.Parameter{{
			Name:        "query",
			Type:        schema.TypeString,
			Description: "The task or question to delegate",
			Required:    true,
		}}
	}

	delegator := a.name
	fn := func(ctx context.Context, args map[string]any) (any, error) {
		var input any
		if structured {
			input = args
		} else {
			q, _ := args["query"].(string)
			input = q
		}

		scope, traced := trace.FromContext(ctx)
		if traced {
			ev := trace.NewEvent(trace.EventAgentDelegate, delegator)
			ev.ToolName = toolName
			ev.Arguments = map[string]any{
				"delegate": delegate.Name(),
				"input":    trace.Truncate(trace.Stringify(input), truncateLen),
			}
			scope.Record(ev)
			ctx = trace.NewContext(ctx, scope.Child(delegator))
		}

		start := time.Now()
		res, err := delegate.Run(ctx, input)

		if traced {
			ev := trace.NewEvent(trace.EventDelegationEnd, delegator)
			ev.ToolName = toolName
			ev.Elapsed = time.Since(start).Seconds()
			ev.Metadata = map[string]any{"delegate": delegate.Name()}
			switch {
			case err != nil:
				ev.Error = err.Error()
			case !res.Success:
				ev.Error = res.Text()
			default:
				ev.Result = trace.Truncate(res.Text(), truncateLen)
			}
			scope.Record(ev)
		}

		if err != nil {
			return nil, fmt.Errorf("delegation to %s failed: %w", delegate.Name(), err)
		}
		if !res.Success {
			return nil, fmt.Errorf("delegation to %s failed: %s", delegate.Name(), res.Text())
		}
		return res.Content, nil
	}

	return a.registry.Register(tool.NewFunctionWithSchema(s, fn))
}
