// Package agent implements the tool-calling execution loop: it drives the
// conversation with a model backend, dispatches one or many tool calls per
// turn (concurrently within a batch), applies termination, iteration and
// retry policy, trims history against a context-window budget and records a
// replayable trace. Agents can register other agents as delegates, forming
// recursive call trees that share one trace run.
package agent

import (
	"fmt"
	"strings"

	"github.com/fractalmesh/fractal/logging"
	"github.com/fractalmesh/fractal/model"
	"github.com/fractalmesh/fractal/schema"
	"github.com/fractalmesh/fractal/tool"
	"github.com/fractalmesh/fractal/trace"
)

// Default loop policy, matching the safety bounds callers usually want.
const (
	DefaultMaxIterations = 10
	DefaultMaxRetries    = 3
	// responseReserve is the token head-room kept for the model's reply
	// when no explicit max tokens is configured.
	responseReserve = 4096
)

// Options configure an Agent instance.
type Options struct {
	// Instruction is the system prompt; static text, a template over
	// PromptVars, or a dynamic provider.
	Instruction Instruction
	// PromptVars feed template placeholders in a static instruction.
	PromptVars map[string]any
	// MaxIterations bounds model turns per run (safety against runaway
	// tool-calling).
	MaxIterations int
	// MaxRetries bounds retries for transient backend failures.
	MaxRetries int
	// ContextWindow is the token budget for backend requests; 0 disables
	// trimming.
	ContextWindow int
	Temperature   float64
	MaxTokens     int64
	// Ledger enables tracing when set.
	Ledger *trace.Ledger
	Logger logging.Logger
}

// Agent owns a conversation, a tool registry and a model backend. The
// conversation is owned exclusively by this instance and mutated only by its
// own Run loop; an Agent must not be run concurrently with itself, though
// distinct agents (including delegates) run concurrently just fine.
type Agent struct {
	name          string
	backend       model.Backend
	instruction   Instruction
	promptVars    map[string]any
	registry      *tool.Registry
	ledger        *trace.Ledger
	logger        logging.Logger
	maxIterations int
	maxRetries    int
	contextWindow int
	temperature   float64
	maxTokens     int64

	messages []model.Message
}

// New creates an agent with sensible defaults: a helpful-assistant prompt,
// ten model turns, three retries, no trimming and no tracing.
func New(name string, backend model.Backend, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instruction:   NewInstruction(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxIterations: DefaultMaxIterations,
		MaxRetries:    DefaultMaxRetries,
		Temperature:   0.7,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)

	a := &Agent{
		name:          name,
		backend:       backend,
		instruction:   opts.Instruction,
		promptVars:    opts.PromptVars,
		registry:      tool.NewRegistry(func(o *tool.RegistryOptions) { o.Logger = logger }),
		ledger:        opts.Ledger,
		logger:        logger,
		maxIterations: opts.MaxIterations,
		maxRetries:    opts.MaxRetries,
		contextWindow: opts.ContextWindow,
		temperature:   opts.Temperature,
		maxTokens:     opts.MaxTokens,
	}
	if a.maxIterations <= 0 {
		a.maxIterations = DefaultMaxIterations
	}
	if a.maxRetries <= 0 {
		a.maxRetries = DefaultMaxRetries
	}

	a.messages = []model.Message{{Role: "system"}}

	return a
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Registry exposes the agent's tool registry.
func (a *Agent) Registry() *tool.Registry { return a.registry }

// Ledger returns the agent's tracing ledger, or nil when tracing is disabled.
func (a *Agent) Ledger() *trace.Ledger { return a.ledger }

// RegisterTool adds a tool to the agent's capability set.
func (a *Agent) RegisterTool(t tool.Tool, opts ...tool.RegisterOption) (*schema.Schema, error) {
	return a.registry.Register(t, opts...)
}

// RegisterFunction registers a plain function as a tool; the doc text and
// args struct produce the call schema.
func (a *Agent) RegisterFunction(name, doc string, args any, fn tool.Func, opts ...tool.RegisterOption) (*schema.Schema, error) {
	return a.registry.RegisterFunction(name, doc, args, fn, opts...)
}

// SetPromptVar updates one template variable for the system prompt; the new
// value takes effect on the next Run.
func (a *Agent) SetPromptVar(key string, value any) {
	if a.promptVars == nil {
		a.promptVars = map[string]any{}
	}
	a.promptVars[key] = value
}

// Reset clears the conversation history back to just the system turn.
func (a *Agent) Reset() {
	a.messages = a.messages[:1]
}

// History returns a copy of the conversation.
func (a *Agent) History() []model.Message {
	out := make([]model.Message, len(a.messages))
	copy(out, a.messages)
	return out
}

// toolDefinitions exports the registry's schemas in the backend shape.
func (a *Agent) toolDefinitions() []model.ToolDefinition {
	schemas := a.registry.Schemas()
	if len(schemas) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, len(schemas))
	for i, s := range schemas {
		defs[i] = model.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.ParametersJSON(),
		}
	}
	return defs
}

// String renders a human-readable description of the agent and its tools.
func (a *Agent) String() string {
	var b strings.Builder
	rule := strings.Repeat("=", 70)

	fmt.Fprintf(&b, "%s\nAgent: %s\n%s\n", rule, a.name, rule)
	fmt.Fprintf(&b, "Model: %s (%s)\n", a.backend.Info().Name, a.backend.Info().Provider)
	if a.contextWindow > 0 {
		fmt.Fprintf(&b, "Context Window: %d\n", a.contextWindow)
	}

	schemas := a.registry.Schemas()
	fmt.Fprintf(&b, "\nTools (%d):\n", len(schemas))
	if len(schemas) == 0 {
		b.WriteString("  No tools registered\n")
	}
	for i, s := range schemas {
		fmt.Fprintf(&b, "\n  %d. %s\n     %s\n", i+1, s.Name, s.Description)
		if len(s.Parameters) > 0 {
			parts := make([]string, len(s.Parameters))
			for j, p := range s.Parameters {
				marker := ""
				if p.Required {
					marker = "*"
				}
				parts[j] = fmt.Sprintf("%s%s: %s", p.Name, marker, p.Type)
			}
			fmt.Fprintf(&b, "     Parameters: %s\n", strings.Join(parts, ", "))
		}
	}

	b.WriteString("\n" + rule)
	return b.String()
}
