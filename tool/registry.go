package tool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/fractalmesh/fractal/logging"
	"github.com/fractalmesh/fractal/schema"
)

// Registration owns a registered tool together with its schema and the
// terminates-loop flag. It lives as long as its registry.
type Registration struct {
	Tool       Tool
	Schema     *schema.Schema
	Terminates bool
}

// Outcome is the result of one tool invocation. Execution never raises to
// the caller: unknown tools, validation failures, tool errors and recovered
// panics all land in Err, so one failing tool cannot crash the agent loop.
type Outcome struct {
	ToolName   string
	Content    any
	Err        string // empty on success
	Terminates bool
	Elapsed    time.Duration
}

// Failed reports whether the invocation produced an error.
func (o Outcome) Failed() bool { return o.Err != "" }

// RegistryOptions configure a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// Registry holds the name -> tool mapping for one agent. Registration is
// expected at initialization time but the registry is safe for concurrent
// use; Execute is called from parallel batch goroutines.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Registration
	order  []string
	logger logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		tools:  map[string]*Registration{},
		logger: logging.OrNoOp(opts.Logger),
	}
}

// RegisterOption customizes a single registration.
type RegisterOption func(*Registration)

// WithTerminates marks the tool as loop-terminating: a successful outcome
// ends the agent loop and becomes the final result.
func WithTerminates() RegisterOption {
	return func(r *Registration) { r.Terminates = true }
}

// Register adds a tool to the registry. Name collisions are rejected:
// silently overwriting would make the model call the wrong implementation
// without any signal.
func (r *Registry) Register(t Tool, opts ...RegisterOption) (*schema.Schema, error) {
	reg := &Registration{Tool: t, Schema: t.Schema()}
	for _, opt := range opts {
		opt(reg)
	}
	reg.Schema.Terminates = reg.Terminates

	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return nil, fmt.Errorf("tool %q already registered", name)
	}

	r.tools[name] = reg
	r.order = append(r.order, name)

	r.logger.Debug("tool.registered", "tool", name, "terminates", reg.Terminates)

	return reg.Schema, nil
}

// RegisterFunction is a convenience that builds a FunctionTool from a plain
// function and registers it, logging any schema warnings.
func (r *Registry) RegisterFunction(name, doc string, args any, fn Func, opts ...RegisterOption) (*schema.Schema, error) {
	t, warnings, err := NewFunction(name, doc, args, fn)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		r.logger.Warn("tool.schema.warning", "warning", w.String())
	}
	return r.Register(t, opts...)
}

// Get returns the registration for a tool name.
func (r *Registry) Get(name string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	return reg, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Schemas returns all tool schemas in registration order.
func (r *Registry) Schemas() []*schema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*schema.Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema)
	}
	return out
}

// Execute runs a tool by name with already-decoded arguments and reports the
// outcome. Elapsed time is measured per invocation, not per batch.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Outcome {
	reg, ok := r.Get(name)
	if !ok {
		return Outcome{
			ToolName: name,
			Content:  "",
			Err:      NewToolError(name, "tool not found in registry", CodeNotFound).Error(),
		}
	}

	if err := validateArgs(args, reg.Schema); err != nil {
		r.logger.Warn("tool.call.validation_failed", "tool", name, "error", err.Error())
		return Outcome{
			ToolName: name,
			Content:  "",
			Err:      NewToolError(name, fmt.Sprintf("parameter validation failed: %v", err), CodeValidation).Error(),
		}
	}

	start := time.Now()

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = NewToolError(name, fmt.Sprintf("panic: %v", rec), CodePanic)
				r.logger.Error("tool.call.panic", "tool", name, "recover", rec, "stack", string(debug.Stack()))
			}
		}()
		result, err = reg.Tool.Call(ctx, args)
	}()

	elapsed := time.Since(start)

	if err != nil {
		r.logger.Error("tool.call.error", "tool", name, "error", err.Error(), "duration_ms", elapsed.Milliseconds())
		return Outcome{
			ToolName:   name,
			Content:    "",
			Err:        err.Error(),
			Terminates: reg.Terminates,
			Elapsed:    elapsed,
		}
	}

	r.logger.Info("tool.call.success", "tool", name, "duration_ms", elapsed.Milliseconds())

	return Outcome{
		ToolName:   name,
		Content:    result,
		Terminates: reg.Terminates,
		Elapsed:    elapsed,
	}
}
