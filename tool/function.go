package tool

import (
	"context"

	"github.com/fractalmesh/fractal/schema"
)

// Func is a plain tool implementation. It runs to completion without a
// context; use ContextFunc for anything that does I/O or can block.
type Func func(args map[string]any) (any, error)

// ContextFunc is a context-aware tool implementation for blocking or
// long-running work.
type ContextFunc func(ctx context.Context, args map[string]any) (any, error)

// FunctionTool adapts a Go function to the Tool interface. The two
// constructor forms (plain and context-aware) are resolved once here into a
// single uniform invocation shape so nothing downstream needs to distinguish
// them.
type FunctionTool struct {
	name   string
	schema *schema.Schema
	fn     ContextFunc
}

// NewFunction builds a FunctionTool from a plain function. The doc text and
// the args struct together produce the call schema (see schema.Parse);
// warnings are returned for the caller or the registry to surface.
func NewFunction(name, doc string, args any, fn Func) (*FunctionTool, []schema.Warning, error) {
	return NewContextFunction(name, doc, args, func(_ context.Context, a map[string]any) (any, error) {
		return fn(a)
	})
}

// NewContextFunction builds a FunctionTool from a context-aware function.
func NewContextFunction(name, doc string, args any, fn ContextFunc) (*FunctionTool, []schema.Warning, error) {
	s, warnings, err := schema.Parse(schema.Declaration{Name: name, Doc: doc, Args: args})
	if err != nil {
		return nil, warnings, err
	}
	return &FunctionTool{name: name, schema: s, fn: fn}, warnings, nil
}

// NewFunctionWithSchema builds a FunctionTool from an explicit, pre-built
// schema instead of a doc text. Used where the schema is assembled
// programmatically, e.g. delegate registration.
func NewFunctionWithSchema(s *schema.Schema, fn ContextFunc) *FunctionTool {
	return &FunctionTool{name: s.Name, schema: s, fn: fn}
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Schema returns the call schema exported to models.
func (t *FunctionTool) Schema() *schema.Schema { return t.schema }

// Call invokes the underlying function. Argument validation happens in the
// registry before Call is reached.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	return t.fn(ctx, args)
}
