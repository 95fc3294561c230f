package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalmesh/fractal/schema"
)

func newEchoTool(t *testing.T, name string) *FunctionTool {
	t.Helper()
	type args struct {
		Text string `json:"text"`
	}
	doc := `Echo the input back.

Args:
    text (str): The text to echo`
	tool, warnings, err := NewFunction(name, doc, args{}, func(a map[string]any) (any, error) {
		return a["text"], nil
	})
	require.NoError(t, err)
	require.Empty(t, warnings)
	return tool
}

// -------------------- Registration Tests --------------------

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	s, err := r.Register(newEchoTool(t, "echo"))
	require.NoError(t, err)
	assert.Equal(t, "echo", s.Name)
	assert.False(t, s.Terminates)
	assert.Equal(t, 1, r.Len())

	reg, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", reg.Tool.Name())
}

func TestRegistry_NameCollisionRejected(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register(newEchoTool(t, "echo"))
	require.NoError(t, err)

	_, err = r.Register(newEchoTool(t, "echo"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	// The original registration is untouched.
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_WithTerminates(t *testing.T) {
	r := NewRegistry()

	s, err := r.Register(newEchoTool(t, "final_answer"), WithTerminates())
	require.NoError(t, err)
	assert.True(t, s.Terminates)

	reg, _ := r.Get("final_answer")
	assert.True(t, reg.Terminates)
}

func TestRegistry_SchemasInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		_, err := r.Register(newEchoTool(t, name))
		require.NoError(t, err)
	}

	var names []string
	for _, s := range r.Schemas() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, names)
}

func TestRegistry_RegisterFunctionPropagatesSchemaError(t *testing.T) {
	type badArgs struct {
		C chan int `json:"c"`
	}
	r := NewRegistry()
	_, err := r.RegisterFunction("bad", "Bad tool.", badArgs{}, func(map[string]any) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	var ute *schema.UnsupportedTypeError
	assert.True(t, errors.As(err, &ute))
	assert.Equal(t, 0, r.Len())
}

// -------------------- Execution Tests --------------------

func TestRegistry_ExecuteSuccess(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(newEchoTool(t, "echo"))
	require.NoError(t, err)

	out := r.Execute(context.Background(), "echo", map[string]any{"text": "hello"})
	assert.False(t, out.Failed())
	assert.Equal(t, "echo", out.ToolName)
	assert.Equal(t, "hello", out.Content)
	assert.GreaterOrEqual(t, out.Elapsed, time.Duration(0))
}

func TestRegistry_ExecuteNotFound(t *testing.T) {
	r := NewRegistry()

	out := r.Execute(context.Background(), "missing", nil)
	assert.True(t, out.Failed())
	assert.Contains(t, out.Err, "not found")
	assert.Contains(t, out.Err, CodeNotFound)
}

func TestRegistry_ExecuteValidationFailure(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(newEchoTool(t, "echo"))
	require.NoError(t, err)

	// Missing required argument.
	out := r.Execute(context.Background(), "echo", map[string]any{})
	assert.True(t, out.Failed())
	assert.Contains(t, out.Err, CodeValidation)

	// Wrong argument type.
	out = r.Execute(context.Background(), "echo", map[string]any{"text": 42})
	assert.True(t, out.Failed())
	assert.Contains(t, out.Err, CodeValidation)
}

func TestRegistry_ExecuteToolError(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterFunction("boom", "Always fails.", nil, func(map[string]any) (any, error) {
		return nil, errors.New("kaboom")
	})
	require.NoError(t, err)

	out := r.Execute(context.Background(), "boom", map[string]any{})
	assert.True(t, out.Failed())
	assert.Contains(t, out.Err, "kaboom")
}

func TestRegistry_ExecuteRecoversPanic(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterFunction("panicky", "Panics on call.", nil, func(map[string]any) (any, error) {
		panic("unexpected state")
	})
	require.NoError(t, err)

	out := r.Execute(context.Background(), "panicky", map[string]any{})
	assert.True(t, out.Failed())
	assert.Contains(t, out.Err, "panic")
	assert.Contains(t, out.Err, "unexpected state")
}

func TestRegistry_ExecuteCarriesTerminatesOnError(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterFunction("finish", "Finishes the run.", nil, func(map[string]any) (any, error) {
		return nil, errors.New("not ready")
	}, WithTerminates())
	require.NoError(t, err)

	out := r.Execute(context.Background(), "finish", map[string]any{})
	assert.True(t, out.Failed())
	assert.True(t, out.Terminates)
}

func TestRegistry_ContextReachesTool(t *testing.T) {
	type ctxKey struct{}

	r := NewRegistry()
	tool, _, err := NewContextFunction("probe", "Reads a context value.", nil,
		func(ctx context.Context, _ map[string]any) (any, error) {
			return ctx.Value(ctxKey{}), nil
		})
	require.NoError(t, err)
	_, err = r.Register(tool)
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), ctxKey{}, "payload")
	out := r.Execute(ctx, "probe", map[string]any{})
	assert.False(t, out.Failed())
	assert.Equal(t, "payload", out.Content)
}
