// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities with schema validated arguments, uniform
// error handling and per-invocation timing. Tools are registered explicitly
// on a Registry; the registry owns the name -> callable mapping together with
// each tool's call schema and terminates-loop flag.
package tool

import (
	"context"
	"fmt"

	"github.com/fractalmesh/fractal/schema"
)

// Tool is a callable capability exposed to the model under a declared schema.
//
// Implementations should provide clear names and descriptions, handle errors
// gracefully and be safe for concurrent use: invocations within one model
// turn execute in parallel.
type Tool interface {
	// Name returns the unique identifier for this tool within a registry.
	Name() string

	// Schema returns the machine-checkable call schema exported to the model.
	Schema() *schema.Schema

	// Call executes the tool with already-validated arguments. The context
	// carries cancellation plus any active tracing scope.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

// Error codes produced by the registry.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodePanic      = "PANIC"
)

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
