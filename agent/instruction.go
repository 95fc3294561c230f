package agent

import "github.com/fractalmesh/fractal/internal/util"

// Provider supplies dynamic instruction text at runtime. Implementations can
// derive the system prompt from external state, time of day, feature flags, etc.
type Provider interface {
	Instruction() (string, error)
}

// ProviderFunc is a functional adapter to allow ordinary functions to be used
// as Providers.
type ProviderFunc func() (string, error)

// Instruction implements Provider.
func (f ProviderFunc) Instruction() (string, error) { return f() }

// Instruction represents either a static instruction string (optionally a
// template over the agent's prompt vars) or a dynamic provider. This mirrors
// a union of string | provider in a Go-idiomatic way.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstruction creates an Instruction from a static string. The string may
// contain {{placeholders}} resolved against the agent's prompt vars.
func NewInstruction(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func() (string, error)) Instruction {
	return Instruction{provider: ProviderFunc(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider or rendering
// the template as needed.
func (i Instruction) Resolve(vars map[string]any) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction()
	}
	if len(vars) > 0 {
		return util.RenderTemplate(i.text, vars)
	}
	return i.text, nil
}
