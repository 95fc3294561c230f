// Package schema turns a tool declaration (a Google-style doc text plus an
// optional Go argument struct) into a validated call schema that can be
// exported to an LLM backend. The doc text is the authoritative source for
// parameter types: model arguments are validated against the exported schema,
// not the native Go annotation, so when the two disagree the doc wins and a
// non-fatal warning is issued.
package schema

import (
	"fmt"
	"strings"
)

// Type is a JSON-schema semantic type supported for tool parameters.
type Type string

const (
	// TypeString is a JSON string parameter.
	TypeString Type = "string"
	// TypeInteger is a whole-number parameter.
	TypeInteger Type = "integer"
	// TypeNumber is a floating point parameter.
	TypeNumber Type = "number"
	// TypeBoolean is a true/false parameter.
	TypeBoolean Type = "boolean"
	// TypeArray is a list parameter (no element-type refinement).
	TypeArray Type = "array"
	// TypeObject is a map parameter (no property refinement).
	TypeObject Type = "object"
)

// Parameter describes a single tool argument.
type Parameter struct {
	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Schema is the machine-checkable call schema for one tool.
type Schema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	// Terminates marks a tool whose successful outcome ends the agent loop
	// and becomes the final result.
	Terminates bool `json:"terminates"`
}

// Parameter returns the named parameter, if declared.
func (s *Schema) Parameter(name string) (Parameter, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Required returns the names of all required parameters in declaration order.
func (s *Schema) Required() []string {
	var req []string
	for _, p := range s.Parameters {
		if p.Required {
			req = append(req, p.Name)
		}
	}
	return req
}

// ParametersJSON renders the parameters as a minimal JSON-Schema object
// ({"type":"object","properties":...,"required":...}).
func (s *Schema) ParametersJSON() map[string]any {
	properties := map[string]any{}
	for _, p := range s.Parameters {
		properties[p.Name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
	}

	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if req := s.Required(); len(req) > 0 {
		out["required"] = req
	}

	return out
}

// Warning is a non-fatal problem detected during schema parsing. Registration
// succeeds but the condition is worth surfacing (missing doc, undocumented
// parameter, annotation/doc type conflict).
type Warning struct {
	Tool      string
	Parameter string
	Message   string
}

// String renders the warning for logging.
func (w Warning) String() string {
	if w.Parameter != "" {
		return fmt.Sprintf("tool %q, parameter %q: %s", w.Tool, w.Parameter, w.Message)
	}
	return fmt.Sprintf("tool %q: %s", w.Tool, w.Message)
}

// UnsupportedTypeError is a fatal registration-time error: the annotation uses
// a Go type with no safe JSON-schema representation. Registering such a tool
// would silently corrupt model-issued arguments, so it is rejected outright.
type UnsupportedTypeError struct {
	Tool      string
	Parameter string
	GoType    string
}

// Error implements the error interface.
func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("tool %q: parameter %q has unsupported type %s", e.Tool, e.Parameter, e.GoType)
}

// MapTypeName maps a doc-text type name (Python or JSON flavored) to a
// semantic Type. It matches by substring so compound spellings like
// "Optional[int]" or "list of str" resolve sensibly. Unknown names map to
// string, the least surprising fallback.
func MapTypeName(name string) Type {
	name = strings.ToLower(strings.TrimSpace(name))

	// Order matters: containers come before scalars so compound spellings
	// like "list of str" keep the container type, and "integer" contains
	// "int".
	candidates := []struct {
		substr string
		typ    Type
	}{
		{"list", TypeArray},
		{"array", TypeArray},
		{"slice", TypeArray},
		{"dict", TypeObject},
		{"map", TypeObject},
		{"object", TypeObject},
		{"str", TypeString},
		{"int", TypeInteger},
		{"float", TypeNumber},
		{"number", TypeNumber},
		{"bool", TypeBoolean},
	}
	for _, c := range candidates {
		if strings.Contains(name, c.substr) {
			return c.typ
		}
	}

	return TypeString
}
