package tool

import (
	"fmt"

	"github.com/fractalmesh/fractal/schema"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// validateArgs checks model-issued arguments against a tool's schema:
// required parameters must be present and every known parameter must match
// its declared semantic type. Extra arguments are tolerated, matching how
// models occasionally volunteer fields.
func validateArgs(args map[string]any, s *schema.Schema) error {
	for _, p := range s.Parameters {
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			return &ValidationError{Field: p.Name, Message: "required field is missing"}
		}
	}

	for name, value := range args {
		p, ok := s.Parameter(name)
		if !ok {
			continue
		}
		if !matchesType(value, p.Type) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", p.Type, value),
			}
		}
	}

	return nil
}

// matchesType checks a decoded JSON value against a semantic type. JSON
// unmarshaling produces float64 for every number, so integers are accepted
// when the float has no fractional part.
func matchesType(value any, t schema.Type) bool {
	if value == nil {
		return true
	}

	switch t {
	case schema.TypeString:
		_, ok := value.(string)
		return ok
	case schema.TypeInteger:
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case schema.TypeNumber:
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case schema.TypeBoolean:
		_, ok := value.(bool)
		return ok
	case schema.TypeArray:
		_, ok := value.([]any)
		return ok
	case schema.TypeObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
