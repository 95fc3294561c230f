package schema

import (
	"reflect"
	"strings"
	"time"
)

// annotatedParam is a parameter derived from a Go argument struct field.
type annotatedParam struct {
	name     string
	typ      Type
	optional bool
}

// structParameters extracts the annotated parameters from an argument struct
// (or pointer to struct) in field declaration order. A pointer field unwraps
// to its element type and marks the parameter optional, mirroring Optional[T];
// an "omitempty" json tag (a default exists) also marks it optional. Fields
// whose type has no safe JSON-schema mapping produce an UnsupportedTypeError.
func structParameters(toolName string, args any) ([]annotatedParam, error) {
	t := reflect.TypeOf(args)
	if t == nil {
		return nil, nil
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, &UnsupportedTypeError{Tool: toolName, Parameter: "(args)", GoType: t.String()}
	}

	var params []annotatedParam
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		if jsonTag != "" {
			if head := strings.Split(jsonTag, ",")[0]; head != "" {
				name = head
			}
		}

		ft := field.Type
		optional := hasOmitEmpty(jsonTag)
		if ft.Kind() == reflect.Ptr {
			optional = true
			ft = ft.Elem()
		}

		typ, err := jsonType(toolName, name, ft)
		if err != nil {
			return nil, err
		}

		params = append(params, annotatedParam{name: name, typ: typ, optional: optional})
	}

	return params, nil
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
)

// jsonType maps a Go type to its semantic schema type. Types without a safe
// JSON-schema representation (channels, funcs, byte strings, time values,
// nested structs, fixed arrays, interfaces) are rejected rather than guessed:
// a wrong guess here would corrupt every argument the model sends.
func jsonType(toolName, param string, t reflect.Type) (Type, error) {
	if t == timeType || t == durationType {
		return "", &UnsupportedTypeError{Tool: toolName, Parameter: param, GoType: t.String()}
	}

	switch t.Kind() {
	case reflect.String:
		return TypeString, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger, nil
	case reflect.Float32, reflect.Float64:
		return TypeNumber, nil
	case reflect.Bool:
		return TypeBoolean, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 { // []byte has no JSON-schema shape
			return "", &UnsupportedTypeError{Tool: toolName, Parameter: param, GoType: t.String()}
		}
		return TypeArray, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return "", &UnsupportedTypeError{Tool: toolName, Parameter: param, GoType: t.String()}
		}
		return TypeObject, nil
	default:
		return "", &UnsupportedTypeError{Tool: toolName, Parameter: param, GoType: t.String()}
	}
}

func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, p := range parts[1:] {
		if strings.TrimSpace(p) == "omitempty" {
			return true
		}
	}
	return false
}
