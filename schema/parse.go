package schema

import "fmt"

// Declaration is the input to Parse: a tool name, its Google-style doc text
// and an optional argument struct supplying the Go type annotations.
type Declaration struct {
	Name string
	Doc  string
	// Args is an instance (or pointer) of the argument struct. When nil,
	// parameter names and types come solely from the doc text.
	Args any
}

// Parse converts a declaration into a Schema. It returns the schema together
// with any non-fatal warnings, or an error when the declaration cannot be
// represented safely (unsupported annotation type, duplicate parameter).
//
// Merge rules when both sources describe a parameter:
//   - the doc's type wins over the annotation (the model is validated
//     against the exported schema, not the Go type) and a warning is issued
//     on disagreement
//   - required/optional comes from the annotation (pointer or omitempty
//     means a default exists, so the model may omit the argument)
func Parse(decl Declaration) (*Schema, []Warning, error) {
	if decl.Name == "" {
		return nil, nil, fmt.Errorf("schema: declaration has no name")
	}

	var warnings []Warning

	doc := parseDoc(decl.Doc)

	description := doc.summary
	if description == "" {
		description = decl.Name
		warnings = append(warnings, Warning{
			Tool:    decl.Name,
			Message: "no doc text; description falls back to the tool name",
		})
	}

	s := &Schema{Name: decl.Name, Description: description}

	if decl.Args == nil {
		// Doc-only declaration: everything comes from the Args section.
		for _, name := range doc.paramOrder {
			dp := doc.params[name]
			typ := TypeString
			if dp.typeName != "" {
				typ = MapTypeName(dp.typeName)
			}
			s.Parameters = append(s.Parameters, Parameter{
				Name:        name,
				Type:        typ,
				Description: dp.description,
				Required:    true,
			})
		}
		return s, warnings, nil
	}

	annotated, err := structParameters(decl.Name, decl.Args)
	if err != nil {
		return nil, warnings, err
	}

	seen := map[string]bool{}
	for _, ap := range annotated {
		if seen[ap.name] {
			return nil, warnings, fmt.Errorf("schema: tool %q declares parameter %q twice", decl.Name, ap.name)
		}
		seen[ap.name] = true

		p := Parameter{Name: ap.name, Type: ap.typ, Required: !ap.optional}

		if dp, ok := doc.params[ap.name]; ok {
			p.Description = dp.description
			if dp.typeName != "" {
				docType := MapTypeName(dp.typeName)
				if docType != ap.typ {
					warnings = append(warnings, Warning{
						Tool:      decl.Name,
						Parameter: ap.name,
						Message: fmt.Sprintf("doc type %s disagrees with annotation %s; doc wins",
							docType, ap.typ),
					})
					p.Type = docType
				}
			}
		} else if doc.summary != "" || len(doc.params) > 0 {
			warnings = append(warnings, Warning{
				Tool:      decl.Name,
				Parameter: ap.name,
				Message:   "declared in signature but missing from the Args section",
			})
		}

		s.Parameters = append(s.Parameters, p)
	}

	// Doc parameters with no matching struct field are never exported.
	for _, name := range doc.paramOrder {
		if !seen[name] {
			warnings = append(warnings, Warning{
				Tool:      decl.Name,
				Parameter: name,
				Message:   "documented in Args but not declared in the signature; ignored",
			})
		}
	}

	return s, warnings, nil
}
