package schema

import (
	"regexp"
	"strings"
)

// docInfo is the structured form of a Google-style doc text: a summary,
// an ordered Args section and a Returns description.
type docInfo struct {
	summary    string
	paramOrder []string
	params     map[string]docParam
	returns    string
}

type docParam struct {
	typeName    string // raw type name as written, "" when omitted
	description string
}

var argLineRe = regexp.MustCompile(`^(\w+)\s*(?:\(([^)]+)\))?\s*:\s*(.+)$`)

func isSectionHeader(line string) bool {
	switch line {
	case "Args:", "Arguments:", "Parameters:", "Returns:", "Return:", "Raises:", "Examples:", "Example:":
		return true
	}
	return false
}

// parseDoc extracts summary, Args and Returns sections from a Google-style
// doc text. A parameter line has the shape "name (type): description" with
// the type optional; indented continuation lines extend the description.
func parseDoc(doc string) docInfo {
	info := docInfo{params: map[string]docParam{}}
	if strings.TrimSpace(doc) == "" {
		return info
	}

	lines := strings.Split(doc, "\n")

	var summary []string
	i := 0
	for ; i < len(lines); i++ {
		if isSectionHeader(strings.TrimSpace(lines[i])) {
			break
		}
		summary = append(summary, lines[i])
	}
	info.summary = strings.TrimSpace(strings.Join(summary, "\n"))

	section := ""
	var currentParam string
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		switch line {
		case "Args:", "Arguments:", "Parameters:":
			section = "args"
			currentParam = ""
			continue
		case "Returns:", "Return:":
			section = "returns"
			currentParam = ""
			continue
		case "Raises:", "Examples:", "Example:":
			section = ""
			currentParam = ""
			continue
		}

		if line == "" {
			continue
		}

		switch section {
		case "args":
			if m := argLineRe.FindStringSubmatch(line); m != nil {
				name := m[1]
				if _, seen := info.params[name]; !seen {
					info.paramOrder = append(info.paramOrder, name)
				}
				info.params[name] = docParam{typeName: m[2], description: strings.TrimSpace(m[3])}
				currentParam = name
			} else if currentParam != "" {
				// Continuation of the previous parameter's description.
				p := info.params[currentParam]
				p.description += " " + line
				info.params[currentParam] = p
			}
		case "returns":
			if info.returns == "" {
				info.returns = line
			} else {
				info.returns += " " + line
			}
		}
	}

	return info
}
