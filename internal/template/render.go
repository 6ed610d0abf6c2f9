// Package template implements the engine's message templating language:
// {{key}} variable substitution, {{#key}}...{{/key}} sections and
// {{^key}}...{{/key}} inverted sections, with alias canonicalization so
// scopes may use snake_case or camelCase field names interchangeably.
//
// Rendering is a pure function. It performs no I/O and never fails:
// malformed tags and unknown keys pass through to the output verbatim.
package template

import (
	"fmt"
	"strconv"
	"strings"
)

// Render expands template against scope and returns the result.
func Render(template string, scope map[string]any) string {
	if template == "" {
		return ""
	}
	nodes := parse(tokenize(template))
	var b strings.Builder
	renderNodes(&b, nodes, []map[string]any{scope})
	return b.String()
}

// renderNodes walks the node tree once. scopes is a stack: section
// iteration pushes each element's fields on top of the caller's scope.
func renderNodes(b *strings.Builder, nodes []node, scopes []map[string]any) {
	for _, n := range nodes {
		switch n.kind {
		case nodeText:
			b.WriteString(n.raw)
		case nodeVariable:
			if value, ok := lookup(n.key, scopes); ok {
				b.WriteString(stringify(value))
			} else {
				b.WriteString(n.raw)
			}
		case nodeSection:
			value, ok := lookup(n.key, scopes)
			if !ok || !truthy(value) {
				continue
			}
			switch v := normalizeList(value).(type) {
			case []map[string]any:
				for _, element := range v {
					renderNodes(b, n.children, append(scopes, element))
				}
			case []any:
				for _, element := range v {
					if fields, isMap := element.(map[string]any); isMap {
						renderNodes(b, n.children, append(scopes, fields))
					} else {
						renderNodes(b, n.children, append(scopes, map[string]any{".": element}))
					}
				}
			case map[string]any:
				renderNodes(b, n.children, append(scopes, v))
			default:
				renderNodes(b, n.children, scopes)
			}
		case nodeInverted:
			value, ok := lookup(n.key, scopes)
			if !ok || !truthy(value) {
				renderNodes(b, n.children, scopes)
			}
		}
	}
}

// lookup resolves key against the scope stack, innermost first, trying
// the key's alias candidates at each level.
func lookup(key string, scopes []map[string]any) (any, bool) {
	candidates := candidatesFor(key)
	for i := len(scopes) - 1; i >= 0; i-- {
		scope := scopes[i]
		if scope == nil {
			continue
		}
		for _, candidate := range candidates {
			if value, ok := scope[candidate]; ok {
				return value, true
			}
		}
	}
	return nil, false
}

// normalizeList converts typed slices the engine commonly puts in scopes
// into the shapes renderNodes iterates over.
func normalizeList(value any) any {
	switch v := value.(type) {
	case []map[string]any, []any, map[string]any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return value
	}
}

// truthy reports whether a section guarded by value should render.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case []map[string]any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
