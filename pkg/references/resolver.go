// Package references resolves cross-node data references embedded in node
// configuration values.
//
// Two forms are recognized: {{ $json.<path> }} reads from the current node's
// scope, and {{ $('Name').json.<path> }} reads from the named node's recorded
// output. A reference that cannot be resolved is left untouched in the output
// rather than dropped or raised.
package references

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	templateRegex = regexp.MustCompile(`\{\{\s*(\$\('([^']+)'\)\.json|\$json)(?:\.|\s*)([^}]+?)\s*\}\}`)
	pathRegex     = regexp.MustCompile(`([^[.\]]+)|\[(-?\d+|"[^"]+"|'[^']+')\]`)
	integerRegex  = regexp.MustCompile(`^-?\d+$`)
)

// ResolveValue resolves references in v when it is a string; any other value
// passes through unchanged.
func ResolveValue(v any, context map[string]map[string]any, selfNodeID string) any {
	if s, ok := v.(string); ok {
		return Resolve(s, context, selfNodeID)
	}

	return v
}

// Resolve substitutes every resolvable {{ ... }} reference in expr in a
// single left-to-right pass. Each reference resolves independently; a miss
// leaves that reference's original text in place.
func Resolve(expr string, context map[string]map[string]any, selfNodeID string) string {
	if !strings.Contains(expr, "{{") {
		return expr
	}

	return templateRegex.ReplaceAllStringFunc(expr, func(match string) string {
		groups := templateRegex.FindStringSubmatch(match)
		variable, nodeName, rawPath := groups[1], groups[2], groups[3]

		var source map[string]any

		if strings.HasPrefix(variable, "$('") && nodeName != "" {
			source = context[nodeName]
		} else {
			source = context[selfNodeID]
		}

		if source == nil {
			return match
		}

		keys := parsePath(strings.TrimLeft(strings.TrimSpace(rawPath), ". \t"))

		value := walk(source, keys)
		if value == nil {
			return match
		}

		return stringify(value)
	})
}

// parsePath splits a path like "a.b[0]['c']" into its keys: dot-separated
// identifiers, bracketed integers (negative allowed) and bracketed quoted
// strings.
func parsePath(path string) []any {
	var parts []any

	for _, match := range pathRegex.FindAllStringSubmatch(path, -1) {
		dotKey, bracketKey := match[1], match[2]

		switch {
		case dotKey != "":
			if integerRegex.MatchString(dotKey) {
				idx, _ := strconv.Atoi(dotKey)
				parts = append(parts, idx)
			} else {
				parts = append(parts, dotKey)
			}
		case bracketKey != "":
			if integerRegex.MatchString(bracketKey) {
				idx, _ := strconv.Atoi(bracketKey)
				parts = append(parts, idx)
			} else {
				parts = append(parts, bracketKey[1:len(bracketKey)-1])
			}
		}
	}

	return parts
}

// walk follows the keys into the data structure. Any type mismatch, missing
// key or out-of-range index aborts with nil, which the caller turns into a
// pass-through.
func walk(source any, keys []any) any {
	current := source

	for _, key := range keys {
		if current == nil {
			return nil
		}

		switch node := current.(type) {
		case []any:
			idx, ok := key.(int)
			if !ok {
				return nil
			}

			if idx < 0 {
				idx += len(node)
			}

			if idx < 0 || idx >= len(node) {
				return nil
			}

			current = node[idx]
		case map[string]any:
			name, ok := key.(string)
			if !ok {
				return nil
			}

			value, found := node[name]
			if !found {
				return nil
			}

			current = value
		default:
			return nil
		}
	}

	return current
}

// stringify renders a resolved value: strings as-is, other scalars and
// composites in their canonical JSON text form.
func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}

	return string(encoded)
}
