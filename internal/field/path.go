// Package field resolves dot-path references against nested entity documents
// and formats the resolved values for report output.
package field

import (
	"errors"
	"strconv"
	"strings"
)

// Doc is a decoded JSON document as stored for buildings, projects and the other report entities.
type Doc = map[string]any

var (
	// ErrEmptyPath indicates a blank field reference.
	ErrEmptyPath = errors.New("field: empty path")
	// ErrEmptySegment indicates a reference such as "a..b" or ".a".
	ErrEmptySegment = errors.New("field: empty path segment")
)

// Path is a validated dot-path split into its segments.
type Path []string

// ParsePath splits a dot-path reference once so it can be resolved repeatedly.
func ParsePath(raw string) (Path, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyPath
	}
	parts := strings.Split(raw, ".")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, ErrEmptySegment
		}
		parts[i] = part
	}
	return Path(parts), nil
}

// String joins the path back into its wire form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Last returns the final segment or "" for an empty path.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// First returns the leading segment or "" for an empty path.
func (p Path) First() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// TrimTarget drops a leading namespace segment such as "utility" in "utility.electric.cost".
// A path that consists only of the namespace is returned unchanged.
func (p Path) TrimTarget(target string) Path {
	if len(p) > 1 && p[0] == target {
		return p[1:]
	}
	return p
}

// Resolve walks v along p. Missing keys, out-of-range indexes, nil values and
// non-container intermediates all report false; Resolve never panics.
func Resolve(v any, p Path) (any, bool) {
	if len(p) == 0 {
		return nil, false
	}
	cur := v
	for _, seg := range p {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Lookup parses raw and resolves it against v. Invalid references resolve to false.
func Lookup(v any, raw string) (any, bool) {
	p, err := ParsePath(raw)
	if err != nil {
		return nil, false
	}
	return Resolve(v, p)
}

// LookupString resolves raw and returns it as a trimmed string when it is one.
func LookupString(v any, raw string) string {
	val, ok := Lookup(v, raw)
	if !ok {
		return ""
	}
	if s, ok := val.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func step(node any, seg string) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		val, ok := n[seg]
		return val, ok && val != nil
	case map[string]string:
		val, ok := n[seg]
		return val, ok
	case map[string]float64:
		val, ok := n[seg]
		return val, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(n) {
			return nil, false
		}
		return n[idx], n[idx] != nil
	case []map[string]any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(n) {
			return nil, false
		}
		return n[idx], true
	default:
		return nil, false
	}
}
