// Package jsonpath implements the small path-expression language used to pull
// values out of agent responses and stored envelopes.
//
// Two spellings are accepted and parse to the same Path:
//
//	/score/decisiondetails/0/approved_amount
//	$.score.decisiondetails[0].approved_amount
//
// A numeric segment indexes an array; any other segment indexes an object.
// String values that contain a JSON object or array are decoded transparently
// while descending, so "$.rawResponse.answer" reaches into a stored raw body.
package jsonpath

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnresolved is wrapped by every lookup failure.
	ErrUnresolved = errors.New("path not resolved")
	// ErrInvalidPath is wrapped by every parse failure.
	ErrInvalidPath = errors.New("invalid path expression")
)

// Segment is one step of a Path.
type Segment struct {
	Key   string
	Index int
	// Numeric is true when Key parses as a non-negative integer.
	Numeric bool
}

// Path is a parsed path expression. The zero value addresses the root.
type Path struct {
	raw      string
	segments []Segment
}

// ResolveError describes where a lookup stopped.
type ResolveError struct {
	Path    string
	Segment string
	Reason  string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("path %q: segment %q: %s", e.Path, e.Segment, e.Reason)
}

func (e *ResolveError) Unwrap() error { return ErrUnresolved }

// Parse parses a slash-delimited, JSONPath-like ("$." prefixed) or dotted expression.
func Parse(expr string) (Path, error) {
	expr = strings.TrimSpace(expr)
	p := Path{raw: expr}

	var parts []string
	switch {
	case expr == "" || expr == "$" || expr == "/":
		return p, nil
	case strings.HasPrefix(expr, "$"):
		rest := strings.TrimPrefix(expr, "$")
		var err error
		parts, err = splitBracketed(rest)
		if err != nil {
			return Path{}, fmt.Errorf("parsing %q: %w", expr, err)
		}
	case strings.Contains(expr, "/"):
		parts = strings.Split(expr, "/")
	default:
		var err error
		parts, err = splitBracketed("." + expr)
		if err != nil {
			return Path{}, fmt.Errorf("parsing %q: %w", expr, err)
		}
	}

	for _, part := range parts {
		if part == "" {
			continue
		}
		p.segments = append(p.segments, newSegment(part))
	}
	return p, nil
}

// MustParse is Parse for expressions known at compile time.
func MustParse(expr string) Path {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// splitBracketed splits ".a.b[0]['c.d']" into ["a", "b", "0", "c.d"].
func splitBracketed(s string) ([]string, error) {
	var parts []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed bracket", ErrInvalidPath)
			}
			inner := strings.Trim(s[i+1:i+end], `'"`)
			parts = append(parts, inner)
			i += end
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return parts, nil
}

func newSegment(part string) Segment {
	seg := Segment{Key: part}
	if n, err := strconv.Atoi(part); err == nil && n >= 0 {
		seg.Index = n
		seg.Numeric = true
	}
	return seg
}

// String returns the expression the path was parsed from.
func (p Path) String() string { return p.raw }

// Segments returns a copy of the parsed segments.
func (p Path) Segments() []Segment {
	out := make([]Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// IsRoot reports whether the path addresses the whole document.
func (p Path) IsRoot() bool { return len(p.segments) == 0 }

// Lookup walks root and returns the addressed value. A null value at the end of
// the path is returned as nil without error.
func (p Path) Lookup(root any) (any, error) {
	cur := root
	for _, seg := range p.segments {
		cur = expand(cur)
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg.Key]
			if !ok {
				return nil, p.fail(seg, "key not found")
			}
			cur = v
		case []any:
			if !seg.Numeric {
				return nil, p.fail(seg, "non-numeric segment on array")
			}
			if seg.Index >= len(node) {
				return nil, p.fail(seg, fmt.Sprintf("index out of range (len %d)", len(node)))
			}
			cur = node[seg.Index]
		case nil:
			return nil, p.fail(seg, "null value")
		default:
			return nil, p.fail(seg, fmt.Sprintf("cannot descend into %T", node))
		}
	}
	return cur, nil
}

func (p Path) fail(seg Segment, reason string) error {
	return &ResolveError{Path: p.raw, Segment: seg.Key, Reason: reason}
}

// expand decodes strings holding a JSON object or array.
func expand(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return v
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return v
	}
	return decoded
}

// Expand decodes v when it is a string holding a JSON object or array and
// returns it unchanged otherwise.
func Expand(v any) any { return expand(v) }
