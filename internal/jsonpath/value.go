package jsonpath

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SetDotted writes value into root at a dotted path such as "claim.patient.id",
// creating intermediate objects as needed. The last segment is the leaf key.
func SetDotted(root map[string]any, dotted string, value any) error {
	if root == nil {
		return fmt.Errorf("set %q: nil root", dotted)
	}
	parts := strings.Split(dotted, ".")
	cur := root
	for i, part := range parts {
		if part == "" {
			return fmt.Errorf("set %q: empty segment", dotted)
		}
		if i == len(parts)-1 {
			cur[part] = value
			return nil
		}
		next, ok := cur[part]
		if !ok || next == nil {
			child := map[string]any{}
			cur[part] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("set %q: segment %q holds %T, not an object", dotted, part, next)
		}
		cur = child
	}
	return nil
}

// Stringify renders a JSON value the way it reads in a document: strings
// verbatim, integral numbers without exponent, containers as compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return Stringify(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}

// IsPrimitive reports whether v is a scalar JSON value (or null).
func IsPrimitive(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}

// DeepCopy copies maps and slices of a decoded JSON tree.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = DeepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = DeepCopy(child)
		}
		return out
	default:
		return v
	}
}
