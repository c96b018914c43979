package projector

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"claimflow/internal/jsonpath"
	"claimflow/internal/workflowconfig"
)

// Coerce converts an extracted value to the target type.
//
//	raw      numbers canonicalized, everything else unchanged
//	string   rendered as text
//	integer  rounded half away from zero to int64, 0 when unparseable
//	number   int64 when integral, float64 otherwise, 0 when unparseable
func Coerce(v any, t workflowconfig.ValueType) any {
	switch t {
	case workflowconfig.TypeString:
		return jsonpath.Stringify(v)
	case workflowconfig.TypeInteger:
		f, ok := ToFloat(v)
		if !ok {
			return int64(0)
		}
		return int64(math.Round(f))
	case workflowconfig.TypeNumber:
		f, ok := ToFloat(v)
		if !ok {
			return int64(0)
		}
		return canonicalFloat(f)
	default:
		return Canonical(v)
	}
}

// Canonical gives every numeric kind a single representation: int64 for
// integral values, float64 otherwise. Non-numeric values are returned as is.
func Canonical(v any) any {
	switch t := v.(type) {
	case float64, float32, int, int32, int64, json.Number:
		f, ok := ToFloat(t)
		if !ok {
			return v
		}
		return canonicalFloat(f)
	default:
		return v
	}
}

func canonicalFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// ToFloat reads numbers and numeric strings. Thousands separators and
// surrounding spaces are ignored in strings.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		return ToFloat(float64(t))
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return ToFloat(f)
	default:
		return 0, false
	}
}
