// Package consolidation combines per-document extraction results into one
// claim-level structure.
package consolidation

import (
	"sort"
	"strings"

	"claimflow/internal/domain"
	"claimflow/internal/jsonpath"
)

// DocumentResult is one document's extraction output, keyed by document type.
type DocumentResult struct {
	Filename string
	Data     map[string]any
}

// Structure is the merged result keyed by document type.
type Structure map[string]any

// Merge folds inputs into a new Structure in the given order. Inputs are not
// modified.
//
// New keys are inserted as is. When both sides are objects they are merged
// field by field. A leaf that is absent, null, "" or "null" takes the incoming
// value. Otherwise the incoming value wins only when its text form is strictly
// longer, so on equal length the earlier document is kept.
//
// Merge returns domain.ErrNothingToMerge when no input carried any data.
func Merge(inputs []DocumentResult) (Structure, error) {
	out := Structure{}
	contributed := 0
	for _, in := range inputs {
		if len(in.Data) == 0 {
			continue
		}
		mergeInto(out, in.Data)
		contributed++
	}
	if contributed == 0 {
		return nil, domain.ErrNothingToMerge
	}
	return out, nil
}

func mergeInto(dst, src map[string]any) {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		incoming := src[k]
		existing, ok := dst[k]
		if !ok {
			dst[k] = jsonpath.DeepCopy(incoming)
			continue
		}
		dstMap, dstIsMap := existing.(map[string]any)
		srcMap, srcIsMap := incoming.(map[string]any)
		if dstIsMap && srcIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		if preferIncoming(existing, incoming) {
			dst[k] = jsonpath.DeepCopy(incoming)
		}
	}
}

func preferIncoming(existing, incoming any) bool {
	if isBlank(incoming) {
		return false
	}
	if isBlank(existing) {
		return true
	}
	return len(jsonpath.Stringify(incoming)) > len(jsonpath.Stringify(existing))
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "null")
}
