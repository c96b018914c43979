package domain

import (
	"encoding/json"
	"time"
)

// StorageKey is a deterministic object-store path. Recomputing a key from the
// same inputs always yields the same value.
type StorageKey string

func (k StorageKey) String() string { return string(k) }

// ResultEnvelope wraps one agent call. It is persisted verbatim and never
// mutated after it is stored.
type ResultEnvelope struct {
	AgentID       string         `json:"agentId"`
	StatusCode    int            `json:"statusCode"`
	Success       bool           `json:"success"`
	RawResponse   string         `json:"rawResponse"`
	ExtractedData map[string]any `json:"extractedData,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Document returns the envelope as a generic JSON tree for path extraction.
func (e *ResultEnvelope) Document() map[string]any {
	raw, err := json.Marshal(e)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// Retrieved is a stored envelope normalized to a single shape regardless of
// whether it was written with rawResponse or apiResponse.
type Retrieved struct {
	Key         StorageKey     `json:"key"`
	APIResponse string         `json:"apiResponse"`
	StatusCode  int            `json:"statusCode"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// AsMap returns the normalized {apiResponse, statusCode, ...} result map.
func (r *Retrieved) AsMap() map[string]any {
	out := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["apiResponse"] = r.APIResponse
	out["statusCode"] = r.StatusCode
	return out
}
