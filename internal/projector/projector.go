// Package projector copies selected values out of agent responses into
// pipeline variables or into new stored artifacts.
package projector

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/jsonpath"
	"claimflow/internal/workflowconfig"
)

// Skip records one mapping that could not be extracted.
type Skip struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report lists what a projection applied and skipped. Skips are never fatal.
type Report struct {
	Applied []string `json:"applied"`
	Skipped []Skip   `json:"skipped,omitempty"`
}

func (r *Report) skip(name, path string, err error) {
	r.Skipped = append(r.Skipped, Skip{Name: name, Path: path, Reason: err.Error()})
	zap.L().Warn("projector: mapping skipped",
		zap.String("name", name), zap.String("path", path), zap.Error(err))
}

// ArtifactWriter persists a derived artifact. *resultstore.Store implements it.
type ArtifactWriter interface {
	Store(ctx context.Context, pc domain.PipelineContext, stageName, artifactName string, payload any) (domain.StorageKey, error)
}

// Extract parses path and looks it up in doc.
func Extract(doc any, path string) (any, error) {
	p, err := jsonpath.Parse(path)
	if err != nil {
		return nil, err
	}
	return p.Lookup(doc)
}

// ProjectVariables sets vars[name] for each mapping entry whose path resolves
// in doc, coerced to the entry's type. Entries that do not resolve are skipped
// and reported; they never stop the remaining entries.
func ProjectVariables(doc any, mapping map[string]workflowconfig.OutputField, vars map[string]any) Report {
	var report Report
	for _, name := range sortedKeys(mapping) {
		field := mapping[name]
		raw, err := Extract(doc, field.Path)
		if err != nil {
			report.skip(name, field.Path, err)
			continue
		}
		vars[name] = Coerce(raw, field.Type)
		report.Applied = append(report.Applied, name)
	}
	return report
}

// ProjectArtifacts stores each extracted value as a new artifact named by the
// mapping key. Primitive values are wrapped as {"value": v}. Extraction
// failures are skipped; a storage failure aborts and is returned.
func ProjectArtifacts(ctx context.Context, w ArtifactWriter, pc domain.PipelineContext, stageName string, doc any, mapping map[string]string) (map[string]domain.StorageKey, Report, error) {
	var report Report
	keys := make(map[string]domain.StorageKey, len(mapping))
	for _, name := range sortedKeys(mapping) {
		path := mapping[name]
		raw, err := Extract(doc, path)
		if err != nil {
			report.skip(name, path, err)
			continue
		}
		payload := jsonpath.Expand(raw)
		if jsonpath.IsPrimitive(payload) {
			payload = map[string]any{"value": Canonical(payload)}
		}
		key, err := w.Store(ctx, pc, stageName, name, payload)
		if err != nil {
			return keys, report, err
		}
		keys[name] = key
		report.Applied = append(report.Applied, name)
	}
	return keys, report, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
