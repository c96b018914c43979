// Package stage assigns stage numbers to pipeline instances.
//
// Two strategies exist. Counter numbers stages in the order they run: a new
// stage is previous+1 and every iteration of a multi-document loop shares the
// number of its stage. Table looks names up in a static name->number map and
// falls back to either previous+1 or the sentinel 99 for unmapped names.
package stage

import (
	"strings"

	"go.uber.org/zap"

	"claimflow/internal/domain"
)

// Tracker advances the stage of a pipeline context.
type Tracker interface {
	// Next records stageName on pc and returns its stage number. loop is true
	// when the caller is an iteration of the stage already recorded on pc.
	Next(pc *domain.PipelineContext, stageName string, loop bool) int
}

// Counter is the sequential strategy. Initial stage number is 0.
type Counter struct{}

func (Counter) Next(pc *domain.PipelineContext, stageName string, loop bool) int {
	if loop {
		return pc.StageNumber
	}
	pc.StageNumber++
	pc.StageName = stageName
	return pc.StageNumber
}

// Table is the static-table strategy.
type Table struct {
	numbers  map[string]int
	fallback domain.StageFallback
}

// NewTable builds a table strategy. Names are matched case-insensitively.
func NewTable(numbers map[string]int, fallback domain.StageFallback) *Table {
	t := &Table{numbers: make(map[string]int, len(numbers)), fallback: fallback}
	for name, n := range numbers {
		t.numbers[strings.ToLower(name)] = n
	}
	if t.fallback == "" {
		t.fallback = domain.StageFallbackPrevious
	}
	return t
}

// Lookup returns the mapped number of name.
func (t *Table) Lookup(name string) (int, bool) {
	n, ok := t.numbers[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

func (t *Table) Next(pc *domain.PipelineContext, stageName string, loop bool) int {
	if loop {
		return pc.StageNumber
	}
	n, ok := t.Lookup(stageName)
	if !ok {
		switch t.fallback {
		case domain.StageFallbackSentinel:
			n = domain.UnmappedStage
		default:
			n = pc.StageNumber + 1
		}
		zap.L().Debug("stage.Table: unmapped stage",
			zap.String("stage", stageName), zap.String("fallback", string(t.fallback)), zap.Int("number", n))
	}
	pc.StageNumber = n
	pc.StageName = stageName
	return n
}

// ForTable returns a Table when numbers is non-empty and Counter otherwise.
func ForTable(numbers map[string]int, fallback domain.StageFallback) Tracker {
	if len(numbers) == 0 {
		return Counter{}
	}
	return NewTable(numbers, fallback)
}
