package consolidation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"claimflow/internal/domain"
	"claimflow/internal/jsonpath"
)

const defaultFetchConcurrency = 4

// Fetcher reads a stored result in normalized form. *resultstore.Store implements it.
type Fetcher interface {
	Retrieve(ctx context.Context, key domain.StorageKey) (*domain.Retrieved, error)
}

// Skipped records a document that did not contribute.
type Skipped struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// Result is the outcome of one consolidation run.
type Result struct {
	Structure   Structure `json:"structure"`
	Contributed []string  `json:"contributed"`
	Skipped     []Skipped `json:"skipped,omitempty"`
}

// SkipCount returns the number of documents that did not contribute.
func (r *Result) SkipCount() int { return len(r.Skipped) }

// Consolidator fetches each document's stored result and merges them.
type Consolidator struct {
	fetcher     Fetcher
	concurrency int
}

// NewConsolidator creates a consolidator fetching at most concurrency
// documents at a time.
func NewConsolidator(fetcher Fetcher, concurrency int) *Consolidator {
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	return &Consolidator{fetcher: fetcher, concurrency: concurrency}
}

type fetched struct {
	data map[string]any
	err  error
}

// Consolidate reads the sourceStage result of every document in state, extracts
// extractPath from each and merges them in discovery order. A document that
// cannot be read or parsed is skipped; the run fails only when none contributed.
func (c *Consolidator) Consolidate(ctx context.Context, state domain.PerDocumentState, sourceStage, extractPath string) (*Result, error) {
	path, err := jsonpath.Parse(extractPath)
	if err != nil {
		return nil, fmt.Errorf("consolidation extract path: %w", err)
	}

	docs := state.Documents
	slots := make([]fetched, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range docs {
		g.Go(func() error {
			slots[i] = c.fetch(gctx, docs[i], sourceStage, path)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	inputs := make([]DocumentResult, 0, len(docs))
	for i, doc := range docs {
		if slots[i].err != nil {
			result.Skipped = append(result.Skipped, Skipped{Filename: doc.Filename, Reason: slots[i].err.Error()})
			zap.L().Warn("consolidation.Consolidate: document skipped",
				zap.String("filename", doc.Filename), zap.Error(slots[i].err))
			continue
		}
		inputs = append(inputs, DocumentResult{Filename: doc.Filename, Data: slots[i].data})
		result.Contributed = append(result.Contributed, doc.Filename)
	}

	merged, err := Merge(inputs)
	if err != nil {
		return result, fmt.Errorf("consolidating %d documents (%d skipped): %w", len(docs), result.SkipCount(), err)
	}
	result.Structure = merged

	zap.L().Info("consolidation.Consolidate: merged",
		zap.Int("contributed", len(result.Contributed)), zap.Int("skipped", result.SkipCount()))
	return result, nil
}

var errNoStageResult = errors.New("no successful result for stage")

func (c *Consolidator) fetch(ctx context.Context, doc domain.DocumentEntry, sourceStage string, path jsonpath.Path) fetched {
	res, ok := doc.Stages[sourceStage]
	if !ok || !res.Success || res.StorageKey == "" {
		return fetched{err: fmt.Errorf("%w %q", errNoStageResult, sourceStage)}
	}
	retrieved, err := c.fetcher.Retrieve(ctx, domain.StorageKey(res.StorageKey))
	if err != nil {
		return fetched{err: err}
	}
	v, err := path.Lookup(retrieved.AsMap())
	if err != nil {
		return fetched{err: err}
	}
	data, ok := jsonpath.Expand(v).(map[string]any)
	if !ok {
		return fetched{err: fmt.Errorf("extracted value is %T, not an object", v)}
	}
	return fetched{data: data}
}
