package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/port"
	"claimflow/internal/workflowconfig"
)

// WorkflowConfigSummary describes a stored configuration.
type WorkflowConfigSummary struct {
	WorkflowKey  string          `json:"workflowKey"`
	TicketPrefix string          `json:"ticketPrefix"`
	Agents       int             `json:"agents"`
	Scoring      []string        `json:"scoring"`
	Delegates    []string        `json:"delegates"`
	Config       json.RawMessage `json:"config,omitempty"`
}

// WorkflowConfigService manages the per-tenant workflow configuration blobs.
type WorkflowConfigService interface {
	Get(ctx context.Context, tenantID, workflowKey string) (*WorkflowConfigSummary, error)
	Put(ctx context.Context, tenantID, workflowKey string, blob []byte) (*WorkflowConfigSummary, error)
}

type workflowConfigService struct {
	repo  port.WorkflowConfigRepository
	cache *workflowconfig.Cache
}

// NewWorkflowConfigService creates a new WorkflowConfigService implementation.
func NewWorkflowConfigService(repo port.WorkflowConfigRepository, cache *workflowconfig.Cache) WorkflowConfigService {
	return &workflowConfigService{repo: repo, cache: cache}
}

func (s *workflowConfigService) Get(ctx context.Context, tenantID, workflowKey string) (*WorkflowConfigSummary, error) {
	blob, err := s.repo.GetConfig(ctx, workflowKey, tenantID)
	if err != nil {
		return nil, err
	}
	cfg, err := workflowconfig.Parse(tenantID, workflowKey, blob)
	if err != nil {
		return nil, err
	}
	return summarize(cfg, blob), nil
}

// Put validates blob by decoding it, stores it and drops the cached copy so the
// next pipeline call sees the new configuration.
func (s *workflowConfigService) Put(ctx context.Context, tenantID, workflowKey string, blob []byte) (*WorkflowConfigSummary, error) {
	if tenantID == "" || workflowKey == "" {
		return nil, fmt.Errorf("%w: tenant and workflow key are required", domain.ErrInvalidInput)
	}
	cfg, err := workflowconfig.Parse(tenantID, workflowKey, blob)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := s.repo.UpsertConfig(ctx, workflowKey, tenantID, blob); err != nil {
		return nil, fmt.Errorf("storing workflow config %s: %w", workflowKey, err)
	}
	if s.cache != nil {
		s.cache.Invalidate(tenantID, workflowKey)
	}

	zap.L().Info("workflowConfigService.Put: stored",
		zap.String("tenant_id", tenantID),
		zap.String("workflow_key", workflowKey),
		zap.Int("agents", len(cfg.Agents)))
	return summarize(cfg, nil), nil
}

func summarize(cfg *workflowconfig.WorkflowConfig, blob []byte) *WorkflowConfigSummary {
	out := &WorkflowConfigSummary{
		WorkflowKey:  cfg.WorkflowKey,
		TicketPrefix: cfg.TicketPrefix,
		Agents:       len(cfg.Agents),
		Scoring:      sortedKeys(cfg.Scoring),
		Delegates:    sortedKeys(cfg.Delegates),
	}
	if len(blob) > 0 {
		out.Config = json.RawMessage(blob)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
