package port

import (
	"context"

	"claimflow/internal/domain"
)

// WorkflowConfigRepository stores raw workflow configuration blobs keyed by
// (workflowKey, tenantID).
type WorkflowConfigRepository interface {
	GetConfig(ctx context.Context, workflowKey, tenantID string) ([]byte, error)
	UpsertConfig(ctx context.Context, workflowKey, tenantID string, blob []byte) error
}

// TicketRepository issues ticket identifiers.
type TicketRepository interface {
	NextTicketID(ctx context.Context, tenantID, prefix string) (string, error)
}

// PipelineRepository persists pipeline instances.
type PipelineRepository interface {
	Create(ctx context.Context, inst *domain.PipelineInstance) error
	GetByTicket(ctx context.Context, tenantID, ticketID string) (*domain.PipelineInstance, error)
	Update(ctx context.Context, inst *domain.PipelineInstance) error
}

// QueryRunner executes configured read queries. Each row is a column-name map.
type QueryRunner interface {
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}
