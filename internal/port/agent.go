package port

import (
	"context"

	"claimflow/internal/domain"
	"claimflow/internal/workflowconfig"
)

// AgentRequest is one outbound agent call. Data becomes the "data" object of
// the request body.
type AgentRequest struct {
	TenantID string
	AgentID  string
	Endpoint workflowconfig.EndpointConfig
	Data     map[string]any
}

// AgentInvoker calls an external agent.
type AgentInvoker interface {
	Invoke(ctx context.Context, req AgentRequest) (*domain.ResultEnvelope, error)
}
