package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"claimflow/internal/domain"
	"claimflow/internal/port"
)

// MockAgentInvoker is a mock implementation of port.AgentInvoker.
type MockAgentInvoker struct {
	mock.Mock
}

func (m *MockAgentInvoker) Invoke(ctx context.Context, req port.AgentRequest) (*domain.ResultEnvelope, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResultEnvelope), args.Error(1)
}
