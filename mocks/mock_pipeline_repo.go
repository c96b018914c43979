package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"claimflow/internal/domain"
)

// MockPipelineRepo is a mock implementation of port.PipelineRepository.
type MockPipelineRepo struct {
	mock.Mock
}

func (m *MockPipelineRepo) Create(ctx context.Context, inst *domain.PipelineInstance) error {
	args := m.Called(ctx, inst)
	return args.Error(0)
}

func (m *MockPipelineRepo) GetByTicket(ctx context.Context, tenantID, ticketID string) (*domain.PipelineInstance, error) {
	args := m.Called(ctx, tenantID, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PipelineInstance), args.Error(1)
}

func (m *MockPipelineRepo) Update(ctx context.Context, inst *domain.PipelineInstance) error {
	args := m.Called(ctx, inst)
	return args.Error(0)
}
