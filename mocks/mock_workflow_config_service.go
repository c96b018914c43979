package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"claimflow/internal/service"
)

// MockWorkflowConfigService is a mock implementation of service.WorkflowConfigService.
type MockWorkflowConfigService struct {
	mock.Mock
}

func (m *MockWorkflowConfigService) Get(ctx context.Context, tenantID, workflowKey string) (*service.WorkflowConfigSummary, error) {
	args := m.Called(ctx, tenantID, workflowKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.WorkflowConfigSummary), args.Error(1)
}

func (m *MockWorkflowConfigService) Put(ctx context.Context, tenantID, workflowKey string, blob []byte) (*service.WorkflowConfigSummary, error) {
	args := m.Called(ctx, tenantID, workflowKey, blob)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.WorkflowConfigSummary), args.Error(1)
}
