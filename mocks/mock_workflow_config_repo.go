package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockWorkflowConfigRepo is a mock implementation of port.WorkflowConfigRepository.
type MockWorkflowConfigRepo struct {
	mock.Mock
}

func (m *MockWorkflowConfigRepo) GetConfig(ctx context.Context, workflowKey, tenantID string) ([]byte, error) {
	args := m.Called(ctx, workflowKey, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockWorkflowConfigRepo) UpsertConfig(ctx context.Context, workflowKey, tenantID string, blob []byte) error {
	args := m.Called(ctx, workflowKey, tenantID, blob)
	return args.Error(0)
}
