package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"claimflow/internal/port"
)

// MockStorageResolver is a mock implementation of port.StorageResolver.
type MockStorageResolver struct {
	mock.Mock
}

func (m *MockStorageResolver) ForTenant(ctx context.Context, tenantID string, sel port.StorageSelection) (port.ObjectStorage, error) {
	args := m.Called(ctx, tenantID, sel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(port.ObjectStorage), args.Error(1)
}
