package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"claimflow/internal/port"
)

// MockNotifier is a mock implementation of port.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendFollowUp(ctx context.Context, msg port.FollowUp) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
