package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTicketRepo is a mock implementation of port.TicketRepository.
type MockTicketRepo struct {
	mock.Mock
}

func (m *MockTicketRepo) NextTicketID(ctx context.Context, tenantID, prefix string) (string, error) {
	args := m.Called(ctx, tenantID, prefix)
	return args.String(0), args.Error(1)
}
