package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockQueryRunner is a mock implementation of port.QueryRunner.
type MockQueryRunner struct {
	mock.Mock
}

func (m *MockQueryRunner) Query(ctx context.Context, query string, params ...any) ([]map[string]any, error) {
	args := m.Called(ctx, query, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}
