package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"claimflow/internal/domain"
	"claimflow/internal/service"
)

// MockPipelineService is a mock implementation of service.PipelineService.
type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) StartTicket(ctx context.Context, input *service.StartTicketInput) (*domain.PipelineInstance, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PipelineInstance), args.Error(1)
}

func (m *MockPipelineService) UploadDocument(ctx context.Context, input *service.UploadDocumentInput) (domain.StorageKey, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(domain.StorageKey), args.Error(1)
}

func (m *MockPipelineService) RunAgent(ctx context.Context, input *service.RunAgentInput) (*service.AgentOutcome, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AgentOutcome), args.Error(1)
}

func (m *MockPipelineService) RunStage(ctx context.Context, input *service.RunStageInput) (*service.StageOutcome, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StageOutcome), args.Error(1)
}

func (m *MockPipelineService) RunScoring(ctx context.Context, input *service.RunScoringInput) (*service.AgentOutcome, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AgentOutcome), args.Error(1)
}

func (m *MockPipelineService) Consolidate(ctx context.Context, input *service.ConsolidateInput) (*service.ConsolidationOutcome, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ConsolidationOutcome), args.Error(1)
}

func (m *MockPipelineService) RunSteps(ctx context.Context, input *service.RunStepsInput) (*service.StepsOutcome, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StepsOutcome), args.Error(1)
}

func (m *MockPipelineService) Retrieve(ctx context.Context, input *service.RetrieveInput) (*domain.Retrieved, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Retrieved), args.Error(1)
}

func (m *MockPipelineService) GetTicket(ctx context.Context, tenantID, ticketID string) (*domain.PipelineInstance, error) {
	args := m.Called(ctx, tenantID, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PipelineInstance), args.Error(1)
}

func (m *MockPipelineService) ExportConsolidated(ctx context.Context, tenantID, ticketID, format string) (*service.ExportFile, error) {
	args := m.Called(ctx, tenantID, ticketID, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportFile), args.Error(1)
}
