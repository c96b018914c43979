package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"claimflow/internal/agent"
	"claimflow/internal/domain"
	"claimflow/internal/export"
	"claimflow/internal/jsonpath"
	"claimflow/internal/placeholder"
	"claimflow/internal/port"
	"claimflow/internal/resultstore"
	"claimflow/internal/stage"
	"claimflow/internal/workflowconfig"
)

// Codes reported to the workflow engine for failures that are not tied to a
// configured agent.
const (
	CodeConfigurationMissing = "configurationMissing"
	CodeInvalidConfiguration = "invalidConfiguration"
	CodeStorageFailed        = "storageFailed"
	CodeConsolidationFailed  = "consolidationFailed"
)

const (
	idGenerationStage = "idGeneration"
	uploadStage       = "upload"

	// consolidatedKeyVariable holds the key of the latest consolidated artifact.
	consolidatedKeyVariable = "consolidatedDataKey"
	consolidationSkipVar    = "consolidationSkipCount"
)

// StartTicketInput is the ID-generation stage request.
type StartTicketInput struct {
	TenantID    string
	WorkflowKey string
	Filenames   []string
	Variables   map[string]any
}

// UploadDocumentInput carries one raw document.
type UploadDocumentInput struct {
	TenantID    string
	TicketID    string
	Filename    string
	ContentType string
	Body        []byte
}

// RunAgentInput invokes one configured agent. Filename is empty for
// ticket-level agents.
type RunAgentInput struct {
	TenantID  string
	TicketID  string
	StageName string
	AgentID   string
	Filename  string
	Loop      bool
}

// RunStageInput invokes every enabled agent of a stage in order.
type RunStageInput struct {
	TenantID  string
	TicketID  string
	StageName string
	Filename  string
	Loop      bool
}

// RunScoringInput invokes the scoring.<type> configuration.
type RunScoringInput struct {
	TenantID    string
	TicketID    string
	ScoringType string
	Loop        bool
}

// ConsolidateInput merges the per-document extraction results of a ticket.
type ConsolidateInput struct {
	TenantID string
	TicketID string
}

// RunStepsInput runs a generic delegate configuration.
type RunStepsInput struct {
	TenantID    string
	TicketID    string
	DelegateKey string
	StageName   string
	Loop        bool
}

// RetrieveInput reads a stored result, either by key or by recomputing the
// key of (stage, artifact). StageNumber defaults to the ticket's current stage.
type RetrieveInput struct {
	TenantID     string
	TicketID     string
	Key          domain.StorageKey
	StageName    string
	ArtifactName string
	StageNumber  *int
}

// AgentOutcome is the result of one agent call.
type AgentOutcome struct {
	AgentID     string                       `json:"agentId"`
	StageNumber int                          `json:"stageNumber"`
	StorageKey  domain.StorageKey            `json:"storageKey,omitempty"`
	Success     bool                         `json:"success"`
	Disabled    bool                         `json:"disabled,omitempty"`
	Error       string                       `json:"error,omitempty"`
	Variables   map[string]any               `json:"variables,omitempty"`
	Artifacts   map[string]domain.StorageKey `json:"artifacts,omitempty"`
	Skipped     []SkippedProjection          `json:"skipped,omitempty"`

	callErr error
}

// SkippedProjection is a response mapping that could not be applied.
type SkippedProjection struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// StageOutcome is the result of a stage fan-out.
type StageOutcome struct {
	StageName   string          `json:"stageName"`
	StageNumber int             `json:"stageNumber"`
	Agents      []*AgentOutcome `json:"agents"`
	Failed      int             `json:"failed"`
}

// ConsolidationOutcome is the result of a consolidation run.
type ConsolidationOutcome struct {
	StorageKey  domain.StorageKey `json:"storageKey"`
	StageNumber int               `json:"stageNumber"`
	Contributed []string          `json:"contributed"`
	Skipped     []SkippedDocument `json:"skipped,omitempty"`
	SkipCount   int               `json:"skipCount"`
	Structure   map[string]any    `json:"structure"`
}

// SkippedDocument is a document that did not contribute to consolidation.
type SkippedDocument struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// StepsOutcome is the result of a generic delegate run.
type StepsOutcome struct {
	DelegateKey string         `json:"delegateKey"`
	StageNumber int            `json:"stageNumber"`
	Steps       []string       `json:"steps"`
	Variables   map[string]any `json:"variables"`
}

// ExportFile is a rendered consolidated structure.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// PipelineService is the driver the workflow engine calls once per stage or document.
type PipelineService interface {
	StartTicket(ctx context.Context, input *StartTicketInput) (*domain.PipelineInstance, error)
	UploadDocument(ctx context.Context, input *UploadDocumentInput) (domain.StorageKey, error)
	RunAgent(ctx context.Context, input *RunAgentInput) (*AgentOutcome, error)
	RunStage(ctx context.Context, input *RunStageInput) (*StageOutcome, error)
	RunScoring(ctx context.Context, input *RunScoringInput) (*AgentOutcome, error)
	Consolidate(ctx context.Context, input *ConsolidateInput) (*ConsolidationOutcome, error)
	RunSteps(ctx context.Context, input *RunStepsInput) (*StepsOutcome, error)
	Retrieve(ctx context.Context, input *RetrieveInput) (*domain.Retrieved, error)
	GetTicket(ctx context.Context, tenantID, ticketID string) (*domain.PipelineInstance, error)
	ExportConsolidated(ctx context.Context, tenantID, ticketID, format string) (*ExportFile, error)
}

// PipelineDeps are the collaborators of PipelineService. FollowUps may be nil.
type PipelineDeps struct {
	Configs    *workflowconfig.Cache
	Tickets    port.TicketRepository
	Pipelines  port.PipelineRepository
	Storage    port.StorageResolver
	Invoker    port.AgentInvoker
	Queries    port.QueryRunner
	Properties placeholder.PropertySource
	FollowUps  *FollowUpScheduler
}

// PipelineOptions tune PipelineService.
type PipelineOptions struct {
	KeyScheme        resultstore.KeyScheme
	FetchConcurrency int
	MaxFileSize      int64
}

type pipelineService struct {
	configs   *workflowconfig.Cache
	tickets   port.TicketRepository
	pipelines port.PipelineRepository
	storage   port.StorageResolver
	invoker   port.AgentInvoker
	queries   port.QueryRunner
	props     placeholder.PropertySource
	followUps *FollowUpScheduler

	scheme           resultstore.KeyScheme
	fetchConcurrency int
	maxFileSize      int64

	payloads *agent.PayloadBuilder
	locks    *ticketLocks
	now      func() time.Time
}

// NewPipelineService creates a new PipelineService.
func NewPipelineService(deps PipelineDeps, opts PipelineOptions) PipelineService {
	return newPipelineService(deps, opts)
}

func newPipelineService(deps PipelineDeps, opts PipelineOptions) *pipelineService {
	return &pipelineService{
		configs:          deps.Configs,
		tickets:          deps.Tickets,
		pipelines:        deps.Pipelines,
		storage:          deps.Storage,
		invoker:          deps.Invoker,
		queries:          deps.Queries,
		props:            deps.Properties,
		followUps:        deps.FollowUps,
		scheme:           opts.KeyScheme,
		fetchConcurrency: opts.FetchConcurrency,
		maxFileSize:      opts.MaxFileSize,
		payloads:         agent.NewPayloadBuilder(),
		locks:            newTicketLocks(),
		now:              time.Now,
	}
}

// ticketRun is a lock-free snapshot of a ticket taken right after its stage
// was advanced.
type ticketRun struct {
	cfg   *workflowconfig.WorkflowConfig
	pc    domain.PipelineContext
	vars  placeholder.Vars
	docs  domain.PerDocumentState
	store *resultstore.Store
}

func (s *pipelineService) StartTicket(ctx context.Context, input *StartTicketInput) (*domain.PipelineInstance, error) {
	if input.TenantID == "" || input.WorkflowKey == "" {
		return nil, fmt.Errorf("%w: tenant and workflow key are required", domain.ErrInvalidInput)
	}
	cfg, err := s.configs.Get(ctx, input.TenantID, input.WorkflowKey)
	if err != nil {
		return nil, escalate(err)
	}

	ticketID, err := s.tickets.NextTicketID(ctx, input.TenantID, cfg.TicketPrefix)
	if err != nil {
		return nil, fmt.Errorf("issuing ticket id: %w", err)
	}

	now := s.now().UTC()
	inst := &domain.PipelineInstance{
		Context: domain.PipelineContext{
			TenantID:    input.TenantID,
			WorkflowKey: input.WorkflowKey,
			TicketID:    ticketID,
			StageNumber: 0,
			StageName:   idGenerationStage,
		},
		Variables: map[string]any{},
		Documents: domain.NewPerDocumentState(input.Filenames),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for k, v := range input.Variables {
		inst.Variables[k] = jsonpath.DeepCopy(v)
	}
	inst.Variables["ticketId"] = ticketID

	if err := s.pipelines.Create(ctx, inst); err != nil {
		return nil, fmt.Errorf("creating ticket %s: %w", ticketID, err)
	}

	if s.followUps != nil {
		s.followUps.Schedule(inst.Context)
	}

	zap.L().Info("pipelineService.StartTicket: ticket created",
		zap.String("tenant_id", input.TenantID),
		zap.String("workflow_key", input.WorkflowKey),
		zap.String("ticket_id", ticketID),
		zap.Int("documents", len(inst.Documents.Documents)))
	return inst, nil
}

func (s *pipelineService) UploadDocument(ctx context.Context, input *UploadDocumentInput) (domain.StorageKey, error) {
	if input.Filename == "" {
		return "", fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}
	if _, ok := domain.AllowedContentTypes[input.ContentType]; !ok {
		return "", domain.ErrUnsupportedFileType
	}
	if s.maxFileSize > 0 && int64(len(input.Body)) > s.maxFileSize {
		return "", domain.ErrFileTooLarge
	}

	unlock := s.locks.lock(input.TenantID, input.TicketID)
	defer unlock()

	inst, cfg, err := s.load(ctx, input.TenantID, input.TicketID)
	if err != nil {
		return "", err
	}
	store, err := s.resultStore(ctx, cfg)
	if err != nil {
		return "", escalate(err)
	}

	key, err := store.StoreDocument(ctx, inst.Context, domain.FolderUploaded, input.Filename, input.Body, input.ContentType)
	if err != nil {
		return "", escalate(err)
	}

	inst.Documents.Add(input.Filename)
	if err := inst.Documents.Record(input.Filename, uploadStage, domain.StageResult{
		StageNumber: inst.Context.StageNumber,
		StorageKey:  key.String(),
		Success:     true,
		RecordedAt:  s.now().UTC(),
	}); err != nil {
		return "", err
	}
	inst.UpdatedAt = s.now().UTC()
	if err := s.pipelines.Update(ctx, inst); err != nil {
		return "", fmt.Errorf("updating ticket %s: %w", input.TicketID, err)
	}

	zap.L().Info("pipelineService.UploadDocument: stored",
		zap.String("ticket_id", input.TicketID), zap.String("key", key.String()), zap.Int("bytes", len(input.Body)))
	return key, nil
}

func (s *pipelineService) GetTicket(ctx context.Context, tenantID, ticketID string) (*domain.PipelineInstance, error) {
	inst, err := s.pipelines.GetByTicket(ctx, tenantID, ticketID)
	if err != nil {
		return nil, fmt.Errorf("loading ticket %s: %w", ticketID, err)
	}
	return inst, nil
}

func (s *pipelineService) Retrieve(ctx context.Context, input *RetrieveInput) (*domain.Retrieved, error) {
	inst, cfg, err := s.load(ctx, input.TenantID, input.TicketID)
	if err != nil {
		return nil, err
	}
	store, err := s.resultStore(ctx, cfg)
	if err != nil {
		return nil, escalate(err)
	}

	key := input.Key
	if key == "" {
		if input.StageName == "" {
			return nil, fmt.Errorf("%w: key or stage name is required", domain.ErrInvalidInput)
		}
		pc := inst.Context
		if input.StageNumber != nil {
			pc.StageNumber = *input.StageNumber
		}
		key = store.Key(pc, input.StageName, input.ArtifactName)
	} else if !belongsTo(key, inst.Context) {
		return nil, fmt.Errorf("%w: key %s does not belong to ticket %s", domain.ErrForbidden, key, input.TicketID)
	}

	retrieved, err := store.Retrieve(ctx, key)
	if err != nil {
		if resultstore.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		return nil, escalate(err)
	}
	return retrieved, nil
}

func (s *pipelineService) ExportConsolidated(ctx context.Context, tenantID, ticketID, format string) (*ExportFile, error) {
	inst, cfg, err := s.load(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	key, _ := inst.Variables[consolidatedKeyVariable].(string)
	if key == "" {
		return nil, fmt.Errorf("%w: ticket %s has not been consolidated", domain.ErrNotFound, ticketID)
	}
	store, err := s.resultStore(ctx, cfg)
	if err != nil {
		return nil, escalate(err)
	}
	body, err := store.Raw(ctx, domain.StorageKey(key))
	if err != nil {
		return nil, escalate(err)
	}
	var structure map[string]any
	if err := json.Unmarshal(body, &structure); err != nil {
		return nil, fmt.Errorf("decoding consolidated structure %s: %w", key, err)
	}
	rows := export.Flatten(structure)

	switch strings.ToLower(format) {
	case "csv":
		var buf strings.Builder
		if err := export.WriteCSV(&buf, rows); err != nil {
			return nil, fmt.Errorf("writing csv: %w", err)
		}
		return &ExportFile{
			Filename:    export.BuildFilename(ticketID, "csv", s.now()),
			ContentType: "text/csv; charset=utf-8",
			Body:        []byte(buf.String()),
		}, nil
	case "", "xlsx":
		data, err := export.WriteXLSX(rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			Filename:    export.BuildFilename(ticketID, "xlsx", s.now()),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Body:        data,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidInput, format)
	}
}

// load reads a ticket and its workflow configuration.
func (s *pipelineService) load(ctx context.Context, tenantID, ticketID string) (*domain.PipelineInstance, *workflowconfig.WorkflowConfig, error) {
	inst, err := s.pipelines.GetByTicket(ctx, tenantID, ticketID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading ticket %s: %w", ticketID, err)
	}
	cfg, err := s.configs.Get(ctx, tenantID, inst.Context.WorkflowKey)
	if err != nil {
		return nil, nil, escalate(err)
	}
	return inst, cfg, nil
}

func (s *pipelineService) resultStore(ctx context.Context, cfg *workflowconfig.WorkflowConfig) (*resultstore.Store, error) {
	obj, err := s.storage.ForTenant(ctx, cfg.TenantID, port.StorageSelection{
		Provider: cfg.Storage.Provider,
		Bucket:   cfg.Storage.Bucket,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConfigurationMissing) || errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, &domain.StorageError{Op: "open", Key: cfg.TenantID, Err: err}
	}
	return resultstore.New(obj, s.scheme), nil
}

// advance moves the ticket to stageName under its lock, persists it and
// returns a snapshot. A loop call for a stage the ticket is not in yet starts
// that stage, so the first iteration of a parallel loop numbers it and the
// rest share the number. check runs before anything is changed.
func (s *pipelineService) advance(ctx context.Context, tenantID, ticketID, stageName string, loop bool,
	check func(*workflowconfig.WorkflowConfig, *domain.PipelineInstance) error) (*ticketRun, error) {
	if stageName == "" {
		return nil, fmt.Errorf("%w: stage name is required", domain.ErrInvalidInput)
	}

	unlock := s.locks.lock(tenantID, ticketID)
	defer unlock()

	inst, cfg, err := s.load(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(cfg, inst); err != nil {
			return nil, err
		}
	}
	store, err := s.resultStore(ctx, cfg)
	if err != nil {
		return nil, escalate(err)
	}

	before := inst.Context
	if loop && !strings.EqualFold(inst.Context.StageName, stageName) {
		zap.L().Debug("pipelineService.advance: first iteration starts stage",
			zap.String("ticket_id", ticketID), zap.String("stage", stageName))
		loop = false
	}
	stage.ForTable(cfg.Stages, cfg.StageFallback).Next(&inst.Context, stageName, loop)
	if inst.Context != before {
		inst.UpdatedAt = s.now().UTC()
		if err := s.pipelines.Update(ctx, inst); err != nil {
			return nil, fmt.Errorf("updating ticket %s: %w", ticketID, err)
		}
	}

	return &ticketRun{
		cfg:   cfg,
		pc:    inst.Context,
		vars:  snapshotVars(inst),
		docs:  copyState(inst.Documents),
		store: store,
	}, nil
}

// commit merges variable updates into the persisted ticket and applies record
// under the ticket lock.
func (s *pipelineService) commit(ctx context.Context, pc domain.PipelineContext, updates map[string]any,
	record func(*domain.PipelineInstance) error) error {
	unlock := s.locks.lock(pc.TenantID, pc.TicketID)
	defer unlock()

	inst, err := s.pipelines.GetByTicket(ctx, pc.TenantID, pc.TicketID)
	if err != nil {
		return fmt.Errorf("loading ticket %s: %w", pc.TicketID, err)
	}
	inst.MergeVariables(updates)
	if record != nil {
		if err := record(inst); err != nil {
			return err
		}
	}
	inst.UpdatedAt = s.now().UTC()
	if err := s.pipelines.Update(ctx, inst); err != nil {
		return fmt.Errorf("updating ticket %s: %w", pc.TicketID, err)
	}
	return nil
}

// snapshotVars copies the ticket variables and adds the context identifiers.
func snapshotVars(inst *domain.PipelineInstance) placeholder.Vars {
	vars := make(placeholder.Vars, len(inst.Variables)+5)
	for k, v := range inst.Variables {
		vars[k] = jsonpath.DeepCopy(v)
	}
	vars["tenantId"] = inst.Context.TenantID
	vars["workflowKey"] = inst.Context.WorkflowKey
	vars["ticketId"] = inst.Context.TicketID
	vars["stageNumber"] = inst.Context.StageNumber
	vars["stageName"] = inst.Context.StageName
	return vars
}

func copyState(st domain.PerDocumentState) domain.PerDocumentState {
	out := domain.PerDocumentState{Documents: make([]domain.DocumentEntry, len(st.Documents))}
	for i, d := range st.Documents {
		stages := make(map[string]domain.StageResult, len(d.Stages))
		for k, v := range d.Stages {
			stages[k] = v
		}
		out.Documents[i] = domain.DocumentEntry{Filename: d.Filename, Stages: stages}
	}
	return out
}

// belongsTo reports whether key has the tenant and ticket of pc as path segments.
func belongsTo(key domain.StorageKey, pc domain.PipelineContext) bool {
	var tenant, ticket bool
	for _, seg := range strings.Split(key.String(), "/") {
		switch seg {
		case pc.TenantID:
			tenant = true
		case pc.TicketID:
			ticket = true
		}
	}
	return tenant && ticket
}

// escalate turns configuration and storage failures into the StageError the
// workflow engine routes on. Other errors pass through.
func escalate(err error) error {
	var se *domain.StageError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return err
	case errors.Is(err, domain.ErrConfigurationMissing):
		return &domain.StageError{Code: CodeConfigurationMissing, Message: err.Error(), Err: err}
	case errors.Is(err, domain.ErrStorage):
		return &domain.StageError{Code: CodeStorageFailed, Message: err.Error(), Err: err}
	default:
		return err
	}
}

func invalidConfig(err error) error {
	return &domain.StageError{Code: CodeInvalidConfiguration, Message: err.Error(), Err: err}
}
