package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"claimflow/internal/domain"
	"claimflow/internal/placeholder"
	"claimflow/internal/port"
	"claimflow/internal/resultstore"
	"claimflow/internal/service"
	"claimflow/internal/storage/memory"
	"claimflow/internal/workflowconfig"
	"claimflow/mocks"
)

const (
	tenant   = "acme"
	workflow = "claims-intake"
	ticket   = "CLM000001"
)

const workflowBlob = `{
  "externalAPIs": {"agentAPI": {"baseUrl": "https://agents.test"}},
  "ticketPrefix": "CLM",
  "agents": [
    {"agentId": "classifier", "enabled": true, "order": 1, "stage": "classification",
     "config": {
       "endpoint": {"route": "/classify"},
       "inputMapping": {
         "staticFields": {"task": "classify"},
         "variableMapping": {"document.name": "fileName", "ticket": "ticketId"}
       },
       "outputMapping": {"docType": "$.rawResponse.answer.docType"},
       "artifactMapping": {"classification": "$.rawResponse.answer"},
       "errorHandling": {"onFailure": "classificationFailed"}
     }},
    {"agentId": "extractor", "enabled": true, "order": 1, "stage": "extraction",
     "config": {"endpoint": {"route": "/extract"}, "errorHandling": {"continueOnError": true}}},
    {"agentId": "fhirAnalyser", "enabled": true, "order": 2, "stage": "analysis",
     "config": {"outputMapping": {"fhirOk": "/answer/ok"}, "errorHandling": {"onFailure": "fhirAnalyserFailed"}}},
    {"agentId": "coherence", "enabled": true, "order": 1, "stage": "analysis",
     "config": {"outputMapping": {"coherent": "/answer/coherent"}, "errorHandling": {"continueOnError": true}}},
    {"agentId": "legacy", "enabled": false, "order": 3, "stage": "analysis"}
  ],
  "scoring": {
    "fraud": {
      "enabled": true,
      "requestTemplate": {"claim": "${ticketId}", "amount": "${amount}", "coherent": "${coherent}"},
      "responseMapping": {"fraudScore": {"path": "/score/score", "type": "integer"}},
      "errorHandling": {"onFailure": "fraudScoringFailed"}
    },
    "medical": {"enabled": false}
  },
  "genericWorkflowDelegateConfigurations": {
    "policyLookup": {
      "initialVariablesRootObj": ["policyNumber"],
      "steps": [
        {"type": "SetProcessVariables", "config": {"variables": {"policyRef": "POL-${policyNumber}", "claimAmount": "${amount}"}}},
        {"type": "SqlQueryExecution", "config": {"query": "SELECT holder FROM policies WHERE number = $1", "params": ["${policyNumber}"], "resultVariable": "policy", "singleRow": true}},
        {"type": "UploadToS3", "config": {"sourceVariable": "policy", "artifactName": "policy", "keyVariable": "policyKey"}}
      ]
    }
  },
  "consolidation": {"sourceStage": "extraction"}
}`

// memPipelines round-trips instances through JSON like the JSONB columns do.
type memPipelines struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemPipelines() *memPipelines { return &memPipelines{data: map[string][]byte{}} }

func (m *memPipelines) Create(_ context.Context, inst *domain.PipelineInstance) error {
	return m.put(inst, false)
}

func (m *memPipelines) Update(_ context.Context, inst *domain.PipelineInstance) error {
	return m.put(inst, true)
}

func (m *memPipelines) put(inst *domain.PipelineInstance, mustExist bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := inst.Context.TenantID + "/" + inst.Context.TicketID
	if _, ok := m.data[key]; ok != mustExist {
		if mustExist {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidInput
	}
	raw, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memPipelines) GetByTicket(_ context.Context, tenantID, ticketID string) (*domain.PipelineInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[tenantID+"/"+ticketID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var inst domain.PipelineInstance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

type fixture struct {
	svc       service.PipelineService
	invoker   *mocks.MockAgentInvoker
	queries   *mocks.MockQueryRunner
	tickets   *mocks.MockTicketRepo
	pipelines *memPipelines
	store     *memory.Store
}

func setupPipelineService(t *testing.T) *fixture {
	t.Helper()

	repo := new(mocks.MockWorkflowConfigRepo)
	repo.On("GetConfig", mock.Anything, workflow, tenant).Return([]byte(workflowBlob), nil)

	store := memory.New("claims-bucket")
	resolver := new(mocks.MockStorageResolver)
	resolver.On("ForTenant", mock.Anything, tenant, mock.Anything).Return(store, nil)

	tickets := new(mocks.MockTicketRepo)
	tickets.On("NextTicketID", mock.Anything, tenant, "CLM").Return(ticket, nil)

	f := &fixture{
		invoker:   new(mocks.MockAgentInvoker),
		queries:   new(mocks.MockQueryRunner),
		tickets:   tickets,
		pipelines: newMemPipelines(),
		store:     store,
	}
	f.svc = service.NewPipelineService(service.PipelineDeps{
		Configs:    workflowconfig.NewCache(repo, 8, time.Minute),
		Tickets:    tickets,
		Pipelines:  f.pipelines,
		Storage:    resolver,
		Invoker:    f.invoker,
		Queries:    f.queries,
		Properties: placeholder.Properties{},
	}, service.PipelineOptions{
		KeyScheme:        resultstore.NumberedScheme{RootFolder: "claims"},
		FetchConcurrency: 2,
		MaxFileSize:      1 << 20,
	})
	return f
}

func (f *fixture) start(t *testing.T, filenames ...string) {
	t.Helper()
	_, err := f.svc.StartTicket(context.Background(), &service.StartTicketInput{
		TenantID:    tenant,
		WorkflowKey: workflow,
		Filenames:   filenames,
		Variables:   map[string]any{"amount": float64(1500), "policyNumber": "P-9"},
	})
	require.NoError(t, err)
}

func (f *fixture) ticket(t *testing.T) *domain.PipelineInstance {
	t.Helper()
	inst, err := f.pipelines.GetByTicket(context.Background(), tenant, ticket)
	require.NoError(t, err)
	return inst
}

func agentIs(id string) any {
	return mock.MatchedBy(func(r port.AgentRequest) bool { return r.AgentID == id })
}

func okEnvelope(agentID, body string) *domain.ResultEnvelope {
	return &domain.ResultEnvelope{
		AgentID:     agentID,
		StatusCode:  200,
		Success:     true,
		RawResponse: body,
		Timestamp:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func callFailed(agentID string) error {
	return &domain.AgentCallFailedError{
		AgentID:    agentID,
		StatusCode: 500,
		Body:       `{"error":"overloaded"}`,
		Err:        errors.New("Internal Server Error"),
	}
}

func stageCode(t *testing.T, err error) string {
	t.Helper()
	var se *domain.StageError
	require.True(t, errors.As(err, &se), "expected StageError, got %v", err)
	return se.Code
}

// --- StartTicket ---

func TestPipelineService_StartTicket(t *testing.T) {
	f := setupPipelineService(t)

	inst, err := f.svc.StartTicket(context.Background(), &service.StartTicketInput{
		TenantID:    tenant,
		WorkflowKey: workflow,
		Filenames:   []string{"bill.pdf", "id.png", "bill.pdf"},
	})
	require.NoError(t, err)

	assert.Equal(t, ticket, inst.Context.TicketID)
	assert.Equal(t, 0, inst.Context.StageNumber)
	assert.Equal(t, []string{"bill.pdf", "id.png"}, inst.Documents.Filenames())
	assert.Equal(t, ticket, inst.Variables["ticketId"])
	f.tickets.AssertExpectations(t)
}

func TestPipelineService_StartTicket_UnknownWorkflow(t *testing.T) {
	f := setupPipelineService(t)

	repo := new(mocks.MockWorkflowConfigRepo)
	repo.On("GetConfig", mock.Anything, "motor", tenant).Return(nil, domain.ErrNotFound)
	svc := service.NewPipelineService(service.PipelineDeps{
		Configs:   workflowconfig.NewCache(repo, 8, time.Minute),
		Tickets:   f.tickets,
		Pipelines: f.pipelines,
	}, service.PipelineOptions{})

	_, err := svc.StartTicket(context.Background(), &service.StartTicketInput{TenantID: tenant, WorkflowKey: "motor"})
	assert.Equal(t, service.CodeConfigurationMissing, stageCode(t, err))
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
}

// --- UploadDocument ---

func TestPipelineService_UploadDocument(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t, "bill.pdf")

	key, err := f.svc.UploadDocument(context.Background(), &service.UploadDocumentInput{
		TenantID:    tenant,
		TicketID:    ticket,
		Filename:    "scan 2.png",
		ContentType: "image/png",
		Body:        []byte("png-bytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StorageKey("claims/acme/claims-intake/CLM000001/0_idGeneration/userdoc/uploaded/scan_2.png"), key)
	assert.Equal(t, "image/png", f.store.ContentType(key.String()))

	inst := f.ticket(t)
	assert.Equal(t, []string{"bill.pdf", "scan 2.png"}, inst.Documents.Filenames())
	assert.True(t, inst.Documents.Get("scan 2.png").Stages["upload"].Success)
}

func TestPipelineService_UploadDocument_Rejects(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t)

	_, err := f.svc.UploadDocument(context.Background(), &service.UploadDocumentInput{
		TenantID: tenant, TicketID: ticket, Filename: "a.exe", ContentType: "application/x-msdownload", Body: []byte("x"),
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)

	_, err = f.svc.UploadDocument(context.Background(), &service.UploadDocumentInput{
		TenantID: tenant, TicketID: ticket, Filename: "big.pdf", ContentType: "application/pdf", Body: make([]byte, 2<<20),
	})
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)

	_, err = f.svc.UploadDocument(context.Background(), &service.UploadDocumentInput{
		TenantID: tenant, TicketID: "CLM999999", Filename: "a.pdf", ContentType: "application/pdf", Body: []byte("x"),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// --- RunAgent ---

func TestPipelineService_RunAgent_Success(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t, "bill.pdf")

	var got port.AgentRequest
	f.invoker.On("Invoke", mock.Anything, agentIs("classifier")).
		Run(func(args mock.Arguments) { got = args.Get(1).(port.AgentRequest) }).
		Return(okEnvelope("classifier", `{"answer":{"docType":"Invoice","confidence":0.93}}`), nil)

	out, err := f.svc.RunAgent(context.Background(), &service.RunAgentInput{
		TenantID: tenant, TicketID: ticket, StageName: "classification", AgentID: "classifier", Filename: "bill.pdf",
	})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, 1, out.StageNumber)
	assert.Equal(t, domain.StorageKey("claims/acme/claims-intake/CLM000001/1_classification/task-docs/bill.pdf_classifier.json"), out.StorageKey)
	assert.Equal(t, "Invoice", out.Variables["docType"])
	assert.Equal(t, domain.StorageKey("claims/acme/claims-intake/CLM000001/1_classification/task-docs/classification.json"), out.Artifacts["classification"])

	assert.Equal(t, "https://agents.test/classify", got.Endpoint.URL())
	assert.Equal(t, tenant, got.TenantID)
	assert.Equal(t, "classify", got.Data["task"])
	assert.Equal(t, map[string]any{"name": "bill.pdf"}, got.Data["document"])
	assert.Equal(t, ticket, got.Data["ticket"])

	raw, err := f.store.Get(context.Background(), out.StorageKey.String())
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, map[string]any{"docType": "Invoice"}, stored["extractedData"])

	inst := f.ticket(t)
	assert.Equal(t, "Invoice", inst.Variables["docType"])
	assert.Equal(t, 1, inst.Context.StageNumber)
	res := inst.Documents.Get("bill.pdf").Stages["classification"]
	assert.True(t, res.Success)
	assert.Equal(t, out.StorageKey.String(), res.StorageKey)
}

func TestPipelineService_RunAgent_FailureIsStageError(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t, "bill.pdf")
	f.invoker.On("Invoke", mock.Anything, agentIs("classifier")).Return(nil, callFailed("classifier"))

	_, err := f.svc.RunAgent(context.Background(), &service.RunAgentInput{
		TenantID: tenant, TicketID: ticket, StageName: "classification", AgentID: "classifier", Filename: "bill.pdf",
	})
	assert.Equal(t, "classificationFailed", stageCode(t, err))
	assert.ErrorIs(t, err, domain.ErrAgentCallFailed)

	res := f.ticket(t).Documents.Get("bill.pdf").Stages["classification"]
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "status 500")
}

func TestPipelineService_RunAgent_ContinueOnError(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t, "bill.pdf")
	f.invoker.On("Invoke", mock.Anything, agentIs("extractor")).Return(nil, callFailed("extractor"))

	out, err := f.svc.RunAgent(context.Background(), &service.RunAgentInput{
		TenantID: tenant, TicketID: ticket, StageName: "extraction", AgentID: "extractor", Filename: "bill.pdf",
	})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Error)
}

func TestPipelineService_RunAgent_DisabledAndUnknown(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t, "bill.pdf")

	out, err := f.svc.RunAgent(context.Background(), &service.RunAgentInput{
		TenantID: tenant, TicketID: ticket, StageName: "analysis", AgentID: "legacy",
	})
	require.NoError(t, err)
	assert.True(t, out.Disabled)
	assert.Equal(t, 0, f.ticket(t).Context.StageNumber)

	_, err = f.svc.RunAgent(context.Background(), &service.RunAgentInput{
		TenantID: tenant, TicketID: ticket, StageName: "analysis", AgentID: "ghost",
	})
	assert.Equal(t, service.CodeConfigurationMissing, stageCode(t, err))

	_, err = f.svc.RunAgent(context.Background(), &service.RunAgentInput{
		TenantID: tenant, TicketID: ticket, StageName: "classification", AgentID: "classifier", Filename: "other.pdf",
	})
	assert.ErrorIs(t, err, domain.ErrUnknownDocument)
	f.invoker.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestPipelineService_RunAgent_LoopIterationsShareStageNumber(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t, "a.pdf", "b.pdf", "c.pdf")
	f.invoker.On("Invoke", mock.Anything, agentIs("extractor")).Return(okEnvelope("extractor", `{"answer":{}}`), nil)
	f.invoker.On("Invoke", mock.Anything, agentIs("classifier")).Return(okEnvelope("classifier", `{"answer":{"docType":"Bill"}}`), nil)

	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		out, err := f.svc.RunAgent(context.Background(), &service.RunAgentInput{
			TenantID: tenant, TicketID: ticket, StageName: "extraction", AgentID: "extractor", Filename: name, Loop: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, out.StageNumber, name)
	}

	out, err := f.svc.RunAgent(context.Background(), &service.RunAgentInput{
		TenantID: tenant, TicketID: ticket, StageName: "classification", AgentID: "classifier",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.StageNumber)
}

func TestPipelineService_RunAgent_ParallelDocumentsKeepEveryResult(t *testing.T) {
	f := setupPipelineService(t)
	names := make([]string, 8)
	for i := range names {
		names[i] = fmt.Sprintf("doc-%d.pdf", i)
	}
	f.start(t, names...)
	f.invoker.On("Invoke", mock.Anything, agentIs("extractor")).Return(okEnvelope("extractor", `{"answer":{"Claim":{"id":"1"}}}`), nil)

	var wg sync.WaitGroup
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.RunAgent(context.Background(), &service.RunAgentInput{
				TenantID: tenant, TicketID: ticket, StageName: "extraction", AgentID: "extractor", Filename: name, Loop: true,
			})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	inst := f.ticket(t)
	assert.Equal(t, 1, inst.Context.StageNumber)
	for _, name := range names {
		res, ok := inst.Documents.Get(name).Stages["extraction"]
		require.True(t, ok, name)
		assert.True(t, res.Success)
		assert.Equal(t, 1, res.StageNumber)
	}
}

// --- RunStage ---

func TestPipelineService_RunStage_OrderedFanOut(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t, "bill.pdf")

	var order []string
	record := func(args mock.Arguments) { order = append(order, args.Get(1).(port.AgentRequest).AgentID) }
	f.invoker.On("Invoke", mock.Anything, agentIs("coherence")).Run(record).
		Return(nil, callFailed("coherence"))
	f.invoker.On("Invoke", mock.Anything, agentIs("fhirAnalyser")).Run(record).
		Return(okEnvelope("fhirAnalyser", `{"answer":{"ok":true}}`), nil)

	out, err := f.svc.RunStage(context.Background(), &service.RunStageInput{
		TenantID: tenant, TicketID: ticket, StageName: "analysis", Filename: "bill.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"coherence", "fhirAnalyser"}, order)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Agents, 2)
	assert.Equal(t, out.Agents[0].StageNumber, out.Agents[1].StageNumber)

	inst := f.ticket(t)
	assert.Equal(t, true, inst.Variables["fhirOk"])
	res := inst.Documents.Get("bill.pdf").Stages["analysis"]
	assert.True(t, res.Success)
	assert.Equal(t, "fhirAnalyser", res.AgentID)
}

func TestPipelineService_RunStage_AllFailedEscalates(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t, "bill.pdf")
	f.invoker.On("Invoke", mock.Anything, agentIs("coherence")).Return(nil, callFailed("coherence"))
	f.invoker.On("Invoke", mock.Anything, agentIs("fhirAnalyser")).Return(nil, callFailed("fhirAnalyser"))

	_, err := f.svc.RunStage(context.Background(), &service.RunStageInput{
		TenantID: tenant, TicketID: ticket, StageName: "analysis", Filename: "bill.pdf",
	})
	assert.Equal(t, "fhirAnalyserFailed", stageCode(t, err))
	assert.False(t, f.ticket(t).Documents.Get("bill.pdf").Stages["analysis"].Success)
}

func TestPipelineService_RunStage_NoAgents(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t)

	_, err := f.svc.RunStage(context.Background(), &service.RunStageInput{TenantID: tenant, TicketID: ticket, StageName: "review"})
	assert.Equal(t, service.CodeConfigurationMissing, stageCode(t, err))
}

// --- RunScoring ---

func TestPipelineService_RunScoring(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t)

	var got port.AgentRequest
	f.invoker.On("Invoke", mock.Anything, agentIs("scoring_fraud")).
		Run(func(args mock.Arguments) { got = args.Get(1).(port.AgentRequest) }).
		Return(okEnvelope("scoring_fraud", `{"score":{"score":87.6}}`), nil)

	out, err := f.svc.RunScoring(context.Background(), &service.RunScoringInput{TenantID: tenant, TicketID: ticket, ScoringType: "fraud"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"claim": ticket, "amount": "1500", "coherent": "${coherent}"}, got.Data)
	assert.Equal(t, int64(88), out.Variables["fraudScore"])
	assert.Equal(t, domain.StorageKey("claims/acme/claims-intake/CLM000001/1_scoring/task-docs/scoring_fraud.json"), out.StorageKey)
	assert.Equal(t, float64(88), f.ticket(t).Variables["fraudScore"])
}

func TestPipelineService_RunScoring_DisabledAndFailing(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t)

	out, err := f.svc.RunScoring(context.Background(), &service.RunScoringInput{TenantID: tenant, TicketID: ticket, ScoringType: "medical"})
	require.NoError(t, err)
	assert.True(t, out.Disabled)

	f.invoker.On("Invoke", mock.Anything, agentIs("scoring_fraud")).Return(nil, callFailed("scoring_fraud"))
	_, err = f.svc.RunScoring(context.Background(), &service.RunScoringInput{TenantID: tenant, TicketID: ticket, ScoringType: "fraud"})
	assert.Equal(t, "fraudScoringFailed", stageCode(t, err))
}

// --- Consolidate ---

func (f *fixture) extract(t *testing.T, answers map[string]string, order ...string) {
	t.Helper()
	for _, name := range order {
		body, ok := answers[name]
		call := f.invoker.On("Invoke", mock.Anything, agentIs("extractor")).Once()
		if ok {
			call.Return(okEnvelope("extractor", body), nil)
		} else {
			call.Return(nil, callFailed("extractor"))
		}
		_, err := f.svc.RunAgent(context.Background(), &service.RunAgentInput{
			TenantID: tenant, TicketID: ticket, StageName: "extraction", AgentID: "extractor", Filename: name, Loop: true,
		})
		require.NoError(t, err)
	}
}

func TestPipelineService_Consolidate(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t, "a.pdf", "b.pdf", "c.pdf")
	f.extract(t, map[string]string{
		"a.pdf": `{"answer":{"Patient":{"name":"Bob","dob":null},"Invoice":{"total":"1200"}}}`,
		"b.pdf": `{"answer":{"Patient":{"name":"Robert Smith","dob":"1970-01-01"}}}`,
	}, "a.pdf", "b.pdf", "c.pdf")

	out, err := f.svc.Consolidate(context.Background(), &service.ConsolidateInput{TenantID: tenant, TicketID: ticket})
	require.NoError(t, err)

	assert.Equal(t, domain.StorageKey("claims/acme/claims-intake/CLM000001/2_consolidation/task-docs/consolidated.json"), out.StorageKey)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, out.Contributed)
	assert.Equal(t, 1, out.SkipCount)
	assert.Equal(t, "c.pdf", out.Skipped[0].Filename)
	assert.Equal(t, map[string]any{"name": "Robert Smith", "dob": "1970-01-01"}, out.Structure["Patient"])
	assert.Equal(t, map[string]any{"total": "1200"}, out.Structure["Invoice"])

	inst := f.ticket(t)
	assert.Equal(t, out.StorageKey.String(), inst.Variables["consolidatedDataKey"])
	assert.Equal(t, float64(1), inst.Variables["consolidationSkipCount"])

	file, err := f.svc.ExportConsolidated(context.Background(), tenant, ticket, "csv")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.Contains(t, string(file.Body), "Patient,name,Robert Smith")

	file, err = f.svc.ExportConsolidated(context.Background(), tenant, ticket, "xlsx")
	require.NoError(t, err)
	assert.NotEmpty(t, file.Body)
}

func TestPipelineService_Consolidate_NothingToMerge(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t, "a.pdf", "b.pdf")
	f.extract(t, map[string]string{}, "a.pdf", "b.pdf")

	_, err := f.svc.Consolidate(context.Background(), &service.ConsolidateInput{TenantID: tenant, TicketID: ticket})
	assert.Equal(t, service.CodeConsolidationFailed, stageCode(t, err))
	assert.ErrorIs(t, err, domain.ErrNothingToMerge)

	_, err = f.svc.ExportConsolidated(context.Background(), tenant, ticket, "xlsx")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// --- RunSteps ---

func TestPipelineService_RunSteps(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t)
	f.queries.On("Query", mock.Anything, "SELECT holder FROM policies WHERE number = $1", []any{"P-9"}).
		Return([]map[string]any{{"holder": "Robert Smith"}}, nil)

	out, err := f.svc.RunSteps(context.Background(), &service.RunStepsInput{
		TenantID: tenant, TicketID: ticket, DelegateKey: "policyLookup",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"SetProcessVariables-0", "SqlQueryExecution-1", "UploadToS3-2"}, out.Steps)
	assert.Equal(t, "POL-P-9", out.Variables["policyRef"])
	assert.Equal(t, float64(1500), out.Variables["claimAmount"])
	assert.Equal(t, map[string]any{"holder": "Robert Smith"}, out.Variables["policy"])

	key := out.Variables["policyKey"].(string)
	assert.Equal(t, "claims/acme/claims-intake/CLM000001/1_policyLookup/task-docs/policy.json", key)
	raw, err := f.store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"holder":"Robert Smith"}`, string(raw))
}

func TestPipelineService_RunSteps_Failures(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t)

	_, err := f.svc.RunSteps(context.Background(), &service.RunStepsInput{TenantID: tenant, TicketID: ticket, DelegateKey: "unknown"})
	assert.Equal(t, service.CodeConfigurationMissing, stageCode(t, err))

	f.queries.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("relation does not exist"))
	_, err = f.svc.RunSteps(context.Background(), &service.RunStepsInput{TenantID: tenant, TicketID: ticket, DelegateKey: "policyLookup"})
	assert.Equal(t, "policyLookupFailed", stageCode(t, err))
}

// --- Retrieve ---

func TestPipelineService_Retrieve(t *testing.T) {
	f := setupPipelineService(t)
	f.start(t, "bill.pdf")
	f.invoker.On("Invoke", mock.Anything, agentIs("classifier")).
		Return(okEnvelope("classifier", `{"answer":{"docType":"Invoice"}}`), nil)

	out, err := f.svc.RunAgent(context.Background(), &service.RunAgentInput{
		TenantID: tenant, TicketID: ticket, StageName: "classification", AgentID: "classifier",
	})
	require.NoError(t, err)

	byKey, err := f.svc.Retrieve(context.Background(), &service.RetrieveInput{TenantID: tenant, TicketID: ticket, Key: out.StorageKey})
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":{"docType":"Invoice"}}`, byKey.APIResponse)
	assert.Equal(t, 200, byKey.StatusCode)

	stageNo := 1
	byName, err := f.svc.Retrieve(context.Background(), &service.RetrieveInput{
		TenantID: tenant, TicketID: ticket, StageName: "classification", ArtifactName: "classifier", StageNumber: &stageNo,
	})
	require.NoError(t, err)
	assert.Equal(t, byKey.APIResponse, byName.APIResponse)

	_, err = f.svc.Retrieve(context.Background(), &service.RetrieveInput{
		TenantID: tenant, TicketID: ticket, Key: "claims/acme/claims-intake/CLM000777/1_x/task-docs/y.json",
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Retrieve(context.Background(), &service.RetrieveInput{
		TenantID: tenant, TicketID: ticket, Key: "claims/acme/claims-intake/CLM000001/9_x/task-docs/missing.json",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
