package workflowconfig_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimflow/internal/domain"
	"claimflow/internal/workflowconfig"
)

const sampleBlob = `{
  "externalAPIs": {
    "agentAPI": {"baseUrl": "https://agents.example.com/", "route": "invoke", "authMethod": "basic", "providerPrefix": "agents"}
  },
  "agents": [
    {"agentId": "ocr", "displayName": "OCR", "enabled": true, "order": 2, "stage": "ocr",
     "config": {"outputMapping": {"ocrText": "$.rawResponse.answer", "pages": {"path": "/answer/pages", "type": "integer"}}}},
    {"agentId": "classifier", "enabled": true, "order": 1, "stage": "OCR",
     "config": {"endpoint": {"route": "/classify", "successCode": 201}, "errorHandling": {"onFailure": "classificationFailed"}}},
    {"agentId": "forgery", "enabled": false, "order": 0, "stage": "ocr"}
  ],
  "scoring": {"claim": {"enabled": true, "requestTemplate": {"ticket": "${ticketId}"}, "responseMapping": {"score": "/score/score"}}},
  "genericWorkflowDelegateConfigurations": {
    "prepareReview": {
      "initialVariablesRootObj": ["ticketId"],
      "steps": [
        {"type": "SetProcessVariables", "name": "flags", "config": {"variables": {"reviewRequired": "true"}}},
        {"type": "SqlQueryExecution", "config": {"query": "SELECT 1", "resultVariable": "one", "singleRow": true}},
        {"type": "UploadToS3", "config": {"sourceVariable": "summary", "artifactName": "summary"}}
      ]
    }
  },
  "stages": {"idGeneration": 1, "forgeryCheck": 2}
}`

func TestParse_DecodesAllSections(t *testing.T) {
	cfg, err := workflowconfig.Parse("acme", "claims", []byte(sampleBlob))
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.TenantID)
	assert.Equal(t, "CLM", cfg.TicketPrefix)
	assert.Equal(t, domain.StageFallbackPrevious, cfg.StageFallback)
	assert.Equal(t, 200, cfg.ExternalAPIs.AgentAPI.SuccessCode)
	assert.Equal(t, "$.apiResponse.answer", cfg.Consolidation.ExtractPath)

	ocr, err := cfg.Agent("ocr")
	require.NoError(t, err)
	assert.Equal(t, workflowconfig.OutputField{Path: "$.rawResponse.answer", Type: workflowconfig.TypeRaw}, ocr.Config.OutputMapping["ocrText"])
	assert.Equal(t, workflowconfig.TypeInteger, ocr.Config.OutputMapping["pages"].Type)

	sc, err := cfg.ScoringFor("claim")
	require.NoError(t, err)
	assert.True(t, sc.Enabled)
	assert.Equal(t, "/score/score", sc.ResponseMapping["score"].Path)
}

func TestAgentsForStage_EnabledSortedCaseInsensitive(t *testing.T) {
	cfg, err := workflowconfig.Parse("acme", "claims", []byte(sampleBlob))
	require.NoError(t, err)

	agents := cfg.AgentsForStage("ocr")
	require.Len(t, agents, 2)
	assert.Equal(t, "classifier", agents[0].AgentID)
	assert.Equal(t, "ocr", agents[1].AgentID)
}

func TestEndpoint_OverridesMergeOverAgentAPI(t *testing.T) {
	cfg, err := workflowconfig.Parse("acme", "claims", []byte(sampleBlob))
	require.NoError(t, err)
	classifier, err := cfg.Agent("classifier")
	require.NoError(t, err)

	ep := cfg.Endpoint(classifier.Config.Endpoint)
	assert.Equal(t, "https://agents.example.com/classify", ep.URL())
	assert.Equal(t, 201, ep.SuccessCode)
	assert.Equal(t, domain.AuthBasic, ep.AuthMethod)
	assert.Equal(t, "classificationFailed", classifier.Config.ErrorHandling.FailureCode("classifier"))

	ocr, _ := cfg.Agent("ocr")
	assert.Equal(t, "ocrFailed", ocr.Config.ErrorHandling.FailureCode("ocr"))
}

func TestDelegate_StepsDecodedIntoVariants(t *testing.T) {
	cfg, err := workflowconfig.Parse("acme", "claims", []byte(sampleBlob))
	require.NoError(t, err)

	d, err := cfg.Delegate("prepareReview")
	require.NoError(t, err)
	assert.Equal(t, []string{"ticketId"}, d.InitialVariablesRootObj)
	require.Len(t, d.Steps, 3)

	setVars, ok := d.Steps[0].(*workflowconfig.SetVariablesStep)
	require.True(t, ok)
	assert.Equal(t, "flags", setVars.StepName())

	sqlStep, ok := d.Steps[1].(*workflowconfig.SQLQueryStep)
	require.True(t, ok)
	assert.True(t, sqlStep.SingleRow)
	assert.Equal(t, "SqlQueryExecution-1", sqlStep.StepName())

	upload, ok := d.Steps[2].(*workflowconfig.UploadStep)
	require.True(t, ok)
	assert.Equal(t, domain.FolderTaskDocs, upload.FolderRole)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"bad json", `{`},
		{"missing agent id", `{"agents":[{"displayName":"x"}]}`},
		{"duplicate agent", `{"agents":[{"agentId":"a"},{"agentId":"a"}]}`},
		{"unknown step", `{"genericWorkflowDelegateConfigurations":{"k":{"steps":[{"type":"Teleport"}]}}}`},
		{"sql step without query", `{"genericWorkflowDelegateConfigurations":{"k":{"steps":[{"type":"SqlQueryExecution","config":{}}]}}}`},
		{"bad fallback", `{"stageFallback":"random"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := workflowconfig.Parse("acme", "claims", []byte(tt.blob))
			assert.Error(t, err)
		})
	}
}

func TestLookups_MissingAreConfigurationErrors(t *testing.T) {
	cfg, err := workflowconfig.Parse("acme", "claims", []byte(`{}`))
	require.NoError(t, err)

	_, err = cfg.Agent("nope")
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
	_, err = cfg.ScoringFor("nope")
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
	_, err = cfg.Delegate("nope")
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
}

type countingLoader struct {
	blob  []byte
	err   error
	calls int
}

func (l *countingLoader) GetConfig(_ context.Context, _, _ string) ([]byte, error) {
	l.calls++
	return l.blob, l.err
}

func TestCache_LoadsOnceAndInvalidates(t *testing.T) {
	loader := &countingLoader{blob: []byte(sampleBlob)}
	cache := workflowconfig.NewCache(loader, 4, time.Minute)

	first, err := cache.Get(context.Background(), "acme", "claims")
	require.NoError(t, err)
	second, err := cache.Get(context.Background(), "acme", "claims")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, loader.calls)

	cache.Invalidate("acme", "claims")
	_, err = cache.Get(context.Background(), "acme", "claims")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestCache_MissingConfig(t *testing.T) {
	loader := &countingLoader{err: domain.ErrNotFound}
	cache := workflowconfig.NewCache(loader, 4, time.Minute)

	_, err := cache.Get(context.Background(), "acme", "claims")
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)

	var missing *domain.ConfigurationMissingError
	assert.True(t, errors.As(err, &missing))
}
