package projector_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimflow/internal/domain"
	"claimflow/internal/projector"
	"claimflow/internal/resultstore"
	"claimflow/internal/storage/memory"
	"claimflow/internal/workflowconfig"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func raw(path string) workflowconfig.OutputField {
	return workflowconfig.OutputField{Path: path, Type: workflowconfig.TypeRaw}
}

func TestProjectVariables_ScoreFound(t *testing.T) {
	vars := map[string]any{}
	report := projector.ProjectVariables(decode(t, `{"score":{"score":42}}`),
		map[string]workflowconfig.OutputField{"score": raw("/score/score")}, vars)

	assert.Equal(t, int64(42), vars["score"])
	assert.Equal(t, []string{"score"}, report.Applied)
	assert.Empty(t, report.Skipped)
}

func TestProjectVariables_MissingPathIsSkipped(t *testing.T) {
	vars := map[string]any{}
	report := projector.ProjectVariables(decode(t, `{"score":{}}`),
		map[string]workflowconfig.OutputField{"score": raw("/score/score")}, vars)

	assert.NotContains(t, vars, "score")
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "score", report.Skipped[0].Name)
	assert.Equal(t, "/score/score", report.Skipped[0].Path)
}

func TestProjectVariables_SkipDoesNotAbortOthers(t *testing.T) {
	doc := decode(t, `{
		"rawResponse": "{\"answer\":{\"decisiondetails\":[{\"approved_amount\":\"1,250.60\"}],\"status\":\"APPROVED\"}}"
	}`)
	mapping := map[string]workflowconfig.OutputField{
		"approvedAmount": {Path: "$.rawResponse.answer.decisiondetails[0].approved_amount", Type: workflowconfig.TypeInteger},
		"status":         raw("/rawResponse/answer/status"),
		"outOfRange":     raw("/rawResponse/answer/decisiondetails/5/approved_amount"),
		"typeMismatch":   raw("/rawResponse/answer/status/0"),
		"badPath":        raw("$.rawResponse[answer"),
	}
	vars := map[string]any{}
	report := projector.ProjectVariables(doc, mapping, vars)

	assert.Equal(t, int64(1251), vars["approvedAmount"])
	assert.Equal(t, "APPROVED", vars["status"])
	assert.Len(t, report.Skipped, 3)
	assert.ElementsMatch(t, []string{"approvedAmount", "status"}, report.Applied)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		in   any
		typ  workflowconfig.ValueType
		want any
	}{
		{"raw integral float", float64(7), workflowconfig.TypeRaw, int64(7)},
		{"raw fraction", 7.25, workflowconfig.TypeRaw, 7.25},
		{"raw string kept", "7", workflowconfig.TypeRaw, "7"},
		{"raw object kept", map[string]any{"a": 1.0}, workflowconfig.TypeRaw, map[string]any{"a": 1.0}},
		{"integer rounds up", 2.5, workflowconfig.TypeInteger, int64(3)},
		{"integer rounds negative", -2.5, workflowconfig.TypeInteger, int64(-3)},
		{"integer from string", " 41.6 ", workflowconfig.TypeInteger, int64(42)},
		{"integer unparseable", "n/a", workflowconfig.TypeInteger, int64(0)},
		{"integer from bool", true, workflowconfig.TypeInteger, int64(0)},
		{"number from json.Number", json.Number("12.5"), workflowconfig.TypeNumber, 12.5},
		{"number integral string", "1,200", workflowconfig.TypeNumber, int64(1200)},
		{"number nil", nil, workflowconfig.TypeNumber, int64(0)},
		{"string from number", float64(1200), workflowconfig.TypeString, "1200"},
		{"string from object", map[string]any{"a": "b"}, workflowconfig.TypeString, `{"a":"b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, projector.Coerce(tt.in, tt.typ))
		})
	}
}

func TestProjectArtifacts_WrapsPrimitives(t *testing.T) {
	ctx := context.Background()
	mem := memory.New("b")
	store := resultstore.New(mem, resultstore.SimpleScheme{})
	pc := domain.PipelineContext{TenantID: "acme", WorkflowKey: "wf", TicketID: "T1", StageNumber: 4, StageName: "extraction"}

	doc := decode(t, `{"rawResponse":"{\"answer\":{\"Patient\":{\"name\":\"Bob\"},\"pages\":3}}"}`)
	keys, report, err := projector.ProjectArtifacts(ctx, store, pc, "extraction", doc, map[string]string{
		"patient": "$.rawResponse.answer.Patient",
		"pages":   "$.rawResponse.answer.pages",
		"missing": "$.rawResponse.answer.Vehicle",
	})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Len(t, report.Skipped, 1)

	patient, err := mem.Get(ctx, keys["patient"].String())
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Bob"}`, string(patient))

	pages, err := mem.Get(ctx, keys["pages"].String())
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":3}`, string(pages))
	assert.Equal(t, domain.StorageKey("acme/wf/T1/extraction/pages.json"), keys["pages"])
}

type failingWriter struct{}

func (failingWriter) Store(context.Context, domain.PipelineContext, string, string, any) (domain.StorageKey, error) {
	return "", &domain.StorageError{Op: "put", Key: "k", Err: errors.New("disk full")}
}

func TestProjectArtifacts_StorageFailureIsFatal(t *testing.T) {
	_, _, err := projector.ProjectArtifacts(context.Background(), failingWriter{}, domain.PipelineContext{}, "s",
		map[string]any{"a": "x"}, map[string]string{"a": "/a"})
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestEnvelopeDocument_BothPathStyles(t *testing.T) {
	env := &domain.ResultEnvelope{
		AgentID:     "scorer",
		StatusCode:  200,
		Success:     true,
		RawResponse: `{"score":{"score":42},"answer":{"decision":"approve"}}`,
	}
	doc := projector.EnvelopeDocument(env)

	vars := map[string]any{}
	report := projector.ProjectVariables(doc, map[string]workflowconfig.OutputField{
		"score":    raw("/score/score"),
		"decision": raw("$.rawResponse.answer.decision"),
		"legacy":   raw("$.apiResponse.answer.decision"),
		"agent":    raw("$.agentId"),
	}, vars)

	assert.Empty(t, report.Skipped)
	assert.Equal(t, int64(42), vars["score"])
	assert.Equal(t, "approve", vars["decision"])
	assert.Equal(t, "approve", vars["legacy"])
	assert.Equal(t, "scorer", vars["agent"])
}
