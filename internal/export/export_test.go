package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleStructure() map[string]any {
	return map[string]any{
		"Patient": map[string]any{
			"name": "Robert Smith",
			"age":  float64(54),
		},
		"Invoice": map[string]any{
			"total":     float64(1520.5),
			"lineItems": []any{map[string]any{"code": "X1"}, map[string]any{"code": "X2"}},
			"paid":      nil,
		},
		"Notes": "see attachment",
	}
}

func TestFlatten_SortedLeaves(t *testing.T) {
	rows := Flatten(sampleStructure())

	assert.Equal(t, []Row{
		{DocumentType: "Invoice", Field: "lineItems.0.code", Value: "X1"},
		{DocumentType: "Invoice", Field: "lineItems.1.code", Value: "X2"},
		{DocumentType: "Invoice", Field: "paid", Value: ""},
		{DocumentType: "Invoice", Field: "total", Value: "1520.5"},
		{DocumentType: "Notes", Field: "", Value: "see attachment"},
		{DocumentType: "Patient", Field: "age", Value: "54"},
		{DocumentType: "Patient", Field: "name", Value: "Robert Smith"},
	}, rows)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Flatten(sampleStructure())))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, BOM))

	records, err := csv.NewReader(bytes.NewReader(out[len(BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 8)
	assert.Equal(t, []string{"Document Type", "Field", "Value"}, records[0])
	assert.Equal(t, []string{"Patient", "name", "Robert Smith"}, records[7])
}

func TestWriteXLSX(t *testing.T) {
	data, err := WriteXLSX(Flatten(sampleStructure()))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, []string{"Document Type", "Field", "Value"}, rows[0])
	assert.Equal(t, "Robert Smith", rows[7][2])
}

func TestBuildFilename(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "CLM000042_consolidated_2026-03-01.xlsx", BuildFilename("CLM000042", "xlsx", now))
	assert.Equal(t, "acme_CLM_1_consolidated_2026-03-01.csv", BuildFilename("acme/CLM 1", "csv", now))
}
