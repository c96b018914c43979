package stage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"claimflow/internal/domain"
	"claimflow/internal/stage"
)

func TestCounter_LoopIterationsShareNumber(t *testing.T) {
	pc := &domain.PipelineContext{}
	var c stage.Counter

	first := c.Next(pc, "classification", false)
	assert.Equal(t, 1, first)

	for i := 0; i < 3; i++ {
		assert.Equal(t, first, c.Next(pc, "classification", true))
	}
	assert.Equal(t, first+1, c.Next(pc, "ocr", false))
	assert.Equal(t, "ocr", pc.StageName)
}

func TestCounter_LoopDoesNotRename(t *testing.T) {
	pc := &domain.PipelineContext{StageNumber: 4, StageName: "ocr"}
	stage.Counter{}.Next(pc, "somethingElse", true)
	assert.Equal(t, "ocr", pc.StageName)
	assert.Equal(t, 4, pc.StageNumber)
}

func TestTable_CaseInsensitiveMatch(t *testing.T) {
	tbl := stage.NewTable(map[string]int{"IdGeneration": 1, "ForgeryCheck": 2, "OCR": 5}, domain.StageFallbackPrevious)
	pc := &domain.PipelineContext{}

	assert.Equal(t, 1, tbl.Next(pc, "idgeneration", false))
	assert.Equal(t, 5, tbl.Next(pc, "ocr", false))
	assert.Equal(t, 5, tbl.Next(pc, "ocr", true))
	assert.Equal(t, "ocr", pc.StageName)
}

func TestTable_Fallbacks(t *testing.T) {
	numbers := map[string]int{"ocr": 5}

	prev := stage.NewTable(numbers, domain.StageFallbackPrevious)
	pc := &domain.PipelineContext{StageNumber: 5}
	assert.Equal(t, 6, prev.Next(pc, "humanReview", false))

	sentinel := stage.NewTable(numbers, domain.StageFallbackSentinel)
	pc = &domain.PipelineContext{StageNumber: 5}
	assert.Equal(t, domain.UnmappedStage, sentinel.Next(pc, "humanReview", false))
	assert.Equal(t, 99, pc.StageNumber)
}

func TestForTable(t *testing.T) {
	assert.IsType(t, stage.Counter{}, stage.ForTable(nil, ""))
	assert.IsType(t, &stage.Table{}, stage.ForTable(map[string]int{"a": 1}, ""))
}
