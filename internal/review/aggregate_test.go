package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/llm"
)

func unitWithWeight(lines int) core.PromptUnit {
	return core.PromptUnit{Files: []core.FileDiff{{Path: "f.go", Added: lines}}}
}

func TestAggregateWeightsByLinesChanged(t *testing.T) {
	results := []ChunkResult{
		{Unit: unitWithWeight(90), Review: &llm.ModelReview{Score: 9, Summary: "big chunk fine"}},
		{Unit: unitWithWeight(10), Review: &llm.ModelReview{Score: 4, Summary: "small chunk rough"}},
	}

	score, summary, _, _ := Aggregate(results)
	assert.InDelta(t, 8.5, score, 0.001) // (9*90 + 4*10) / 100
	assert.Contains(t, summary, "big chunk fine")
	assert.Contains(t, summary, "small chunk rough")
}

func TestAggregateDeduplicatesFindings(t *testing.T) {
	dup := core.Finding{Severity: core.SeverityHigh, File: "a.go", Line: 3, Category: "security", Message: "first"}
	results := []ChunkResult{
		{Unit: unitWithWeight(1), Review: &llm.ModelReview{Score: 5, Findings: []core.Finding{dup}}},
		{Unit: unitWithWeight(1), Review: &llm.ModelReview{Score: 5, Findings: []core.Finding{
			{Severity: core.SeverityHigh, File: "a.go", Line: 3, Category: "security", Message: "second wording"},
			{Severity: core.SeverityLow, File: "a.go", Line: 3, Category: "style", Message: "kept, different category"},
		}}},
	}

	_, _, findings, _ := Aggregate(results)
	require.Len(t, findings, 2)
	assert.Equal(t, "first", findings[0].Message)
}

func TestAggregateOrdersBySeverityThenLocation(t *testing.T) {
	results := []ChunkResult{
		{Unit: unitWithWeight(1), Review: &llm.ModelReview{Score: 5, Findings: []core.Finding{
			{Severity: core.SeverityLow, File: "b.go", Line: 1, Category: "style"},
			{Severity: core.SeverityCritical, File: "z.go", Line: 9, Category: "security"},
			{Severity: core.SeverityLow, File: "a.go", Line: 7, Category: "style"},
		}}},
	}

	_, _, findings, _ := Aggregate(results)
	require.Len(t, findings, 3)
	assert.Equal(t, core.SeverityCritical, findings[0].Severity)
	assert.Equal(t, "a.go", findings[1].File)
	assert.Equal(t, "b.go", findings[2].File)
}

func TestAggregateDeduplicatesSuggestions(t *testing.T) {
	results := []ChunkResult{
		{Unit: unitWithWeight(1), Review: &llm.ModelReview{Score: 5, Suggestions: []string{"add tests", "  "}}},
		{Unit: unitWithWeight(1), Review: &llm.ModelReview{Score: 5, Suggestions: []string{"add tests", "split the function"}}},
	}
	_, _, _, suggestions := Aggregate(results)
	assert.Equal(t, []string{"add tests", "split the function"}, suggestions)
}

func TestAggregateZeroWeightChunksStillCount(t *testing.T) {
	results := []ChunkResult{
		{Unit: core.PromptUnit{}, Review: &llm.ModelReview{Score: 6}},
		{Unit: core.PromptUnit{}, Review: &llm.ModelReview{Score: 8}},
	}
	score, _, _, _ := Aggregate(results)
	assert.InDelta(t, 7.0, score, 0.001)
}

func TestMergeFindingsDropsDuplicatesFromExtra(t *testing.T) {
	primary := []core.Finding{{Severity: core.SeverityMedium, File: "a.go", Line: 4, Category: "debug", Message: "model saw it"}}
	extra := []core.Finding{
		{Severity: core.SeverityMedium, File: "a.go", Line: 4, Category: "debug", Message: "precheck saw it too"},
		{Severity: core.SeverityLow, File: "a.go", Line: 9, Category: "style", Message: "only precheck"},
	}

	merged := MergeFindings(primary, extra)
	require.Len(t, merged, 2)
	assert.Equal(t, "model saw it", merged[0].Message)
	assert.Equal(t, "only precheck", merged[1].Message)
}
