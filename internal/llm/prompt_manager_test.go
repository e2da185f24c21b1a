package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

func TestNewPromptManagerLoadsAllReviewTypes(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	data := PromptData{
		Title:        "Fix pagination",
		SourceBranch: "fix/pages",
		TargetBranch: "main",
		FileCount:    2,
		Diff:         "+added line\n-removed line\n",
	}
	for _, rt := range core.ReviewTypes() {
		out, err := pm.Render(rt, DefaultProvider, data)
		require.NoError(t, err, "review type %s", rt)
		assert.Contains(t, out, "Fix pagination")
		assert.Contains(t, out, "+added line")
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	data := PromptData{
		Title:        "Refactor config loading",
		Description:  "Moves env parsing into one place.",
		SourceBranch: "refactor/config",
		TargetBranch: "main",
		FileCount:    3,
		Diff:         "+cfg := Load()\n",
	}
	first, err := pm.Render(core.ReviewFull, DefaultProvider, data)
	require.NoError(t, err)
	second, err := pm.Render(core.ReviewFull, DefaultProvider, data)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRenderFallsBackToDefaultProvider(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	out, err := pm.Render(core.ReviewSecurity, ModelProvider("mistral"), PromptData{Title: "x", Diff: "+y"})
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "security"), "security template should be used")
}

func TestSystemPromptPinsContract(t *testing.T) {
	for _, field := range []string{`"score"`, `"summary"`, `"findings"`, `"suggestions"`} {
		assert.Contains(t, SystemPrompt, field)
	}
}
