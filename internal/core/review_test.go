package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *ReviewRequest {
	return &ReviewRequest{
		Ref: MergeRequestRef{
			BaseURL:   "https://gitlab.example.com",
			ProjectID: "group/repo",
			MRIID:     12,
			Token:     "glpat-x",
		},
		Type: ReviewFull,
	}
}

func TestParseReviewType(t *testing.T) {
	rt, err := ParseReviewType("")
	require.NoError(t, err)
	assert.Equal(t, ReviewFull, rt)

	rt, err = ParseReviewType("SECURITY")
	require.NoError(t, err)
	assert.Equal(t, ReviewSecurity, rt)

	_, err = ParseReviewType("thorough")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidRequest, KindOf(err))
}

func TestReviewRequestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ReviewRequest)
		valid  bool
	}{
		{"valid mr request", func(*ReviewRequest) {}, true},
		{"missing base url", func(r *ReviewRequest) { r.Ref.BaseURL = "" }, false},
		{"non-http url", func(r *ReviewRequest) { r.Ref.BaseURL = "ftp://example.com" }, false},
		{"missing project", func(r *ReviewRequest) { r.Ref.ProjectID = "" }, false},
		{"missing token", func(r *ReviewRequest) { r.Ref.Token = "" }, false},
		{"zero mr iid", func(r *ReviewRequest) { r.Ref.MRIID = 0 }, false},
		{"unknown mode", func(r *ReviewRequest) { r.Mode = "diff" }, false},
		{"valid branch compare", func(r *ReviewRequest) {
			r.Mode = ModeBranchCompare
			r.Ref.MRIID = 0
			r.SourceBranch = "feature/x"
			r.TargetBranch = "main"
		}, true},
		{"branch compare missing branches", func(r *ReviewRequest) {
			r.Mode = ModeBranchCompare
			r.SourceBranch = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			err := req.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, ErrInvalidRequest, KindOf(err))
			}
		})
	}
}

func TestNormalizeSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, NormalizeSeverity("Critical"))
	assert.Equal(t, SeverityHigh, NormalizeSeverity(" HIGH "))
	assert.Equal(t, SeverityInfo, NormalizeSeverity("blocker"))
	assert.Equal(t, SeverityInfo, NormalizeSeverity(""))
}

func TestCountDiffLines(t *testing.T) {
	hunk := "--- a/x.go\n+++ b/x.go\n@@ -1,3 +1,4 @@\n context\n+added one\n+added two\n-removed\n"
	added, removed := CountDiffLines(hunk)
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, removed)
}

func TestResultMarkdown(t *testing.T) {
	r := &ReviewResult{
		Type:    ReviewSecurity,
		Score:   6.5,
		Summary: "Two injection risks.",
		Stats:   ReviewStats{FilesAnalyzed: 3},
		Findings: []Finding{
			{Severity: SeverityHigh, File: "db.go", Line: 12, Category: "security", Message: "string-built query"},
		},
	}

	md := r.Markdown()
	assert.Contains(t, md, "## AI Code Review")
	assert.Contains(t, md, "6.5/10.0")
	assert.Contains(t, md, "`db.go:12`")
	assert.Contains(t, md, "Two injection risks.")
}

func TestErrorKindPropagation(t *testing.T) {
	inner := NewError(ErrNotFound, "gone")
	wrapped := WrapError(ErrUpstreamUnavailable, "outer", inner)

	// The outermost kind wins.
	assert.Equal(t, ErrUpstreamUnavailable, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(assert.AnError))
}
