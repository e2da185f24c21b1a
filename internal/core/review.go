package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ReviewType selects the rubric a review is performed against. The set is
// closed: adding a type means adding an enum value and a prompt template.
type ReviewType string

const (
	ReviewFull        ReviewType = "full"
	ReviewSecurity    ReviewType = "security"
	ReviewPerformance ReviewType = "performance"
	ReviewQuick       ReviewType = "quick"
)

// ReviewTypes lists all supported review types in a stable order.
func ReviewTypes() []ReviewType {
	return []ReviewType{ReviewFull, ReviewSecurity, ReviewPerformance, ReviewQuick}
}

// ParseReviewType validates a caller-supplied review type string.
// The empty string defaults to a full review.
func ParseReviewType(s string) (ReviewType, error) {
	if s == "" {
		return ReviewFull, nil
	}
	rt := ReviewType(strings.ToLower(s))
	switch rt {
	case ReviewFull, ReviewSecurity, ReviewPerformance, ReviewQuick:
		return rt, nil
	}
	return "", Errorf(ErrInvalidRequest, "invalid review type %q", s)
}

// Description returns the human-readable focus of a review type.
func (t ReviewType) Description() string {
	switch t {
	case ReviewSecurity:
		return "vulnerability and data-protection focused review"
	case ReviewPerformance:
		return "complexity, allocation and query-efficiency review"
	case ReviewQuick:
		return "abbreviated checklist of basic quality issues"
	default:
		return "comprehensive quality, security and maintainability review"
	}
}

// ReviewMode selects what is being diffed: a merge request or two branches.
type ReviewMode string

const (
	ModeMergeRequest  ReviewMode = "mr"
	ModeBranchCompare ReviewMode = "branch_compare"
)

// ReviewRequest is the single inbound operation of the pipeline.
type ReviewRequest struct {
	Ref  MergeRequestRef
	Mode ReviewMode
	Type ReviewType

	// Branch-compare mode only.
	SourceBranch string
	TargetBranch string

	// Model optionally overrides the configured primary model.
	Model string
}

// Validate checks the request for the fields its mode requires.
func (r *ReviewRequest) Validate() error {
	if r.Ref.BaseURL == "" {
		return NewError(ErrInvalidRequest, "gitlab_url must not be empty")
	}
	if !strings.HasPrefix(r.Ref.BaseURL, "http://") && !strings.HasPrefix(r.Ref.BaseURL, "https://") {
		return NewError(ErrInvalidRequest, "gitlab_url must start with http:// or https://")
	}
	if r.Ref.ProjectID == "" {
		return NewError(ErrInvalidRequest, "project_id must not be empty")
	}
	if r.Ref.Token == "" {
		return NewError(ErrInvalidRequest, "access_token must not be empty")
	}
	switch r.Mode {
	case "", ModeMergeRequest:
		if r.Ref.MRIID <= 0 {
			return Errorf(ErrInvalidRequest, "mr_id must be positive, got %d", r.Ref.MRIID)
		}
	case ModeBranchCompare:
		if r.SourceBranch == "" || r.TargetBranch == "" {
			return NewError(ErrInvalidRequest, "source_branch and target_branch are required for branch_compare mode")
		}
	default:
		return Errorf(ErrInvalidRequest, "invalid mode %q", r.Mode)
	}
	return nil
}

// PromptUnit is one rendered prompt ready for dispatch, together with the
// files it covers. Units are owned by the pipeline for a single review.
type PromptUnit struct {
	Text          string
	TokenEstimate int
	Files         []FileDiff
}

// LinesChanged sums the change weight of all files in the unit.
func (u PromptUnit) LinesChanged() int {
	total := 0
	for _, f := range u.Files {
		total += f.LinesChanged()
	}
	return total
}

// Severity is the closed severity scale of a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// NormalizeSeverity coerces a model-supplied severity string into the closed
// set. Unknown values map to info rather than failing the whole review.
func NormalizeSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Finding is one reported issue at a specific file and line. Immutable once
// created by the parser.
type Finding struct {
	Severity   Severity `json:"severity"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Category   string   `json:"category"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// ReviewStats summarizes what the pipeline looked at.
type ReviewStats struct {
	FilesAnalyzed  int `json:"files_analyzed"`
	FilesExcluded  int `json:"files_excluded"`
	TotalAdditions int `json:"total_additions"`
	TotalDeletions int `json:"total_deletions"`
	PromptUnits    int `json:"prompt_units"`
	TokensEstimate int `json:"tokens_estimate"`
}

// ReviewStatus is the terminal state of a review.
type ReviewStatus string

const (
	StatusCompleted ReviewStatus = "completed"
	StatusFailed    ReviewStatus = "failed"
	// StatusBudgetExhausted marks a review where no diff content fit the
	// token budget; no model was consulted.
	StatusBudgetExhausted ReviewStatus = "budget_exhausted"
)

// ReviewResult is the terminal artifact of one review. It is not mutated
// after construction.
type ReviewResult struct {
	ID          string       `json:"review_id"`
	Status      ReviewStatus `json:"status"`
	Type        ReviewType   `json:"review_type"`
	Score       float64      `json:"score"`
	Summary     string       `json:"summary"`
	Findings    []Finding    `json:"findings"`
	Suggestions []string     `json:"suggestions,omitempty"`
	MR          *MRInfo      `json:"mr_info,omitempty"`
	Stats       ReviewStats  `json:"statistics"`
	Model       string       `json:"ai_model"`
	FromCache   bool         `json:"from_cache,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Markdown renders the result as a merge-request comment body.
func (r *ReviewResult) Markdown() string {
	var b strings.Builder
	b.WriteString("## AI Code Review\n\n")
	fmt.Fprintf(&b, "- **Review type**: %s\n", r.Type)
	fmt.Fprintf(&b, "- **Score**: %.1f/10.0\n", r.Score)
	fmt.Fprintf(&b, "- **Files analyzed**: %d\n\n", r.Stats.FilesAnalyzed)
	b.WriteString(r.Summary)
	if len(r.Findings) > 0 {
		b.WriteString("\n\n### Findings\n")
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "- `%s:%d` **%s** (%s): %s\n", f.File, f.Line, f.Severity, f.Category, f.Message)
		}
	}
	return b.String()
}

// Reviewer is the single synchronous operation the pipeline exposes.
type Reviewer interface {
	Review(ctx context.Context, req *ReviewRequest) (*ReviewResult, error)
}
