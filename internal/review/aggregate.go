package review

import (
	"sort"
	"strconv"
	"strings"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/llm"
)

// ChunkResult pairs one dispatched prompt unit with its parsed model answer.
type ChunkResult struct {
	Unit   core.PromptUnit
	Review *llm.ModelReview
}

var severityRank = map[core.Severity]int{
	core.SeverityCritical: 0,
	core.SeverityHigh:     1,
	core.SeverityMedium:   2,
	core.SeverityLow:      3,
	core.SeverityInfo:     4,
}

// Aggregate combines per-chunk model answers into one review. The score is
// the average of chunk scores weighted by lines changed, so a one-line chunk
// cannot drag down a thousand-line review. Findings are deduplicated on
// (file, line, category) and ordered by severity, then location.
func Aggregate(results []ChunkResult) (float64, string, []core.Finding, []string) {
	if len(results) == 0 {
		return 0, "", nil, nil
	}

	var weightedScore, totalWeight float64
	var summaries []string
	var findings []core.Finding
	var suggestions []string
	seenFinding := make(map[string]bool)
	seenSuggestion := make(map[string]bool)

	for _, r := range results {
		weight := float64(r.Unit.LinesChanged())
		if weight == 0 {
			weight = 1
		}
		weightedScore += r.Review.Score * weight
		totalWeight += weight

		if s := strings.TrimSpace(r.Review.Summary); s != "" {
			summaries = append(summaries, s)
		}
		for _, f := range r.Review.Findings {
			key := findingKey(f)
			if seenFinding[key] {
				continue
			}
			seenFinding[key] = true
			findings = append(findings, f)
		}
		for _, s := range r.Review.Suggestions {
			s = strings.TrimSpace(s)
			if s == "" || seenSuggestion[s] {
				continue
			}
			seenSuggestion[s] = true
			suggestions = append(suggestions, s)
		}
	}

	score := weightedScore / totalWeight
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}

	sortFindings(findings)
	return score, strings.Join(summaries, "\n\n"), findings, suggestions
}

func findingKey(f core.Finding) string {
	return f.File + "\x00" + strconv.Itoa(f.Line) + "\x00" + f.Category
}

func sortFindings(findings []core.Finding) {
	sort.SliceStable(findings, func(a, b int) bool {
		if severityRank[findings[a].Severity] != severityRank[findings[b].Severity] {
			return severityRank[findings[a].Severity] < severityRank[findings[b].Severity]
		}
		if findings[a].File != findings[b].File {
			return findings[a].File < findings[b].File
		}
		return findings[a].Line < findings[b].Line
	})
}

// MergeFindings combines two finding sets, dropping duplicates on
// (file, line, category) and restoring severity ordering.
func MergeFindings(primary, extra []core.Finding) []core.Finding {
	seen := make(map[string]bool, len(primary))
	merged := make([]core.Finding, 0, len(primary)+len(extra))
	for _, f := range primary {
		key := findingKey(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, f)
	}
	for _, f := range extra {
		key := findingKey(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, f)
	}
	sortFindings(merged)
	return merged
}
