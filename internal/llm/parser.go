package llm

import (
	"encoding/json"
	"strings"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

// ModelReview is the structured result of one model call after parsing and
// normalization.
type ModelReview struct {
	Score       float64
	Summary     string
	Findings    []core.Finding
	Suggestions []string
}

// wireFinding accepts the field name variants models tend to produce.
type wireFinding struct {
	Severity    string `json:"severity"`
	File        string `json:"file"`
	Filename    string `json:"filename"`
	Line        int    `json:"line"`
	LineNumber  int    `json:"line_number"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

type wireReview struct {
	Score       *float64      `json:"score"`
	Summary     string        `json:"summary"`
	Findings    []wireFinding `json:"findings"`
	Suggestions []string      `json:"suggestions"`
}

// ParseReview extracts the structured review from raw model output. It
// tolerates the common quirks: code fences around the JSON, prose before or
// after the object, and inconsistent finding field names. A response without
// a parseable object or with a score outside [0, 10] is rejected as
// malformed.
func ParseReview(raw string) (*ModelReview, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, core.NewError(core.ErrMalformedModelOutput, "no JSON object found in model response")
	}

	var wire wireReview
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, core.WrapError(core.ErrMalformedModelOutput, "model response is not valid JSON", err)
	}
	if wire.Score == nil {
		return nil, core.NewError(core.ErrMalformedModelOutput, "model response has no score")
	}
	if *wire.Score < 0 || *wire.Score > 10 {
		return nil, core.Errorf(core.ErrMalformedModelOutput, "score %.2f out of range [0, 10]", *wire.Score)
	}

	review := &ModelReview{
		Score:       *wire.Score,
		Summary:     strings.TrimSpace(wire.Summary),
		Suggestions: wire.Suggestions,
	}
	for _, f := range wire.Findings {
		review.Findings = append(review.Findings, core.Finding{
			Severity:   core.NormalizeSeverity(f.Severity),
			File:       firstNonEmpty(f.File, f.Filename),
			Line:       firstNonZero(f.Line, f.LineNumber),
			Category:   firstNonEmpty(f.Category, f.Type),
			Message:    firstNonEmpty(f.Message, f.Description),
			Suggestion: f.Suggestion,
		})
	}
	return review, nil
}

// extractJSON locates the JSON object in raw model output. It first strips a
// wrapping ```json fence, then falls back to the first balanced top-level
// object. Braces inside JSON strings are skipped while balancing.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "```") {
		if idx := strings.Index(trimmed, "\n"); idx >= 0 {
			inner := trimmed[idx+1:]
			if end := strings.LastIndex(inner, "```"); end >= 0 {
				inner = inner[:end]
			}
			trimmed = strings.TrimSpace(inner)
		}
	}

	start := strings.Index(trimmed, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(trimmed); i++ {
		c := trimmed[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return trimmed[start : i+1]
			}
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
