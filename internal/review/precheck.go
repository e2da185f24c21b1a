package review

import (
	"strings"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

const maxLineLength = 120

// debugMarkers flag leftover debugging statements on added lines.
var debugMarkers = []string{
	"console.log(",
	"print(",
	"println!(",
	"fmt.Println(",
	"debugger",
	"binding.pry",
	"pdb.set_trace(",
	"breakpoint()",
	"var_dump(",
	"dd(",
}

// Precheck scans the added lines of the selected files for mechanical
// problems that do not need a model: over-long lines, leftover debug
// statements and TODO/FIXME markers. Quick reviews merge these findings with
// the model output.
func Precheck(files []core.FileDiff) []core.Finding {
	var findings []core.Finding

	for _, f := range files {
		lineNo := 0
		for _, raw := range strings.Split(f.Hunk, "\n") {
			if strings.HasPrefix(raw, "@@") {
				lineNo = hunkStartLine(raw)
				continue
			}
			switch {
			case strings.HasPrefix(raw, "+++"), strings.HasPrefix(raw, "---"), strings.HasPrefix(raw, "-"):
				continue
			case strings.HasPrefix(raw, "+"):
				line := raw[1:]
				findings = append(findings, checkLine(f.Path, lineNo, line)...)
				lineNo++
			default:
				lineNo++
			}
		}
	}
	return findings
}

func checkLine(path string, lineNo int, line string) []core.Finding {
	var findings []core.Finding

	if len(line) > maxLineLength {
		findings = append(findings, core.Finding{
			Severity: core.SeverityLow,
			File:     path,
			Line:     lineNo,
			Category: "style",
			Message:  "line exceeds 120 characters",
		})
	}

	trimmed := strings.TrimSpace(line)
	for _, marker := range debugMarkers {
		if strings.Contains(trimmed, marker) {
			findings = append(findings, core.Finding{
				Severity:   core.SeverityMedium,
				File:       path,
				Line:       lineNo,
				Category:   "debug",
				Message:    "possible leftover debug statement",
				Suggestion: "remove debugging output before merging",
			})
			break
		}
	}

	upper := strings.ToUpper(trimmed)
	if strings.Contains(upper, "TODO") || strings.Contains(upper, "FIXME") {
		findings = append(findings, core.Finding{
			Severity: core.SeverityLow,
			File:     path,
			Line:     lineNo,
			Category: "maintenance",
			Message:  "unresolved TODO/FIXME marker",
		})
	}

	return findings
}

// hunkStartLine parses the new-file start line out of a @@ header.
// "@@ -10,3 +42,7 @@" yields 42. Malformed headers yield 0.
func hunkStartLine(header string) int {
	plus := strings.Index(header, "+")
	if plus < 0 {
		return 0
	}
	rest := header[plus+1:]
	n := 0
	for _, c := range rest {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}
