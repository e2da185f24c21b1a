// Package review implements the merge-request review pipeline: diff
// selection under a token budget, prompt dispatch, parsing and aggregation.
package review

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/llm"
)

// truncationMarker is appended whenever a diff had to be cut to fit the
// token budget.
const truncationMarker = "\n... [diff truncated]"

// ignoredDirs are path segments whose files are never worth reviewing.
var ignoredDirs = []string{
	"node_modules",
	"vendor",
	"dist",
	"build",
	"target",
	"__pycache__",
	".git",
	".idea",
	".vscode",
}

// ignoredSuffixes are generated or lock files excluded by name.
var ignoredSuffixes = []string{
	".lock",
	".min.js",
	".min.css",
	".map",
	".sum",
	".snap",
	".pb.go",
	"_generated.go",
}

// ExcludedPath reports whether a file path is skipped regardless of budget.
func ExcludedPath(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		for _, dir := range ignoredDirs {
			if seg == dir {
				return true
			}
		}
	}
	lower := strings.ToLower(path)
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Selection is the outcome of the budget pass. Files preserves the original
// diff order of everything that made the cut.
type Selection struct {
	Files     []core.FileDiff
	Excluded  int  // binary files and ignored paths
	Omitted   int  // reviewable files dropped because the budget ran out
	Truncated bool // at least one hunk was cut to fit
}

// Empty reports whether nothing reviewable survived the pass.
func (s Selection) Empty() bool {
	return len(s.Files) == 0
}

// renderFileDiff produces the prompt fragment for one file. The same input
// always yields the same text.
func renderFileDiff(f core.FileDiff) string {
	var b strings.Builder
	switch f.EditType {
	case core.EditRenamed:
		fmt.Fprintf(&b, "### %s (renamed from %s)\n", f.Path, f.OldPath)
	default:
		fmt.Fprintf(&b, "### %s (%s)\n", f.Path, f.EditType)
	}
	b.WriteString(f.Hunk)
	if !strings.HasSuffix(f.Hunk, "\n") {
		b.WriteByte('\n')
	}
	return b.String()
}

// FileTokens estimates the prompt cost of one file.
func FileTokens(f core.FileDiff) int {
	return llm.EstimateTokens(renderFileDiff(f))
}

// SelectFiles picks the subset of changed files that fits within the token
// budget. Binary files and ignored paths are dropped first, then reviewable
// files are admitted cheapest-first (ties broken by path) until the budget
// or the maxFiles cap is reached. When not even the single cheapest file
// fits, its hunk is truncated to the budget so a tiny budget still reviews
// something. The returned files keep their original diff order.
func SelectFiles(files []core.FileDiff, budget, maxFiles int) Selection {
	var sel Selection

	type candidate struct {
		index  int
		tokens int
	}
	var candidates []candidate
	for i, f := range files {
		if f.Binary || ExcludedPath(f.Path) {
			sel.Excluded++
			continue
		}
		candidates = append(candidates, candidate{index: i, tokens: FileTokens(f)})
	}
	if len(candidates) == 0 || budget <= 0 {
		sel.Omitted = len(candidates)
		return sel
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].tokens != candidates[b].tokens {
			return candidates[a].tokens < candidates[b].tokens
		}
		return files[candidates[a].index].Path < files[candidates[b].index].Path
	})

	picked := make(map[int]bool)
	total := 0
	for _, c := range candidates {
		if maxFiles > 0 && len(picked) >= maxFiles {
			sel.Omitted++
			continue
		}
		if total+c.tokens > budget {
			sel.Omitted++
			continue
		}
		picked[c.index] = true
		total += c.tokens
	}

	// Nothing fit whole: truncate the cheapest file to the budget, header
	// and marker included. A budget too small even for that selects nothing.
	if len(picked) == 0 {
		cheapest := candidates[0]
		f := files[cheapest.index]
		header := f
		header.Hunk = ""
		maxChars := budget * llm.CharsPerToken
		avail := maxChars - len(renderFileDiff(header)) - len(truncationMarker)
		if avail > 0 {
			cut := avail
			if cut > len(f.Hunk) {
				cut = len(f.Hunk)
			}
			// Never split a multi-byte rune.
			for cut > 0 && cut < len(f.Hunk) && !utf8.RuneStart(f.Hunk[cut]) {
				cut--
			}
			f.Hunk = f.Hunk[:cut] + truncationMarker
			sel.Files = []core.FileDiff{f}
			sel.Truncated = true
			sel.Omitted = len(candidates) - 1
			return sel
		}
		sel.Omitted = len(candidates)
		return sel
	}

	for i, f := range files {
		if picked[i] {
			sel.Files = append(sel.Files, f)
		}
	}
	return sel
}

// Chunk splits the selected files into prompt-sized groups, preserving file
// order. Each group's estimated cost stays within the budget.
func Chunk(files []core.FileDiff, budget int) [][]core.FileDiff {
	var chunks [][]core.FileDiff
	var current []core.FileDiff
	used := 0

	for _, f := range files {
		cost := FileTokens(f)
		if len(current) > 0 && used+cost > budget {
			chunks = append(chunks, current)
			current = nil
			used = 0
		}
		current = append(current, f)
		used += cost
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// RenderChunk joins the per-file fragments of one chunk into the diff body
// given to the model.
func RenderChunk(files []core.FileDiff) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(renderFileDiff(f))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
