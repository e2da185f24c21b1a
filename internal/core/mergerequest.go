// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the review pipeline.
package core

import (
	"context"
	"strings"
)

// MergeRequestRef identifies one merge request on a GitLab host, together
// with the access token the caller supplied for it. It is immutable for the
// duration of a review.
type MergeRequestRef struct {
	BaseURL   string
	ProjectID string
	MRIID     int
	Token     string
}

// EditType classifies how a file was changed in a merge request.
type EditType string

const (
	EditAdded    EditType = "added"
	EditDeleted  EditType = "deleted"
	EditRenamed  EditType = "renamed"
	EditModified EditType = "modified"
)

// FileDiff holds the unified diff of a single changed file. It is produced by
// the fetcher and read-only everywhere downstream.
type FileDiff struct {
	Path     string
	OldPath  string
	Hunk     string
	Added    int
	Removed  int
	Binary   bool
	EditType EditType
}

// LinesChanged returns the total number of added and removed lines,
// used as the weight of this file when aggregating chunk scores.
func (f FileDiff) LinesChanged() int {
	return f.Added + f.Removed
}

// CountDiffLines derives added/removed counts from a unified diff hunk.
// Hunk headers and the +++/--- file markers are not counted.
func CountDiffLines(hunk string) (added, removed int) {
	for _, line := range strings.Split(hunk, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

// MRInfo is the metadata of a merge request needed for prompting and reporting.
type MRInfo struct {
	Title        string
	Description  string
	Author       string
	SourceBranch string
	TargetBranch string
	State        string
	WebURL       string
	HeadSHA      string
}

// HostClient is the read-mostly contract against the source-control host.
// Implementations are created per request because the access token is
// caller-supplied.
type HostClient interface {
	// MRInfo fetches the merge request metadata.
	MRInfo(ctx context.Context, ref MergeRequestRef) (*MRInfo, error)
	// DiffFiles fetches the per-file unified diffs of the merge request.
	DiffFiles(ctx context.Context, ref MergeRequestRef) ([]FileDiff, error)
	// CompareBranches fetches the diffs between two branches of the project.
	CompareBranches(ctx context.Context, ref MergeRequestRef, targetBranch, sourceBranch string) ([]FileDiff, error)
	// CreateMRNote posts a comment on the merge request.
	CreateMRNote(ctx context.Context, ref MergeRequestRef, body string) error
	// UpdateMRDescription replaces the merge request description.
	UpdateMRDescription(ctx context.Context, ref MergeRequestRef, description string) error
}

// HostClientFactory builds a HostClient for one merge request reference.
// The factory validates the base URL and token before returning a client.
type HostClientFactory func(ref MergeRequestRef) (HostClient, error)
