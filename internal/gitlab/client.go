// Package gitlab provides the read-mostly client against the GitLab REST API.
package gitlab

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

// retryDelay is the pause before the single transient-network retry.
const retryDelay = 500 * time.Millisecond

// Client wraps the official GitLab client with the application's focused
// HostClient contract. One Client serves one merge request reference because
// the access token is supplied per request.
type Client struct {
	api    *gl.Client
	logger *slog.Logger
}

var _ core.HostClient = (*Client)(nil)

// NewClient builds a GitLab client for the given reference.
func NewClient(ref core.MergeRequestRef, logger *slog.Logger) (*Client, error) {
	api, err := gl.NewClient(ref.Token, gl.WithBaseURL(ref.BaseURL))
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidRequest, "failed to build gitlab client", err)
	}
	return &Client{api: api, logger: logger}, nil
}

// Factory returns a HostClientFactory bound to the given logger.
func Factory(logger *slog.Logger) core.HostClientFactory {
	return func(ref core.MergeRequestRef) (core.HostClient, error) {
		return NewClient(ref, logger)
	}
}

// MRInfo fetches the merge request metadata.
func (c *Client) MRInfo(ctx context.Context, ref core.MergeRequestRef) (*core.MRInfo, error) {
	var mr *gl.MergeRequest
	err := c.withRetry(ctx, fmt.Sprintf("get MR %s!%d", ref.ProjectID, ref.MRIID), func() (*gl.Response, error) {
		var resp *gl.Response
		var err error
		mr, resp, err = c.api.MergeRequests.GetMergeRequest(ref.ProjectID, ref.MRIID, nil, gl.WithContext(ctx))
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	info := &core.MRInfo{
		Title:        mr.Title,
		Description:  mr.Description,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		State:        mr.State,
		WebURL:       mr.WebURL,
		HeadSHA:      mr.SHA,
	}
	if mr.Author != nil {
		info.Author = mr.Author.Name
	}
	return info, nil
}

// DiffFiles fetches the per-file unified diffs of the merge request,
// following pagination so large MRs are not silently truncated.
func (c *Client) DiffFiles(ctx context.Context, ref core.MergeRequestRef) ([]core.FileDiff, error) {
	var files []core.FileDiff
	opt := &gl.ListMergeRequestDiffsOptions{
		ListOptions: gl.ListOptions{PerPage: 100},
	}

	for {
		var diffs []*gl.MergeRequestDiff
		var nextPage int
		err := c.withRetry(ctx, fmt.Sprintf("list diffs %s!%d", ref.ProjectID, ref.MRIID), func() (*gl.Response, error) {
			var resp *gl.Response
			var err error
			diffs, resp, err = c.api.MergeRequests.ListMergeRequestDiffs(ref.ProjectID, ref.MRIID, opt, gl.WithContext(ctx))
			if resp != nil {
				nextPage = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, d := range diffs {
			files = append(files, fileDiffFromChange(d.NewPath, d.OldPath, d.Diff, d.NewFile, d.DeletedFile, d.RenamedFile))
		}
		if nextPage == 0 {
			break
		}
		opt.Page = nextPage
	}

	c.logger.Debug("fetched merge request diffs", "project", ref.ProjectID, "mr", ref.MRIID, "files", len(files))
	return files, nil
}

// CompareBranches fetches the direct comparison between two branch heads,
// equivalent to `git diff target...source`.
func (c *Client) CompareBranches(ctx context.Context, ref core.MergeRequestRef, targetBranch, sourceBranch string) ([]core.FileDiff, error) {
	var cmp *gl.Compare
	opt := &gl.CompareOptions{
		From:     gl.Ptr(targetBranch),
		To:       gl.Ptr(sourceBranch),
		Straight: gl.Ptr(true),
	}
	err := c.withRetry(ctx, fmt.Sprintf("compare %s...%s", targetBranch, sourceBranch), func() (*gl.Response, error) {
		var resp *gl.Response
		var err error
		cmp, resp, err = c.api.Repositories.Compare(ref.ProjectID, opt, gl.WithContext(ctx))
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	files := make([]core.FileDiff, 0, len(cmp.Diffs))
	for _, d := range cmp.Diffs {
		files = append(files, fileDiffFromChange(d.NewPath, d.OldPath, d.Diff, d.NewFile, d.DeletedFile, d.RenamedFile))
	}
	return files, nil
}

// CreateMRNote posts a comment on the merge request.
func (c *Client) CreateMRNote(ctx context.Context, ref core.MergeRequestRef, body string) error {
	return c.withRetry(ctx, fmt.Sprintf("create note %s!%d", ref.ProjectID, ref.MRIID), func() (*gl.Response, error) {
		_, resp, err := c.api.Notes.CreateMergeRequestNote(ref.ProjectID, ref.MRIID,
			&gl.CreateMergeRequestNoteOptions{Body: gl.Ptr(body)}, gl.WithContext(ctx))
		return resp, err
	})
}

// UpdateMRDescription replaces the merge request description.
func (c *Client) UpdateMRDescription(ctx context.Context, ref core.MergeRequestRef, description string) error {
	return c.withRetry(ctx, fmt.Sprintf("update MR %s!%d", ref.ProjectID, ref.MRIID), func() (*gl.Response, error) {
		_, resp, err := c.api.MergeRequests.UpdateMergeRequest(ref.ProjectID, ref.MRIID,
			&gl.UpdateMergeRequestOptions{Description: gl.Ptr(description)}, gl.WithContext(ctx))
		return resp, err
	})
}

// withRetry runs one API call with a single transient retry. Authentication
// failures and missing resources are never retried.
func (c *Client) withRetry(ctx context.Context, op string, call func() (*gl.Response, error)) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), 1), ctx)

	return backoff.Retry(func() error {
		resp, err := call()
		if err == nil {
			return nil
		}

		if resp != nil {
			switch resp.StatusCode {
			case http.StatusNotFound:
				return backoff.Permanent(core.WrapError(core.ErrNotFound, op, err))
			case http.StatusUnauthorized, http.StatusForbidden:
				return backoff.Permanent(core.WrapError(core.ErrUpstreamUnavailable, op+": authentication rejected", err))
			case http.StatusTooManyRequests:
				return core.WrapError(core.ErrUpstreamUnavailable, op+": rate limited", err)
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return core.WrapError(core.ErrUpstreamUnavailable, op, err)
			}
			return backoff.Permanent(core.WrapError(core.ErrUpstreamUnavailable, op, err))
		}

		c.logger.Warn("gitlab call failed, retrying once", "op", op, "error", err)
		return core.WrapError(core.ErrUpstreamUnavailable, op+": host unreachable", err)
	}, policy)
}

// fileDiffFromChange converts one GitLab change entry into the internal
// FileDiff representation.
func fileDiffFromChange(newPath, oldPath, diff string, newFile, deletedFile, renamedFile bool) core.FileDiff {
	added, removed := core.CountDiffLines(diff)
	fd := core.FileDiff{
		Path:     newPath,
		OldPath:  oldPath,
		Hunk:     diff,
		Added:    added,
		Removed:  removed,
		Binary:   strings.Contains(diff, "Binary files ") || (diff == "" && !deletedFile),
		EditType: core.EditModified,
	}
	switch {
	case newFile:
		fd.EditType = core.EditAdded
	case deletedFile:
		fd.EditType = core.EditDeleted
	case renamedFile:
		fd.EditType = core.EditRenamed
	}
	if fd.Path == "" {
		fd.Path = oldPath
	}
	return fd
}
