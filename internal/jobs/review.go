package jobs

import (
	"context"
	"log/slog"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

// reviewJob executes one queued review and posts the outcome back to the
// merge request as a comment, since batch callers never see the HTTP
// response.
type reviewJob struct {
	reviewer    core.Reviewer
	hostFactory core.HostClientFactory
	logger      *slog.Logger
}

// NewReviewJob builds the job the dispatcher's workers run.
func NewReviewJob(reviewer core.Reviewer, hostFactory core.HostClientFactory, logger *slog.Logger) core.Job {
	return &reviewJob{reviewer: reviewer, hostFactory: hostFactory, logger: logger}
}

func (j *reviewJob) Run(ctx context.Context, batchID string, req *core.ReviewRequest) error {
	result, err := j.reviewer.Review(ctx, req)
	if err != nil {
		return err
	}

	j.logger.Info("batch review finished",
		"batch_id", batchID,
		"review_id", result.ID,
		"project", req.Ref.ProjectID,
		"mr", req.Ref.MRIID,
		"score", result.Score,
	)

	host, err := j.hostFactory(req.Ref)
	if err != nil {
		return err
	}
	return host.CreateMRNote(ctx, req.Ref, result.Markdown())
}
