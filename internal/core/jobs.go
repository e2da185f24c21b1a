package core

import "context"

// JobDispatcher accepts review requests for asynchronous background
// processing. It decouples the batch API surface from the worker pool that
// executes reviews, and provides backpressure when the queue is full.
type JobDispatcher interface {
	// Dispatch queues a review request under the given batch identifier.
	// It returns an error if the job cannot be queued.
	Dispatch(ctx context.Context, batchID string, req *ReviewRequest) error
	// Stop drains the queue and waits for in-flight reviews to finish.
	Stop()
}

// Job is a single executable unit of background work: one review request.
type Job interface {
	// Run executes the review. It returns an error if the review fails.
	Run(ctx context.Context, batchID string, req *ReviewRequest) error
}
