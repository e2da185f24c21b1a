// Package jobs runs batch review requests on a background worker pool.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

type queuedReview struct {
	batchID string
	req     *core.ReviewRequest
}

// dispatcher implements core.JobDispatcher with a fixed pool of workers
// consuming a bounded queue.
type dispatcher struct {
	job        core.Job
	queue      chan *queuedReview
	maxWorkers int
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewDispatcher starts the worker pool. If maxWorkers is 0 or negative, one
// worker is used.
func NewDispatcher(job core.Job, maxWorkers int, logger *slog.Logger) core.JobDispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	d := &dispatcher{
		job:        job,
		maxWorkers: maxWorkers,
		queue:      make(chan *queuedReview, 100),
		logger:     logger,
	}
	d.startWorkers()
	return d
}

func (d *dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

func (d *dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Info("starting review worker", "id", workerID)

	for item := range d.queue {
		d.process(workerID, item)
	}

	d.logger.Info("shutting down review worker", "id", workerID)
}

func (d *dispatcher) process(workerID int, item *queuedReview) {
	d.logger.Info("worker processing review",
		"worker_id", workerID,
		"batch_id", item.batchID,
		"project", item.req.Ref.ProjectID,
		"mr", item.req.Ref.MRIID,
	)

	// The queue outlives the HTTP request that filled it.
	if err := d.job.Run(context.Background(), item.batchID, item.req); err != nil {
		d.logger.Error("background review failed",
			"batch_id", item.batchID,
			"project", item.req.Ref.ProjectID,
			"mr", item.req.Ref.MRIID,
			"error", err,
		)
	}
}

// Dispatch queues one review for background processing.
func (d *dispatcher) Dispatch(_ context.Context, batchID string, req *core.ReviewRequest) error {
	select {
	case d.queue <- &queuedReview{batchID: batchID, req: req}:
		return nil
	default:
		return fmt.Errorf("job queue is full, cannot accept new review job")
	}
}

// Stop closes the queue and waits for in-flight reviews to finish.
func (d *dispatcher) Stop() {
	d.logger.Info("stopping dispatcher and waiting for jobs to finish")
	close(d.queue)
	d.wg.Wait()
	d.logger.Info("all background reviews have finished")
}
