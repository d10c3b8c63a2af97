package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"media-library/internal/database"
	"media-library/internal/logging"
)

// Queue hands sync results to the pipeline. Records submitted while a batch
// is running wait for the next batch instead of being dropped.
type Queue struct {
	pipe  *Pipeline
	retry time.Duration

	mu      sync.Mutex
	pending []database.Record
	queued  map[string]bool
	active  bool
}

// NewQueue creates a Queue feeding pipe. retry is how long to wait before
// trying again while another batch, such as a manual run, owns the pipeline.
func NewQueue(pipe *Pipeline, retry time.Duration) *Queue {
	if retry <= 0 {
		retry = time.Second
	}
	return &Queue{pipe: pipe, retry: retry, queued: make(map[string]bool)}
}

// Submit queues records, skipping those already waiting, and starts a drain
// if none is active. Submitting nothing resumes a stopped drain.
func (q *Queue) Submit(ctx context.Context, records []database.Record) {
	q.mu.Lock()
	for _, rec := range records {
		if !q.queued[rec.ID] {
			q.queued[rec.ID] = true
			q.pending = append(q.pending, rec)
		}
	}
	start := !q.active && len(q.pending) > 0
	if start {
		q.active = true
	}
	q.mu.Unlock()

	if start {
		go q.drain(ctx)
	}
}

// Len returns the number of records waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Busy reports whether a drain is running or waiting for the pipeline.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

func (q *Queue) take() []database.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.pending
	q.pending = nil
	clear(q.queued)
	if len(batch) == 0 {
		q.active = false
	}
	return batch
}

// putBack returns unprocessed records to the front of the queue. With stop
// set the drain ends and the records wait for the next Submit.
func (q *Queue) putBack(records []database.Record, stop bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var front []database.Record
	for _, rec := range records {
		if !q.queued[rec.ID] {
			q.queued[rec.ID] = true
			front = append(front, rec)
		}
	}
	q.pending = append(front, q.pending...)
	if stop {
		q.active = false
	}
}

func (q *Queue) drain(ctx context.Context) {
	for {
		batch := q.take()
		if len(batch) == 0 {
			return
		}

		sum, err := q.pipe.Run(ctx, batch)
		switch {
		case errors.Is(err, ErrAlreadyRunning):
			logging.Debug("Pipeline busy, %d queued records waiting", len(batch))
			q.putBack(batch, false)
			select {
			case <-ctx.Done():
				q.putBack(nil, true)
				return
			case <-time.After(q.retry):
			}
		case err != nil:
			logging.Error("Queued processing stopped: %v", err)
			q.putBack(batch[min(sum.Processed, len(batch)):], true)
			return
		case sum.Canceled:
			q.putBack(batch[min(sum.Processed, len(batch)):], true)
			logging.Info("Queued processing canceled, %d records still queued", q.Len())
			return
		default:
			logging.Debug("Queued processing: %+v", sum)
		}
	}
}
