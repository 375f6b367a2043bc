// Package queue implements the admission controller: a FIFO request queue
// consumed by a bounded worker pool, with live position reporting and
// bounded retention of terminal entries.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opstriage/triage-engine/internal/metrics"
	"github.com/opstriage/triage-engine/internal/models"
	"github.com/opstriage/triage-engine/internal/utils"
)

// Status enumerates the request lifecycle. Transitions are strictly
// Queued -> Processing -> {Completed, Failed}.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrUnknownRequest signals an id that was never submitted or has been evicted.
var ErrUnknownRequest = errors.New("unknown request id")

// Processor runs the diagnostic pipeline for one alert.
type Processor interface {
	Diagnose(ctx context.Context, alertText string) (models.Diagnosis, error)
}

// defaultAverageSeconds seeds wait estimates before any job has completed.
const defaultAverageSeconds = 15

// minEstimatedWait floors non-zero wait estimates so callers are not told
// "now" while others are still ahead of them.
const minEstimatedWait = 5 * time.Second

// request is the controller's internal record for one submission.
type request struct {
	id          string
	alertText   string
	status      Status
	submittedAt time.Time
	startedAt   time.Time
	finishedAt  time.Time
	lastPolled  time.Time
	result      *models.Diagnosis
	failure     string
	transient   bool
}

// RequestStatus is the externally visible state of one request.
type RequestStatus struct {
	ID                    string
	Status                Status
	Position              int
	EstimatedWaitSeconds  int
	ProcessingTimeSeconds int
	Result                *models.Diagnosis
	Failure               string
	Transient             bool
}

// Stats summarises the controller for the queue-status endpoint.
type Stats struct {
	ActiveCount                  int
	QueueLength                  int
	IsBusy                       bool
	AverageProcessingTimeSeconds int
}

// Controller owns the request map and FIFO queue. All access goes through
// its synchronized API; no other component holds queue state.
type Controller struct {
	logger    *slog.Logger
	processor Processor
	workers   int
	retention time.Duration
	pollGrace time.Duration

	mu      sync.Mutex
	pending []*request            // FIFO, submission order
	byID    map[string]*request
	active  int
	closed  bool
	wake    chan struct{}

	latencies *utils.LatencyTracker
	baseCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewController constructs an admission controller with the given
// concurrency ceiling. Call Start to launch the workers.
func NewController(logger *slog.Logger, processor Processor, workers int, retention, pollGrace time.Duration) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 2
	}
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	if pollGrace <= 0 {
		pollGrace = 10 * time.Minute
	}
	return &Controller{
		logger:    logger,
		processor: processor,
		workers:   workers,
		retention: retention,
		pollGrace: pollGrace,
		byID:      make(map[string]*request),
		wake:      make(chan struct{}, 1),
		latencies: utils.NewLatencyTracker(32),
	}
}

// Start launches the worker pool and the eviction janitor.
func (c *Controller) Start(ctx context.Context) {
	c.baseCtx, c.cancel = context.WithCancel(ctx)
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}
	c.wg.Add(1)
	go c.janitor()
	c.logger.Info("admission controller started", slog.Int("workers", c.workers))
}

// Close stops intake, waits for in-flight jobs to run to completion, and
// shuts down the workers. Queued requests that never started are left in
// place; they surface as queued until eviction.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.signal()
	c.wg.Wait()
}

// Submit enqueues an alert and returns the new request id immediately.
// Submissions are never rejected; queue growth is visible to callers.
func (c *Controller) Submit(alertText string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", errors.New("controller is shut down")
	}

	req := &request{
		id:          uuid.NewString(),
		alertText:   alertText,
		status:      StatusQueued,
		submittedAt: time.Now(),
		lastPolled:  time.Now(),
	}
	c.pending = append(c.pending, req)
	c.byID[req.id] = req
	metrics.SetQueueDepth(len(c.pending))

	c.logger.Debug("request queued",
		slog.String("request_id", req.id),
		slog.Int("position", len(c.pending)))

	// Never blocks; safe with the mutex held.
	c.signal()
	return req.id, nil
}

// Status returns the live view of one request and refreshes its poll time.
func (c *Controller) Status(id string) (RequestStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.byID[id]
	if !ok {
		return RequestStatus{}, ErrUnknownRequest
	}
	req.lastPolled = time.Now()

	status := RequestStatus{
		ID:        req.id,
		Status:    req.status,
		Result:    req.result,
		Failure:   req.failure,
		Transient: req.transient,
	}

	switch req.status {
	case StatusQueued:
		status.Position = c.positionLocked(req)
		status.EstimatedWaitSeconds = c.estimatedWaitLocked(status.Position)
	case StatusProcessing:
		status.ProcessingTimeSeconds = int(time.Since(req.startedAt).Seconds())
	case StatusCompleted, StatusFailed:
		status.ProcessingTimeSeconds = int(req.finishedAt.Sub(req.startedAt).Seconds())
	}
	return status, nil
}

// Stats reports aggregate queue state.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		ActiveCount:                  c.active,
		QueueLength:                  len(c.pending),
		IsBusy:                       c.active >= c.workers,
		AverageProcessingTimeSeconds: c.averageSecondsLocked(),
	}
}

// positionLocked derives the FIFO position: one plus the number of queued
// requests submitted earlier. Never stored, always recomputed.
func (c *Controller) positionLocked(req *request) int {
	position := 1
	for _, other := range c.pending {
		if other == req {
			break
		}
		position++
	}
	return position
}

func (c *Controller) averageSecondsLocked() int {
	avg := c.latencies.Average()
	if avg == 0 {
		return defaultAverageSeconds
	}
	return int(avg.Seconds())
}

func (c *Controller) estimatedWaitLocked(position int) int {
	ahead := position - 1 + c.active
	estimate := time.Duration(c.averageSecondsLocked()) * time.Second * time.Duration(ahead) / time.Duration(c.workers)
	if estimate < minEstimatedWait {
		estimate = minEstimatedWait
	}
	return int(estimate.Seconds())
}

func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// maybeSignal wakes a sibling worker when more queued work is runnable.
func (c *Controller) maybeSignal() {
	c.mu.Lock()
	runnable := len(c.pending) > 0 && c.active < c.workers && !c.closed
	c.mu.Unlock()
	if runnable {
		c.signal()
	}
}

// worker pulls the oldest queued request whenever capacity frees up.
func (c *Controller) worker(n int) {
	defer c.wg.Done()
	for {
		req := c.pullNext()
		if req == nil {
			select {
			case <-c.baseCtx.Done():
				return
			case <-c.wake:
				continue
			}
		}
		c.maybeSignal()

		c.logger.Info("processing request",
			slog.String("request_id", req.id),
			slog.Int("worker", n))

		// In-flight jobs run to completion even during shutdown; the
		// reasoning client bounds each call with its own deadline.
		started := time.Now()
		diagnosis, err := c.processor.Diagnose(context.WithoutCancel(c.baseCtx), req.alertText)
		elapsed := time.Since(started)

		c.mu.Lock()
		req.finishedAt = time.Now()
		if err != nil {
			req.status = StatusFailed
			req.failure = err.Error()
			req.transient = models.IsTransient(err)
			c.logger.Warn("request failed",
				slog.String("request_id", req.id),
				slog.Bool("transient", req.transient),
				slog.Any("error", err))
		} else {
			req.status = StatusCompleted
			req.result = &diagnosis
			c.latencies.Observe(elapsed)
			c.logger.Info("request completed",
				slog.String("request_id", req.id),
				slog.Duration("elapsed", elapsed))
		}
		c.active--
		metrics.SetActiveJobs(c.active)
		c.mu.Unlock()

		// Capacity freed: let a blocked sibling check the queue.
		c.signal()
	}
}

// pullNext pops the head of the FIFO if the ceiling allows, marking it
// Processing. Returns nil when there is nothing runnable.
func (c *Controller) pullNext() *request {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || len(c.pending) == 0 || c.active >= c.workers {
		return nil
	}
	req := c.pending[0]
	c.pending = c.pending[1:]
	c.active++
	req.status = StatusProcessing
	req.startedAt = time.Now()
	metrics.SetQueueDepth(len(c.pending))
	metrics.SetActiveJobs(c.active)
	return req
}

// janitor evicts terminal entries past the retention window and queued
// entries nobody has polled within the grace period.
func (c *Controller) janitor() {
	defer c.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.baseCtx.Done():
			return
		case <-ticker.C:
			c.evictStale()
		}
	}
}

func (c *Controller) evictStale() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	evicted := 0
	for id, req := range c.byID {
		switch req.status {
		case StatusCompleted, StatusFailed:
			if now.Sub(req.finishedAt) > c.retention {
				delete(c.byID, id)
				evicted++
			}
		case StatusQueued:
			// Cooperative cancellation: a caller that stopped polling has
			// abandoned the request.
			if now.Sub(req.lastPolled) > c.pollGrace {
				delete(c.byID, id)
				c.removePendingLocked(req)
				evicted++
			}
		}
	}
	if evicted > 0 {
		metrics.SetQueueDepth(len(c.pending))
		c.logger.Debug("evicted stale requests", slog.Int("count", evicted))
	}
}

func (c *Controller) removePendingLocked(req *request) {
	for i, other := range c.pending {
		if other == req {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}
