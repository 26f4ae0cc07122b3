// Package orchestrator runs batches of images through the enhancement
// pipeline with bounded concurrency, per-task retry budgets and a
// partial-success completion model.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/propfoto/propfoto/internal/colorspace"
	"github.com/propfoto/propfoto/internal/enhance"
	"github.com/propfoto/propfoto/internal/metrics"
	"github.com/propfoto/propfoto/internal/storage"
)

// Status is the lifecycle state of a batch.
type Status string

const (
	StatusPending            Status = "pending"
	StatusProcessing         Status = "processing"
	StatusCompleted          Status = "completed"
	StatusPartiallyCompleted Status = "partially_completed"
	StatusFailed             Status = "failed"
	StatusCancelled          Status = "cancelled"
)

// TaskStatus is the lifecycle state of a single image within a batch.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskInFlight TaskStatus = "in_flight"
	TaskAccepted TaskStatus = "accepted"
	TaskRejected TaskStatus = "rejected"
	TaskErrored  TaskStatus = "errored"
)

// Image is one unit of work in a batch. Data carries the raw bytes; when
// Fetch is set it is called instead, once per attempt, so the orchestrator
// can retry transient retrieval failures.
type Image struct {
	ID    string
	Name  string
	Data  []byte
	Fetch func(ctx context.Context) ([]byte, error)
}

// Runner is the per-image processing contract; *enhance.Pipeline satisfies
// it. Tests substitute fault-injecting runners.
type Runner interface {
	Run(data []byte, params enhance.Params) (*enhance.Result, error)
}

// TaskView is the externally visible state of one task.
type TaskView struct {
	ImageID  string     `json:"image_id" yaml:"image_id"`
	Name     string     `json:"name" yaml:"name"`
	Status   TaskStatus `json:"status" yaml:"status"`
	Attempts int        `json:"attempts" yaml:"attempts"`
	Reason   string     `json:"reason,omitempty" yaml:"reason,omitempty"`
	BlobKey  string     `json:"blob_key,omitempty" yaml:"blob_key,omitempty"`
}

// Snapshot is a consistent point-in-time view of a batch. The counters
// always satisfy Pending+InFlight+Accepted+Rejected+Errored == Total.
type Snapshot struct {
	BatchID    string     `json:"batch_id" yaml:"batch_id"`
	ListingID  string     `json:"listing_id" yaml:"listing_id"`
	Status     Status     `json:"status" yaml:"status"`
	Total      int        `json:"total" yaml:"total"`
	Pending    int        `json:"pending" yaml:"pending"`
	InFlight   int        `json:"in_flight" yaml:"in_flight"`
	Accepted   int        `json:"accepted" yaml:"accepted"`
	Rejected   int        `json:"rejected" yaml:"rejected"`
	Errored    int        `json:"errored" yaml:"errored"`
	Tasks      []TaskView `json:"tasks" yaml:"tasks"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

type task struct {
	image    Image
	status   TaskStatus
	attempts int
	reason   string
	blobKey  string
	record   storage.ImageRecord
}

type batch struct {
	id        string
	listingID string
	params    enhance.Params

	// mu guards status and tasks; only the owner goroutine writes, so every
	// task transition has exactly one writer and snapshots read consistently.
	mu         sync.RWMutex
	status     Status
	tasks      []*task
	startedAt  time.Time
	finishedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator dispatches batches against a shared worker budget.
type Orchestrator struct {
	config   Config
	runner   Runner
	blobs    storage.BlobStore
	meta     storage.MetadataStore
	notifier storage.Notifier
	logger   *slog.Logger

	mu      sync.RWMutex
	batches map[string]*batch
}

// New wires an orchestrator. blobs and meta are required; a nil notifier
// falls back to log-based notification.
func New(config Config, runner Runner, blobs storage.BlobStore, meta storage.MetadataStore,
	notifier storage.Notifier, logger *slog.Logger,
) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if blobs == nil || meta == nil {
		return nil, errors.New("blob and metadata stores are required")
	}
	if notifier == nil {
		notifier = &storage.LogNotifier{Logger: logger}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		config:   config,
		runner:   runner,
		blobs:    blobs,
		meta:     meta,
		notifier: notifier,
		logger:   logger,
		batches:  make(map[string]*batch),
	}, nil
}

// Submit registers a batch of images belonging to one listing and returns
// the batch id immediately; processing runs in the background. Params are
// validated up front: a misconfigured profile is a caller error, not
// something to burn worker time on. An empty listingID gets a generated id
// so persisted records always tie back to something.
func (o *Orchestrator) Submit(ctx context.Context, listingID string, images []Image, params enhance.Params) (string, error) {
	if len(images) == 0 {
		return "", errors.New("batch must contain at least one image")
	}
	if err := params.Validate(); err != nil {
		return "", fmt.Errorf("enhancement params: %w", err)
	}
	if listingID == "" {
		listingID = uuid.NewString()
	}

	batchCtx, cancel := context.WithCancel(ctx)
	b := &batch{
		id:        uuid.NewString(),
		listingID: listingID,
		params:    params,
		status:    StatusPending,
		tasks:     make([]*task, len(images)),
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for i, img := range images {
		if img.ID == "" {
			img.ID = uuid.NewString()
		}
		b.tasks[i] = &task{image: img, status: TaskPending}
	}

	o.mu.Lock()
	o.batches[b.id] = b
	o.mu.Unlock()

	go o.run(batchCtx, b)
	return b.id, nil
}

// Snapshot returns the current state of a batch.
func (o *Orchestrator) Snapshot(batchID string) (Snapshot, bool) {
	o.mu.RLock()
	b, ok := o.batches[batchID]
	o.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return b.snapshot(), true
}

// Cancel stops dispatching new tasks from the batch; in-flight tasks are
// allowed to finish. Returns false when the batch is unknown.
func (o *Orchestrator) Cancel(batchID string) bool {
	o.mu.RLock()
	b, ok := o.batches[batchID]
	o.mu.RUnlock()
	if !ok {
		return false
	}
	b.cancel()
	return true
}

// Done returns a channel closed once the batch reaches a terminal status.
func (o *Orchestrator) Done(batchID string) (<-chan struct{}, bool) {
	o.mu.RLock()
	b, ok := o.batches[batchID]
	o.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return b.done, true
}

// Wait blocks until the batch settles and returns its final snapshot.
func (o *Orchestrator) Wait(ctx context.Context, batchID string) (Snapshot, error) {
	done, ok := o.Done(batchID)
	if !ok {
		return Snapshot{}, fmt.Errorf("unknown batch: %s", batchID)
	}
	select {
	case <-done:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	snap, _ := o.Snapshot(batchID)
	return snap, nil
}

type taskOutcome struct {
	index    int
	status   TaskStatus
	attempts int
	reason   string
	blobKey  string
	record   storage.ImageRecord
	fatal    error
}

type taskUpdate struct {
	index   int
	started bool
	skipped bool
	outcome *taskOutcome
}

// run is the per-batch owner goroutine: it is the only writer of the batch
// state and consumes updates from the dispatcher and the workers.
func (o *Orchestrator) run(ctx context.Context, b *batch) {
	defer close(b.done)
	defer b.cancel()

	metrics.BatchesInFlight.Inc()
	defer metrics.BatchesInFlight.Dec()

	b.mu.Lock()
	b.status = StatusProcessing
	b.mu.Unlock()

	updates := make(chan taskUpdate)
	go o.dispatch(ctx, b, updates)

	var fatal error
	skipped := 0
	terminal := 0
	for terminal+skipped < len(b.tasks) {
		upd := <-updates
		b.mu.Lock()
		switch {
		case upd.started:
			b.tasks[upd.index].status = TaskInFlight
		case upd.skipped:
			skipped++
		default:
			out := upd.outcome
			t := b.tasks[upd.index]
			t.status = out.status
			t.attempts = out.attempts
			t.reason = out.reason
			t.blobKey = out.blobKey
			t.record = out.record
			terminal++
			if out.fatal != nil && fatal == nil {
				fatal = out.fatal
			}
		}
		b.mu.Unlock()

		if upd.outcome != nil && upd.outcome.fatal != nil {
			// Misconfigured profile: every sibling task would fail the same
			// way, so stop dispatching and fail the batch.
			b.cancel()
		}
		if upd.outcome != nil {
			o.persistRecord(b, upd.outcome)
		}
	}

	o.finalize(b, fatal, skipped)
}

// dispatch feeds tasks into the bounded worker pool until the batch context
// is cancelled; remaining tasks are reported as skipped.
func (o *Orchestrator) dispatch(ctx context.Context, b *batch, updates chan<- taskUpdate) {
	sem := make(chan struct{}, o.config.MaxConcurrent)
	var wg sync.WaitGroup
	for i := range b.tasks {
		select {
		case <-ctx.Done():
			updates <- taskUpdate{index: i, skipped: true}
			continue
		case sem <- struct{}{}:
		}
		updates <- taskUpdate{index: i, started: true}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			out := o.process(ctx, b, idx)
			updates <- taskUpdate{index: idx, outcome: &out}
		}(i)
	}
	wg.Wait()
}

// process runs one task to a terminal status, retrying transient failures
// with exponential backoff up to the configured budget.
func (o *Orchestrator) process(ctx context.Context, b *batch, idx int) taskOutcome {
	t := b.tasks[idx]
	img := t.image
	out := taskOutcome{index: idx}

	var lastErr error
	maxAttempts := o.config.RetryBudget + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.attempts = attempt
		if attempt > 1 {
			metrics.RetriesTotal.Inc()
			backoff := o.config.RetryBackoff << (attempt - 2)
			o.logger.Debug("retrying image",
				"batch_id", b.id, "image_id", img.ID, "attempt", attempt, "backoff", backoff)
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				// A cancelled batch settles its retrying tasks right away
				// instead of burning the rest of the backoff.
				timer.Stop()
				out.attempts = attempt - 1
				o.fillOutcome(&out, b, img, TaskErrored,
					fmt.Sprintf("cancelled while waiting to retry: %v", lastErr), nil)
				return out
			}
		}

		data, err := o.fetch(ctx, img)
		if err != nil {
			lastErr = err
			continue
		}
		metrics.UploadSizeBytes.Observe(float64(len(data)))

		start := time.Now()
		result, err := o.runner.Run(data, b.params)
		if err != nil {
			var paramErr *colorspace.ParameterError
			var valErr *enhance.ValidationError
			switch {
			case errors.As(err, &paramErr):
				out.fatal = err
				o.fillOutcome(&out, b, img, TaskErrored, err.Error(), nil)
				return out
			case errors.As(err, &valErr):
				o.fillOutcome(&out, b, img, TaskRejected, err.Error(), nil)
				return out
			case IsTransient(err):
				lastErr = err
				continue
			default:
				o.fillOutcome(&out, b, img, TaskErrored, err.Error(), nil)
				return out
			}
		}
		metrics.ProcessingDuration.WithLabelValues(string(b.params.Scene)).Observe(time.Since(start).Seconds())
		metrics.QualityScore.Observe(result.Verdict.Score)

		if !result.Accepted() {
			reason := strings.Join(result.Verdict.Reasons, "; ")
			o.fillOutcome(&out, b, img, TaskRejected, reason, result)
			return out
		}

		key := fmt.Sprintf("%s/%s.jpg", b.id, img.ID)
		if err := o.store(ctx, key, result.Bytes); err != nil {
			lastErr = &TransientError{Operation: "persist", Err: err}
			continue
		}
		out.blobKey = key
		o.fillOutcome(&out, b, img, TaskAccepted, "", result)
		return out
	}

	reason := "retry budget exhausted"
	if lastErr != nil {
		reason = fmt.Sprintf("retry budget exhausted: %v", lastErr)
	}
	o.fillOutcome(&out, b, img, TaskErrored, reason, nil)
	return out
}

func (o *Orchestrator) fetch(ctx context.Context, img Image) ([]byte, error) {
	if img.Fetch == nil {
		return img.Data, nil
	}
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.StorageTimeout)
	defer cancel()
	data, err := img.Fetch(fetchCtx)
	if err != nil {
		if IsTransient(err) {
			return nil, err
		}
		return nil, &TransientError{Operation: "fetch", Err: err}
	}
	return data, nil
}

// store persists accepted bytes. The context is detached from batch
// cancellation so an in-flight task can still land its output.
func (o *Orchestrator) store(ctx context.Context, key string, data []byte) error {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.StorageTimeout)
	defer cancel()
	return o.blobs.Put(storeCtx, key, data)
}

func (o *Orchestrator) fillOutcome(out *taskOutcome, b *batch, img Image,
	status TaskStatus, reason string, result *enhance.Result,
) {
	out.status = status
	out.reason = reason
	metrics.ImagesProcessedTotal.WithLabelValues(string(status)).Inc()

	rec := storage.ImageRecord{
		ListingID:  b.listingID,
		BatchID:    b.id,
		ImageID:    img.ID,
		SourceName: img.Name,
		Attempts:   out.attempts,
		BlobKey:    out.blobKey,
		Error:      reason,
		FinishedAt: time.Now(),
	}
	switch status {
	case TaskAccepted:
		rec.State = enhance.StateAccepted
		rec.Error = ""
	case TaskRejected:
		rec.State = enhance.StateRejected
	default:
		rec.State = enhance.StateReceived
	}
	if result != nil {
		rec.Verdict = result.Verdict
		rec.Width = result.Width
		rec.Height = result.Height
	}
	out.record = rec
}

// persistRecord writes the per-image record; failures are logged, never
// allowed to disturb sibling tasks.
func (o *Orchestrator) persistRecord(b *batch, out *taskOutcome) {
	ctx, cancel := context.WithTimeout(context.Background(), o.config.StorageTimeout)
	defer cancel()
	if err := o.meta.SaveImage(ctx, out.record); err != nil {
		o.logger.Warn("failed to persist image record",
			"batch_id", b.id, "image_id", out.record.ImageID, "error", err)
	}
}

// finalize computes the terminal batch status, persists the summary and
// notifies downstream consumers.
func (o *Orchestrator) finalize(b *batch, fatal error, skipped int) {
	b.mu.Lock()
	accepted, rejected, errored := 0, 0, 0
	for _, t := range b.tasks {
		switch t.status {
		case TaskAccepted:
			accepted++
		case TaskRejected:
			rejected++
		case TaskErrored:
			errored++
		}
	}
	switch {
	case fatal != nil:
		b.status = StatusFailed
	case skipped > 0:
		b.status = StatusCancelled
	case rejected == 0 && errored == 0:
		b.status = StatusCompleted
	case accepted == 0:
		b.status = StatusFailed
	default:
		b.status = StatusPartiallyCompleted
	}
	b.finishedAt = time.Now()
	sum := storage.BatchSummary{
		BatchID:    b.id,
		ListingID:  b.listingID,
		Status:     string(b.status),
		Total:      len(b.tasks),
		Accepted:   accepted,
		Rejected:   rejected,
		Errored:    errored,
		StartedAt:  b.startedAt,
		FinishedAt: b.finishedAt,
		Elapsed:    b.finishedAt.Sub(b.startedAt),
	}
	b.mu.Unlock()

	metrics.BatchesTotal.WithLabelValues(string(sum.Status)).Inc()
	metrics.BatchDuration.Observe(sum.Elapsed.Seconds())

	ctx, cancel := context.WithTimeout(context.Background(), o.config.StorageTimeout)
	defer cancel()
	if err := o.meta.SaveBatch(ctx, sum); err != nil {
		o.logger.Warn("failed to persist batch summary", "batch_id", b.id, "error", err)
	}
	if err := o.notifier.BatchFinished(ctx, sum); err != nil {
		o.logger.Warn("failed to notify batch completion", "batch_id", b.id, "error", err)
	}
	if fatal != nil {
		o.logger.Error("batch aborted by configuration error", "batch_id", b.id, "error", fatal)
	}
}

func (b *batch) snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := Snapshot{
		BatchID:   b.id,
		ListingID: b.listingID,
		Status:    b.status,
		Total:     len(b.tasks),
		Tasks:     make([]TaskView, len(b.tasks)),
		StartedAt: b.startedAt,
	}
	if b.status != StatusPending && b.status != StatusProcessing {
		snap.FinishedAt = b.finishedAt
	}
	for i, t := range b.tasks {
		snap.Tasks[i] = TaskView{
			ImageID:  t.image.ID,
			Name:     t.image.Name,
			Status:   t.status,
			Attempts: t.attempts,
			Reason:   t.reason,
			BlobKey:  t.blobKey,
		}
		switch t.status {
		case TaskPending:
			snap.Pending++
		case TaskInFlight:
			snap.InFlight++
		case TaskAccepted:
			snap.Accepted++
		case TaskRejected:
			snap.Rejected++
		case TaskErrored:
			snap.Errored++
		}
	}
	return snap
}
