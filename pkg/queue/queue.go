// Package queue provides the in-process work-report submission queue.
// It serializes writes to a Storage through a single consumer goroutine, which
// makes the duplicate pre-check race-free without any external locking:
//   - Enqueue only appends a pending Item and never touches storage
//   - one consumer picks pending items in arrival order
//   - storage calls go through a RetryPolicy (inner retries with exponential backoff)
//   - transient failures recycle the item to pending (outer retries)
//   - completed and failed items move to bounded history lists
//   - completed records are mirrored to a BackupSink without blocking the consumer
//
// Callers observe outcomes by polling Status.
package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/logger"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/tracing"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has been called or the
// Start context has ended.
var ErrQueueClosed = errors.New("queue is shut down")

// Storage is the authoritative store for work reports.
type Storage interface {
	// FindByNaturalKey returns nil, nil when no report exists for the key.
	FindByNaturalKey(ctx context.Context, employeeID, date string) (*reports.Record, error)
	Create(ctx context.Context, p reports.Payload) (*reports.Record, error)
}

// RetryOrder decides where a recycled item goes.
type RetryOrder int

const (
	// RetryInPlace keeps the item's original slot, so it is picked again
	// before anything enqueued after it.
	RetryInPlace RetryOrder = iota
	// RetryAtTail moves the item behind every other pending item.
	RetryAtTail
)

// ParseRetryOrder maps "in_place" and "tail" to a RetryOrder.
func ParseRetryOrder(s string) (RetryOrder, error) {
	switch s {
	case "", "in_place":
		return RetryInPlace, nil
	case "tail":
		return RetryAtTail, nil
	}
	return RetryInPlace, fmt.Errorf("unknown retry order %q", s)
}

// Config tunes a Queue.
type Config struct {
	MaxAttempts      int           // Outer retries before a transient failure becomes terminal (default: 3)
	Retry            RetryPolicy   // Inner retry policy for each storage call
	InterItemDelay   time.Duration // Pause between two processing passes (default: 100ms)
	HistoryLimit     int           // Cap of each history list (default: 1000)
	DurationWindow   int           // Completions kept for the average (default: 100)
	HealthyThreshold int           // Pending count at which the queue reports unhealthy (default: 50)
	RetryOrder       RetryOrder
	Logger           *zerolog.Logger
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		Retry:            DefaultRetryPolicy(),
		InterItemDelay:   100 * time.Millisecond,
		HistoryLimit:     1000,
		DurationWindow:   100,
		HealthyThreshold: 50,
		RetryOrder:       RetryInPlace,
	}
}

// Queue is the submission queue service. Construct it with New, call Start once,
// and Shutdown on exit.
type Queue struct {
	store    Storage
	notifier *BackupNotifier
	cfg      Config
	log      zerolog.Logger

	mu        sync.Mutex
	active    []*Item // pending and processing, arrival order
	byID      map[string]*Item
	completed *boundedList
	failed    *boundedList
	durations *durationWindow
	started   bool
	closed    bool
	running   bool
	loopDone  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a queue writing to store. notifier may be nil.
func New(store Storage, notifier *BackupNotifier, cfg Config) *Queue {
	def := DefaultConfig()
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.DurationWindow <= 0 {
		cfg.DurationWindow = def.DurationWindow
	}
	if cfg.HealthyThreshold <= 0 {
		cfg.HealthyThreshold = def.HealthyThreshold
	}
	if cfg.InterItemDelay < 0 {
		cfg.InterItemDelay = 0
	}

	log := logger.Component("queue")
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "queue").Logger()
	}

	return &Queue{
		store:     store,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
		byID:      make(map[string]*Item),
		completed: newBoundedList(cfg.HistoryLimit),
		failed:    newBoundedList(cfg.HistoryLimit),
		durations: newDurationWindow(cfg.DurationWindow),
	}
}

// Start enables the consumer. Items enqueued before Start are processed now.
// ctx bounds the consumer's lifetime: once it ends the consumer stops, Enqueue
// returns ErrQueueClosed, and items left pending are reported by Shutdown.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.started = true
	context.AfterFunc(q.ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.closed = true
	})
	q.log.Info().
		Int("max_attempts", q.cfg.MaxAttempts).
		Int("max_storage_attempts", q.cfg.Retry.MaxAttempts).
		Int("history_limit", q.cfg.HistoryLimit).
		Msg("submission queue started")
	q.triggerLocked()
}

// Enqueue appends a pending item and returns its id without waiting for storage.
func (q *Queue) Enqueue(p reports.Payload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", ErrQueueClosed
	}

	it := &Item{
		ID:        uuid.New().String(),
		Payload:   p,
		CreatedAt: time.Now(),
		Status:    StatusPending,
	}
	q.active = append(q.active, it)
	q.byID[it.ID] = it

	q.log.Debug().Str("item_id", it.ID).Str("natural_key", p.Key().String()).Int("active", len(q.active)).Msg("item enqueued")
	q.triggerLocked()
	return it.ID, nil
}

// triggerLocked starts the consumer if it is idle. Must hold q.mu.
func (q *Queue) triggerLocked() {
	if !q.started || q.running || q.ctx.Err() != nil {
		return
	}
	if q.firstPendingLocked() < 0 {
		return
	}
	q.running = true
	q.loopDone = make(chan struct{})
	go q.run(q.loopDone)
}

func (q *Queue) firstPendingLocked() int {
	for i, it := range q.active {
		if it.Status == StatusPending {
			return i
		}
	}
	return -1
}

// run is the single consumer. It exits when no pending item is left.
func (q *Queue) run(done chan struct{}) {
	defer close(done)
	for {
		it := q.next()
		if it == nil {
			return
		}

		q.process(it)

		select {
		case <-q.ctx.Done():
			q.mu.Lock()
			q.running = false
			q.mu.Unlock()
			return
		case <-time.After(q.cfg.InterItemDelay):
		}
	}
}

// next marks the oldest pending item as processing, or flags the consumer idle.
func (q *Queue) next() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.firstPendingLocked()
	if i < 0 || q.ctx.Err() != nil {
		q.running = false
		return nil
	}
	it := q.active[i]
	now := time.Now()
	if it.AttemptCount == 0 {
		queueLatency.Observe(now.Sub(it.CreatedAt).Seconds())
	}
	it.Status = StatusProcessing
	it.ProcessingStartedAt = &now
	it.ProcessingEndedAt = nil
	return it
}

func (q *Queue) process(it *Item) {
	key := it.Payload.Key()
	ctx, span := tracing.ItemSpan(q.ctx, it.ID, key.String(), it.AttemptCount)
	defer span.End()

	log := q.log.With().Str("item_id", it.ID).Str("natural_key", key.String()).Int("attempt", it.AttemptCount).Logger()
	ctx = log.WithContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("panic while processing item")
			q.fail(log, it, fmt.Errorf("internal error while processing report: %v", r), "failed")
		}
	}()

	log.Info().Msg("processing item")
	rec, err := q.persist(ctx, it)
	if err != nil {
		span.RecordError(err)
		q.handleFailure(log, it, err)
		return
	}
	q.complete(log, it, rec)
}

// persist runs the duplicate pre-check and the create write.
func (q *Queue) persist(ctx context.Context, it *Item) (*reports.Record, error) {
	p := it.Payload
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var existing *reports.Record
	err := q.storageCall(ctx, it, "find", func(ctx context.Context) error {
		var err error
		existing, err = q.store.FindByNaturalKey(ctx, p.EmployeeID, p.Date)
		return err
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, reports.DuplicateError(p.Key())
	}

	var rec *reports.Record
	err = q.storageCall(ctx, it, "create", func(ctx context.Context) error {
		var err error
		rec, err = q.store.Create(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("storage returned no record")
	}
	return rec, nil
}

func (q *Queue) storageCall(ctx context.Context, it *Item, op string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StorageSpan(ctx, op)
	defer span.End()

	res, err := q.cfg.Retry.Do(ctx, op, fn)
	if n := res.Retries(); n > 0 {
		q.mu.Lock()
		it.StorageRetryCount += n
		q.mu.Unlock()
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (q *Queue) handleFailure(log zerolog.Logger, it *Item, err error) {
	switch {
	case errors.Is(err, reports.ErrDuplicate):
		q.fail(log, it, err, "duplicate")
	case errors.Is(err, reports.ErrInvalidPayload):
		q.fail(log, it, err, "invalid")
	case errors.Is(err, context.Canceled) && q.ctx.Err() != nil:
		// Interrupted by shutdown; the item has not failed.
		q.requeue(log, it, err, false)
	case q.cfg.Retry.IsTransient(err) && it.AttemptCount < q.cfg.MaxAttempts:
		q.requeue(log, it, err, true)
	default:
		q.fail(log, it, err, "failed")
	}
}

func (q *Queue) requeue(log zerolog.Logger, it *Item, err error, countAttempt bool) {
	q.mu.Lock()
	if countAttempt {
		it.AttemptCount++
	}
	it.Status = StatusPending
	it.ProcessingStartedAt = nil
	if q.cfg.RetryOrder == RetryAtTail {
		q.removeActiveLocked(it)
		q.active = append(q.active, it)
	}
	attempts := it.AttemptCount
	q.mu.Unlock()

	itemsProcessed.WithLabelValues("requeued").Inc()
	log.Warn().Err(err).Int("attempt_count", attempts).Int("max_attempts", q.cfg.MaxAttempts).Msg("item returned to pending")
}

func (q *Queue) fail(log zerolog.Logger, it *Item, err error, outcome string) {
	now := time.Now()

	q.mu.Lock()
	if it.Status.Terminal() {
		q.mu.Unlock()
		return
	}
	it.Status = StatusFailed
	it.ErrorMessage = err.Error()
	it.Result = nil
	it.ProcessingEndedAt = &now
	q.removeActiveLocked(it)
	delete(q.byID, it.ID)
	evicted := q.failed.push(it)
	q.mu.Unlock()

	itemsProcessed.WithLabelValues(outcome).Inc()
	log.Error().Err(err).Str("outcome", outcome).Int("evicted", evicted).Msg("item failed")
}

func (q *Queue) complete(log zerolog.Logger, it *Item, rec *reports.Record) {
	now := time.Now()

	q.mu.Lock()
	it.Status = StatusCompleted
	it.Result = rec
	it.ErrorMessage = ""
	it.ProcessingEndedAt = &now
	elapsed := it.processingTime()
	q.durations.add(float64(elapsed) / float64(time.Millisecond))
	q.removeActiveLocked(it)
	delete(q.byID, it.ID)
	q.completed.push(it)
	q.mu.Unlock()

	itemsProcessed.WithLabelValues("completed").Inc()
	processingDuration.Observe(elapsed.Seconds())
	log.Info().Str("record_id", rec.ID).Dur("elapsed", elapsed).Msg("item completed")

	q.notifier.Notify(*rec)
}

func (q *Queue) removeActiveLocked(it *Item) {
	for i, a := range q.active {
		if a == it {
			copy(q.active[i:], q.active[i+1:])
			q.active[len(q.active)-1] = nil
			q.active = q.active[:len(q.active)-1]
			return
		}
	}
}

// Status returns the current state of the item with the given id.
// ok is false when the id is unknown or has been evicted from history.
func (q *Queue) Status(id string) (resp StatusResponse, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if it, found := q.byID[id]; found {
		return newStatusResponse(it), true
	}
	if it, found := q.completed.get(id); found {
		return newStatusResponse(it), true
	}
	if it, found := q.failed.get(id); found {
		return newStatusResponse(it), true
	}
	return StatusResponse{}, false
}

// AggregateStatus returns counts, the rolling average and the health flag.
func (q *Queue) AggregateStatus() Metrics {
	q.mu.Lock()
	defer q.mu.Unlock()

	var m Metrics
	for _, it := range q.active {
		switch it.Status {
		case StatusPending:
			m.Pending++
		case StatusProcessing:
			m.Processing++
		}
	}
	m.Completed = q.completed.len()
	m.Failed = q.failed.len()
	m.Total = m.Pending + m.Processing + m.Completed + m.Failed
	m.AvgProcessingTimeMs = q.durations.average()
	m.Healthy = m.Pending < q.cfg.HealthyThreshold
	return m
}

// Items returns copies of up to limit items in the given status.
// Active items come in arrival order, history newest first.
// An empty status returns every active item.
func (q *Queue) Items(status Status, limit int) []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	var src []*Item
	switch status {
	case StatusCompleted:
		src = q.completed.recent(limit)
	case StatusFailed:
		src = q.failed.recent(limit)
	default:
		for _, it := range q.active {
			if status == "" || it.Status == status {
				src = append(src, it)
			}
		}
		if limit > 0 && len(src) > limit {
			src = src[:limit]
		}
	}

	out := make([]Item, 0, len(src))
	for _, it := range src {
		out = append(out, it.clone())
	}
	return out
}

// ClearHistory drops all terminal items and returns how many were removed.
// Pending and processing items are never touched.
func (q *Queue) ClearHistory() int {
	q.mu.Lock()
	n := q.completed.clear() + q.failed.clear()
	q.mu.Unlock()

	q.log.Info().Int("cleared", n).Msg("history cleared")
	return n
}

// Shutdown stops accepting items, lets the consumer drain every pending item,
// then waits for in-flight backup mirrors. If ctx ends first the consumer is
// cancelled and ctx.Err() is returned. If the consumer was already stopped by
// the Start context, the items it left pending are reported as an error.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	started := q.started
	q.mu.Unlock()

	if !started {
		return q.notifier.Wait(ctx)
	}

	for {
		q.mu.Lock()
		running, done := q.running, q.loopDone
		q.mu.Unlock()
		if !running {
			break
		}
		select {
		case <-done:
		case <-ctx.Done():
			q.cancel()
			<-done
			q.log.Warn().Err(ctx.Err()).Msg("shutdown deadline reached before queue drained")
			return ctx.Err()
		}
	}
	startErr := q.ctx.Err()
	q.cancel()

	if err := q.notifier.Wait(ctx); err != nil {
		return err
	}
	if startErr != nil {
		if pending := q.AggregateStatus().Pending; pending > 0 {
			q.log.Warn().Err(startErr).Int("pending", pending).Msg("queue stopped before draining")
			return fmt.Errorf("queue stopped with %d items pending: %w", pending, startErr)
		}
	}
	q.log.Info().Msg("submission queue drained")
	return nil
}
