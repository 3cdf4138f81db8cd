package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultPollInterval is how often the tracker asks the status provider
	// for progress.
	DefaultPollInterval = 2000 * time.Millisecond

	// maxConsecutivePollFailures converts a flaky provider into a local
	// failed status instead of polling forever.
	maxConsecutivePollFailures = 3
)

// ProgressFunc fetches the current job state from the external executor.
type ProgressFunc func(ctx context.Context, jobID string) (*Job, error)

// CancelFunc asks the external executor to abandon the job.
type CancelFunc func(ctx context.Context, jobID string) error

// Tracker polls one background job and reports de-duplicated field updates
// and the terminal transition to its owner. It never mutates form state
// itself; the form store wires the callbacks to its own mutation API.
type Tracker struct {
	progress ProgressFunc
	cancel   CancelFunc
	interval time.Duration

	onUpdate   func(jobID string, u Update)
	onTerminal func(j *Job)

	mu       sync.Mutex
	job      *Job
	applied  map[string]struct{}
	failures int
	timer    *time.Timer
	stopped  bool
	started  bool
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithPollInterval overrides the default poll interval.
func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithOnUpdate registers the callback invoked once per new field update.
func WithOnUpdate(fn func(jobID string, u Update)) TrackerOption {
	return func(t *Tracker) {
		t.onUpdate = fn
	}
}

// WithOnTerminal registers the callback invoked exactly once when the job
// reaches a terminal status (including local cancellation).
func WithOnTerminal(fn func(j *Job)) TrackerOption {
	return func(t *Tracker) {
		t.onTerminal = fn
	}
}

// NewTracker builds a tracker for the given job descriptor.
func NewTracker(j *Job, progress ProgressFunc, cancel CancelFunc, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		progress: progress,
		cancel:   cancel,
		interval: DefaultPollInterval,
		job:      cloneJob(j),
		applied:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Job returns a copy of the last known job state for display.
func (t *Tracker) Job() *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneJob(t.job)
}

// Active reports whether the tracker is still polling.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started && !t.stopped
}

// Start begins polling. Updates already present on the descriptor are
// applied first so callers that received immediate partial results do not
// lose them.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	if snapshot := t.Job(); len(snapshot.NewUpdates) > 0 || snapshot.Status.Terminal() {
		t.apply(snapshot)
	}
	t.schedule(ctx)
}

// Resume fetches current status once for a job id stored across a reload
// and, if the job is still active, continues polling. A terminal status is
// reported through the terminal callback immediately.
func (t *Tracker) Resume(ctx context.Context) error {
	current, err := t.progress(ctx, t.Job().ID)
	if err != nil {
		return fmt.Errorf("failed to resume job: %w", err)
	}
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()
	t.apply(current)
	if !current.Status.Terminal() {
		t.schedule(ctx)
	}
	return nil
}

// Cancel stops polling immediately and reverts local state, then asks the
// executor to abandon the job. A failing remote cancel is logged but never
// leaves the local UI stuck waiting: the terminal callback fires regardless.
func (t *Tracker) Cancel(ctx context.Context) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.job.Status = StatusCancelled
	now := time.Now()
	t.job.CompletedAt = &now
	final := cloneJob(t.job)
	t.mu.Unlock()

	var remoteErr error
	if t.cancel != nil {
		if err := t.cancel(ctx, final.ID); err != nil {
			slog.Warn("Remote job cancellation failed, unblocking locally", "job", final.ID, "error", err)
			remoteErr = fmt.Errorf("remote cancel failed: %w", err)
		}
	}
	if t.onTerminal != nil {
		t.onTerminal(final)
	}
	return remoteErr
}

// Stop halts polling without cancelling the remote job or firing callbacks.
// Used when the owning store is closed.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}

func (t *Tracker) schedule(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.timer = time.AfterFunc(t.interval, func() {
		t.poll(ctx)
	})
}

func (t *Tracker) poll(ctx context.Context) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	id := t.job.ID
	t.mu.Unlock()

	current, err := t.progress(ctx, id)
	if err != nil {
		t.mu.Lock()
		t.failures++
		failures := t.failures
		t.mu.Unlock()
		slog.Warn("Job poll failed", "job", id, "attempt", failures, "error", err)
		if failures >= maxConsecutivePollFailures {
			t.failLocally(err)
			return
		}
		t.schedule(ctx)
		return
	}

	t.mu.Lock()
	t.failures = 0
	t.mu.Unlock()

	t.apply(current)
	if !current.Status.Terminal() {
		t.schedule(ctx)
	}
}

// apply merges a poll result into the tracked job and dispatches callbacks.
// A cancelled tracker discards the result: no state change may happen after
// cancellation, even from an already-queued poll.
func (t *Tracker) apply(current *Job) {
	if current == nil {
		return
	}
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}

	t.job.Status = current.Status
	t.job.Progress = current.Progress
	if len(current.AffectedFields) > 0 {
		t.job.AffectedFields = current.AffectedFields
	}
	t.job.CompletedFields = current.CompletedFields
	t.job.PendingFields = current.PendingFields
	t.job.FieldErrors = current.FieldErrors
	t.job.Error = current.Error
	t.job.Blocking = current.Blocking
	t.job.UpdatedAt = time.Now()
	if t.job.PartialResults == nil {
		t.job.PartialResults = make(map[string]any)
	}
	for name, value := range current.PartialResults {
		t.job.PartialResults[name] = value
	}

	var fresh []Update
	for _, u := range current.NewUpdates {
		key := u.FieldName + "\x00" + u.Timestamp.UTC().Format(time.RFC3339Nano)
		if _, seen := t.applied[key]; seen {
			continue
		}
		t.applied[key] = struct{}{}
		t.job.PartialResults[u.FieldName] = u.Value
		fresh = append(fresh, u)
	}

	terminal := current.Status.Terminal()
	if terminal {
		t.stopped = true
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		now := time.Now()
		t.job.CompletedAt = &now
	}
	id := t.job.ID
	final := cloneJob(t.job)
	t.mu.Unlock()

	if t.onUpdate != nil {
		for _, u := range fresh {
			t.onUpdate(id, u)
		}
	}
	if terminal && t.onTerminal != nil {
		t.onTerminal(final)
	}
}

func (t *Tracker) failLocally(cause error) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.job.Status = StatusFailed
	t.job.Error = cause.Error()
	now := time.Now()
	t.job.CompletedAt = &now
	final := cloneJob(t.job)
	t.mu.Unlock()

	if t.onTerminal != nil {
		t.onTerminal(final)
	}
}

func cloneJob(j *Job) *Job {
	if j == nil {
		return &Job{}
	}
	out := *j
	out.AffectedFields = append([]string(nil), j.AffectedFields...)
	out.CompletedFields = append([]string(nil), j.CompletedFields...)
	out.PendingFields = append([]string(nil), j.PendingFields...)
	out.NewUpdates = append([]Update(nil), j.NewUpdates...)
	if j.PartialResults != nil {
		out.PartialResults = make(map[string]any, len(j.PartialResults))
		for k, v := range j.PartialResults {
			out.PartialResults[k] = v
		}
	}
	if j.FieldErrors != nil {
		out.FieldErrors = make(map[string]string, len(j.FieldErrors))
		for k, v := range j.FieldErrors {
			out.FieldErrors[k] = v
		}
	}
	return &out
}
