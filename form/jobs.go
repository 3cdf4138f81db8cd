package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tbxark/formflow/job"
	"github.com/tbxark/formflow/suggest"
)

// StartBulkSuggest hands the given source documents to the bulk suggestion
// provider. Immediate results are applied right away; when the provider
// returns a job descriptor, every affected field is marked expecting before
// any value exists so the UI can show a loading affordance, and polling
// begins. At most one job is active per session: a new job replaces the
// previous tracker.
func (st *Store) StartBulkSuggest(ctx context.Context, files []string) (*job.Job, error) {
	if st.hooks.OnBulkSuggest == nil {
		return nil, errors.New("no bulk suggestion provider configured")
	}
	snap := st.Values()
	outcome, err := st.hooks.OnBulkSuggest(ctx, files, st.schema, snap)
	if err != nil {
		return nil, fmt.Errorf("bulk suggestion failed: %w", err)
	}
	if outcome == nil {
		return nil, nil
	}
	for name, result := range outcome.Immediate {
		if field, ok := st.schema.FieldByName(name); ok {
			st.applySuggestionResult(field, result)
		}
	}
	if outcome.Job == nil {
		return nil, nil
	}
	st.startTracker(ctx, outcome.Job)
	return st.ActiveJob(), nil
}

// ResumeJob picks a job id stored across a reload back up: it fetches the
// current status once, applies any partial results already delivered, and
// continues polling if the job is still active.
func (st *Store) ResumeJob(ctx context.Context, jobID string) error {
	if st.hooks.OnJobProgress == nil {
		return errors.New("no job progress provider configured")
	}
	current, err := st.hooks.OnJobProgress(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to resume job %s: %w", jobID, err)
	}
	if current == nil {
		return nil
	}
	current.ID = jobID
	for name, value := range current.PartialResults {
		if field, ok := st.schema.FieldByName(name); ok {
			st.applySuggestionResult(field, suggest.Result{Value: value, Confidence: 1, Source: "job"})
		}
	}
	if current.Status.Terminal() {
		return nil
	}
	current.NewUpdates = nil
	st.startTracker(ctx, current)
	return nil
}

// CancelJob is a thin pass-through to the job tracker, exposed here because
// consumers interact with one unified state object. Cancellation always
// unblocks local state; a failing remote cancel is reported but does not
// leave fields stuck expecting.
func (st *Store) CancelJob(ctx context.Context, jobID string) error {
	st.mu.Lock()
	tracker := st.tracker
	st.mu.Unlock()
	if tracker == nil || tracker.Job().ID != jobID {
		return nil
	}
	return tracker.Cancel(ctx)
}

// ActiveJob returns a copy of the active job for display, or nil when none
// is running.
func (st *Store) ActiveJob() *job.Job {
	st.mu.Lock()
	tracker := st.tracker
	st.mu.Unlock()
	if tracker == nil {
		return nil
	}
	return tracker.Job()
}

func (st *Store) startTracker(ctx context.Context, descriptor *job.Job) {
	st.mu.Lock()
	previous := st.tracker
	st.tracker = nil
	st.mu.Unlock()
	if previous != nil {
		previous.Stop()
		// The replaced job resolves like a cancelled one: fields it left
		// expecting or loading revert to having no suggestion state, so
		// nothing stays stuck waiting on a job that no longer reports.
		st.clearPendingSuggestions(previous.Job().AffectedFields)
	}

	pending := pendingFields(descriptor)
	now := time.Now()
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	for _, name := range pending {
		if _, ok := st.schema.FieldByName(name); !ok {
			continue
		}
		// Anticipatory loading: expecting even before any value exists.
		st.suggestions[name] = &suggest.State{
			FieldName: name,
			Status:    suggest.StatusExpecting,
			Active:    suggest.ActiveUser,
			UserValue: st.values[name],
			Timestamp: now,
		}
	}
	tracker := job.NewTracker(descriptor, st.hooks.OnJobProgress, st.hooks.OnJobCancel,
		job.WithPollInterval(st.pollInterval),
		job.WithOnUpdate(st.handleJobUpdate),
		job.WithOnTerminal(st.handleJobTerminal),
	)
	st.tracker = tracker
	st.mu.Unlock()

	slog.Debug("Tracking suggestion job", "job", descriptor.ID, "fields", len(pending))
	tracker.Start(context.WithoutCancel(ctx))
}

func (st *Store) handleJobUpdate(jobID string, u job.Update) {
	field, ok := st.schema.FieldByName(u.FieldName)
	if !ok {
		return
	}
	st.applySuggestionResult(field, suggest.Result{
		Value:      u.Value,
		Confidence: u.Confidence,
		Source:     "job",
	})
}

// handleJobTerminal resolves fields still expecting when the job ends:
// delivered values become available, reported field errors revert to none
// with the error attached, cancellation reverts everything silently.
func (st *Store) handleJobTerminal(final *job.Job) {
	st.mu.Lock()
	for _, name := range final.AffectedFields {
		state := st.suggestions[name]
		if state == nil || !state.Pending() {
			continue
		}
		switch {
		case final.Status == job.StatusCancelled:
			delete(st.suggestions, name)
		case final.Status.Succeeded():
			if msg := final.FieldErrors[name]; msg != "" {
				st.suggestions[name] = &suggest.State{
					FieldName: name,
					Status:    suggest.StatusNone,
					Active:    suggest.ActiveUser,
					UserValue: state.UserValue,
					Error:     msg,
				}
			} else if value, ok := final.PartialResults[name]; ok {
				st.storeAvailableLocked(name, state.UserValue, value)
			} else {
				delete(st.suggestions, name)
			}
		default: // failed
			msg := final.FieldErrors[name]
			if msg == "" {
				msg = final.Error
			}
			if msg == "" {
				msg = "suggestion job failed"
			}
			st.suggestions[name] = &suggest.State{
				FieldName: name,
				Status:    suggest.StatusNone,
				Active:    suggest.ActiveUser,
				UserValue: state.UserValue,
				Error:     msg,
			}
		}
	}
	st.tracker = nil
	st.mu.Unlock()
	slog.Debug("Suggestion job finished", "job", final.ID, "status", final.Status)
}

func (st *Store) clearPendingSuggestions(names []string) {
	st.mu.Lock()
	for _, name := range names {
		if state := st.suggestions[name]; state.Pending() {
			delete(st.suggestions, name)
		}
	}
	st.mu.Unlock()
}

func (st *Store) storeAvailableLocked(name string, userValue, value any) {
	field, ok := st.schema.FieldByName(name)
	if !ok {
		return
	}
	now := time.Now()
	expires := now.Add(time.Duration(suggest.TTL(field)) * time.Second)
	st.suggestions[name] = &suggest.State{
		FieldName:              name,
		Status:                 suggest.StatusAvailable,
		Active:                 suggest.ActiveUser,
		UserValue:              userValue,
		SuggestedValue:         value,
		OriginalSuggestedValue: value,
		Confidence:             1,
		Source:                 "job",
		Timestamp:              now,
		ExpiresAt:              &expires,
	}
}

// pendingFields resolves which fields still await a value: the descriptor's
// explicit pending list when given, otherwise the affected fields minus
// anything already completed or already carrying a partial result.
func pendingFields(descriptor *job.Job) []string {
	if len(descriptor.PendingFields) > 0 {
		return descriptor.PendingFields
	}
	done := make(map[string]struct{}, len(descriptor.CompletedFields)+len(descriptor.PartialResults))
	for _, name := range descriptor.CompletedFields {
		done[name] = struct{}{}
	}
	for name := range descriptor.PartialResults {
		done[name] = struct{}{}
	}
	var out []string
	for _, name := range descriptor.AffectedFields {
		if _, ok := done[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
