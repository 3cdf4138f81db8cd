package form

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/tbxark/formflow/suggest"
	"github.com/tbxark/formflow/validation"
)

const checkpointVersion = "1.0"

// Checkpoint is a serializable snapshot of a form session: everything needed
// to close the form and pick it up later, including the id of a background
// job still in flight.
type Checkpoint struct {
	Version     string         `json:"version"`
	Timestamp   time.Time      `json:"timestamp"`
	Values      map[string]any `json:"values"`
	Initial     map[string]any `json:"initial"`
	UserEdited  []string       `json:"user_edited,omitempty"`
	AIAssisted  []string       `json:"ai_assisted,omitempty"`
	SavedValues map[string]any `json:"saved_values,omitempty"`
	LastSavedAt *time.Time     `json:"last_saved_at,omitempty"`
	ActiveJobID string         `json:"active_job_id,omitempty"`
}

// CreateCheckpoint serializes the current session state. History, validation
// results and live suggestion proposals are deliberately left out: validation
// is recomputed on restore and suggestions are re-requested, both may be
// stale by the time the session resumes.
func (st *Store) CreateCheckpoint() ([]byte, error) {
	st.mu.Lock()
	cp := Checkpoint{
		Version:     checkpointVersion,
		Timestamp:   time.Now(),
		Values:      copyValues(st.values),
		Initial:     copyValues(st.initial),
		UserEdited:  sortedKeys(st.userEdited),
		AIAssisted:  sortedKeys(st.aiAssisted),
		LastSavedAt: st.lastSavedAt,
	}
	if st.savedValues != nil {
		cp.SavedValues = copyValues(st.savedValues)
	}
	if st.tracker != nil {
		cp.ActiveJobID = st.tracker.Job().ID
	}
	st.mu.Unlock()

	data, err := sonic.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return data, nil
}

// RestoreCheckpoint loads a serialized session into the store, replacing all
// current state, then revalidates everything and resumes a job the
// checkpoint left in flight.
func (st *Store) RestoreCheckpoint(ctx context.Context, data []byte) error {
	var cp Checkpoint
	if err := sonic.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	if cp.Version != checkpointVersion {
		return fmt.Errorf("incompatible checkpoint version: %s (expected %s)", cp.Version, checkpointVersion)
	}

	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return fmt.Errorf("store is closed")
	}
	st.values = copyValues(cp.Values)
	if cp.Initial != nil {
		st.initial = copyValues(cp.Initial)
	}
	st.validations = make(map[string]validation.Result)
	st.suggestions = make(map[string]*suggest.State)
	st.history.clear()
	st.userEdited = make(map[string]struct{}, len(cp.UserEdited))
	for _, name := range cp.UserEdited {
		st.userEdited[name] = struct{}{}
	}
	st.aiAssisted = make(map[string]struct{}, len(cp.AIAssisted))
	for _, name := range cp.AIAssisted {
		st.aiAssisted[name] = struct{}{}
	}
	st.savedValues = nil
	if cp.SavedValues != nil {
		st.savedValues = copyValues(cp.SavedValues)
	}
	st.lastSavedAt = cp.LastSavedAt
	changed, dirty, dirtyFields := st.refreshDirtyLocked()
	listeners := make([]DirtyListener, len(st.dirtyListeners))
	copy(listeners, st.dirtyListeners)
	st.mu.Unlock()

	st.engine.ClearCache()
	if changed {
		for _, fn := range listeners {
			fn(dirty, dirtyFields)
		}
	}
	st.ValidateAll(ctx)

	if cp.ActiveJobID != "" && st.hooks.OnJobProgress != nil {
		if err := st.ResumeJob(ctx, cp.ActiveJobID); err != nil {
			return fmt.Errorf("restored session but failed to resume job: %w", err)
		}
	}
	return nil
}
