package form

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Changes computes the delta between the last saved checkpoint and the
// current values as a JSON merge patch: changed and added fields carry their
// new value, removed fields appear as nil. Before the first save the baseline
// is the initial values.
func (st *Store) Changes() (map[string]any, error) {
	st.mu.Lock()
	baseline := st.savedValues
	if baseline == nil {
		baseline = st.initial
	}
	baseline = copyValues(baseline)
	current := copyValues(st.values)
	st.mu.Unlock()

	before, err := sonic.Marshal(baseline)
	if err != nil {
		return nil, fmt.Errorf("failed to encode baseline values: %w", err)
	}
	after, err := sonic.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to encode current values: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		return nil, fmt.Errorf("failed to compute change patch: %w", err)
	}
	var changes map[string]any
	if err := sonic.Unmarshal(patch, &changes); err != nil {
		return nil, fmt.Errorf("failed to decode change patch: %w", err)
	}
	return changes, nil
}

// MarkClean records the current values as the saved checkpoint, so Changes
// and IsDraftSaved report relative to this moment.
func (st *Store) MarkClean() {
	now := time.Now()
	st.mu.Lock()
	st.savedValues = copyValues(st.values)
	st.lastSavedAt = &now
	st.mu.Unlock()
}

// LastSavedAt returns when the draft was last persisted, or nil if never.
func (st *Store) LastSavedAt() *time.Time {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lastSavedAt == nil {
		return nil
	}
	t := *st.lastSavedAt
	return &t
}

// IsDraftSaved reports whether the current values match the last saved
// checkpoint.
func (st *Store) IsDraftSaved() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.savedValues == nil {
		return false
	}
	if len(st.savedValues) != len(st.values) {
		return false
	}
	for name, saved := range st.savedValues {
		cur, ok := st.values[name]
		if !ok || !valueEqual(cur, saved) {
			return false
		}
	}
	return true
}
