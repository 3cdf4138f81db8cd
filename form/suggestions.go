package form

import (
	"context"
	"log/slog"
	"time"

	"github.com/tbxark/formflow/schema"
	"github.com/tbxark/formflow/suggest"
)

// SuggestionState returns a copy of the field's suggestion state, or nil
// when the field has none.
func (st *Store) SuggestionState(name string) *suggest.State {
	st.mu.Lock()
	defer st.mu.Unlock()
	state, ok := st.suggestions[name]
	if !ok {
		return nil
	}
	out := *state
	return &out
}

// SuggestionStates returns a copy of every field's suggestion state.
func (st *Store) SuggestionStates() map[string]*suggest.State {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]*suggest.State, len(st.suggestions))
	for name, state := range st.suggestions {
		s := *state
		out[name] = &s
	}
	return out
}

// RequestSuggestion asks the provider for a suggestion on one field,
// applying the same gating as the automatic trigger.
func (st *Store) RequestSuggestion(ctx context.Context, name string) {
	field, ok := st.schema.FieldByName(name)
	if !ok {
		return
	}
	st.maybeRequestSuggestion(ctx, field)
}

// maybeRequestSuggestion issues a provider call only when: the field
// declares a suggest spec, the current value is non-empty, nothing is
// already loading or expecting for the field, and any existing suggestion
// has expired. A fresh suggestion blocks a duplicate request; a none-status
// record (a job's per-field error) holds no suggestion and never does.
func (st *Store) maybeRequestSuggestion(ctx context.Context, field *schema.Field) {
	if st.hooks.OnSuggest == nil || field.Suggest == nil {
		return
	}
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	value := st.values[field.Name]
	if isBlankValue(value) {
		st.mu.Unlock()
		return
	}
	state := st.suggestions[field.Name]
	if state.Pending() {
		st.mu.Unlock()
		return
	}
	if state != nil && state.Status != suggest.StatusNone && !state.Expired(time.Now()) {
		st.mu.Unlock()
		return
	}
	st.suggestions[field.Name] = &suggest.State{
		FieldName: field.Name,
		Status:    suggest.StatusLoading,
		Active:    suggest.ActiveUser,
		UserValue: value,
		Timestamp: time.Now(),
	}
	valuesSnap := copyValues(st.values)
	st.mu.Unlock()

	asyncCtx := context.WithoutCancel(ctx)
	go func() {
		result, err := st.hooks.OnSuggest.Suggest(asyncCtx, suggest.Request{
			Field:        field,
			CurrentValue: value,
			AllValues:    valuesSnap,
		})
		if err != nil {
			// Provider failures degrade to "no suggestion available",
			// never to a form error.
			slog.Debug("Suggestion provider failed", "field", field.Name, "error", err)
			st.clearLoadingSuggestion(field.Name)
			return
		}
		if result == nil {
			st.clearLoadingSuggestion(field.Name)
			return
		}
		st.applySuggestionResult(field, *result)
	}()
}

func (st *Store) clearLoadingSuggestion(name string) {
	st.mu.Lock()
	if state := st.suggestions[name]; state != nil && state.Status == suggest.StatusLoading {
		delete(st.suggestions, name)
	}
	st.mu.Unlock()
}

// applySuggestionResult stores a provider result as an available suggestion,
// discarding it below the field's confidence threshold. A new result starts
// a new suggestion cycle: the original suggested value is (re)established
// here and never overwritten until the next cycle.
func (st *Store) applySuggestionResult(field *schema.Field, result suggest.Result) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	if result.Confidence < suggest.MinConfidence(field) {
		slog.Debug("Suggestion below confidence threshold, discarded",
			"field", field.Name, "confidence", result.Confidence)
		if state := st.suggestions[field.Name]; state.Pending() {
			delete(st.suggestions, field.Name)
		}
		return
	}
	userValue := st.values[field.Name]
	if prev := st.suggestions[field.Name]; prev != nil && prev.UserValue != nil {
		userValue = prev.UserValue
	}
	source := result.Source
	if source == "" && field.Suggest != nil {
		source = field.Suggest.Source
	}
	now := time.Now()
	expires := now.Add(time.Duration(suggest.TTL(field)) * time.Second)
	st.suggestions[field.Name] = &suggest.State{
		FieldName:              field.Name,
		Status:                 suggest.StatusAvailable,
		Active:                 suggest.ActiveUser,
		UserValue:              userValue,
		SuggestedValue:         result.Value,
		OriginalSuggestedValue: result.Value,
		Confidence:             result.Confidence,
		Reason:                 result.Reason,
		Source:                 source,
		Timestamp:              now,
		ExpiresAt:              &expires,
	}
}

// AcceptSuggestion makes the suggested value the field's active value via a
// suggested-sourced write and stamps the suggestion accepted, refreshing its
// expiry.
func (st *Store) AcceptSuggestion(ctx context.Context, name string) {
	st.acceptSuggestion(ctx, name, true)
}

func (st *Store) acceptSuggestion(ctx context.Context, name string, record bool) bool {
	field, ok := st.schema.FieldByName(name)
	if !ok {
		return false
	}
	st.mu.Lock()
	state := st.suggestions[name]
	if state == nil || state.SuggestedValue == nil {
		st.mu.Unlock()
		return false
	}
	switch state.Status {
	case suggest.StatusAvailable, suggest.StatusReviewing, suggest.StatusDismissed:
	default:
		st.mu.Unlock()
		return false
	}
	value := state.SuggestedValue
	st.mu.Unlock()

	st.setValue(ctx, name, value, SourceSuggested, EntryAcceptSuggestion, "", record, map[string]struct{}{})

	st.mu.Lock()
	if state := st.suggestions[name]; state != nil {
		state.Status = suggest.StatusAccepted
		state.Active = suggest.ActiveSuggested
		expires := time.Now().Add(time.Duration(suggest.TTL(field)) * time.Second)
		state.ExpiresAt = &expires
	}
	st.mu.Unlock()
	return true
}

// DismissSuggestion leaves the user value active and marks the suggestion
// dismissed. The proposal stays around for comparison until it expires.
func (st *Store) DismissSuggestion(ctx context.Context, name string) {
	st.dismissSuggestion(ctx, name, true)
}

func (st *Store) dismissSuggestion(ctx context.Context, name string, record bool) bool {
	st.mu.Lock()
	state := st.suggestions[name]
	if state == nil || state.Status == suggest.StatusDismissed {
		st.mu.Unlock()
		return false
	}
	userValue := state.UserValue
	state.Status = suggest.StatusDismissed
	state.Active = suggest.ActiveUser
	st.mu.Unlock()

	st.setValue(ctx, name, userValue, SourceUser, EntryDismissSuggestion, "", record, map[string]struct{}{})
	return true
}

// ToggleValue flips which side of the dual value is live and re-applies the
// corresponding value through a matching-source write, so dirty tracking and
// history see the change like any other edit.
func (st *Store) ToggleValue(ctx context.Context, name string) {
	st.mu.Lock()
	state := st.suggestions[name]
	if state == nil || state.SuggestedValue == nil {
		st.mu.Unlock()
		return
	}
	var (
		value  any
		source Source
		side   suggest.ActiveSide
	)
	if state.Active == suggest.ActiveSuggested {
		value, source, side = state.UserValue, SourceUser, suggest.ActiveUser
	} else {
		value, source, side = state.SuggestedValue, SourceSuggested, suggest.ActiveSuggested
	}
	state.Active = side
	st.mu.Unlock()

	st.setValue(ctx, name, value, source, EntryToggleValue, "", true, map[string]struct{}{})
}

// MarkAsReviewed moves an available suggestion to reviewing, recording that
// the user has looked at it.
func (st *Store) MarkAsReviewed(name string) {
	st.mu.Lock()
	if state := st.suggestions[name]; state != nil && state.Status == suggest.StatusAvailable {
		state.Status = suggest.StatusReviewing
	}
	st.mu.Unlock()
}

// ResetToOriginalSuggestion restores the provider's original proposal after
// the user hand-edited the suggested value.
func (st *Store) ResetToOriginalSuggestion(ctx context.Context, name string) {
	st.mu.Lock()
	state := st.suggestions[name]
	if state == nil || state.OriginalSuggestedValue == nil {
		st.mu.Unlock()
		return
	}
	state.SuggestedValue = state.OriginalSuggestedValue
	state.SuggestedValueModified = false
	applyLive := state.Active == suggest.ActiveSuggested
	value := state.OriginalSuggestedValue
	st.mu.Unlock()

	if applyLive {
		st.setValue(ctx, name, value, SourceSuggested, EntryFieldEdit, "Reset suggestion for "+name, true, map[string]struct{}{})
	}
}

// AcceptAllSuggestions accepts every available or reviewing suggestion,
// recording a single bulk history entry.
func (st *Store) AcceptAllSuggestions(ctx context.Context) []string {
	return st.acceptBulk(ctx, nil)
}

// AcceptAllOnPage accepts every available or reviewing suggestion for fields
// on the given page.
func (st *Store) AcceptAllOnPage(ctx context.Context, pageIndex int) []string {
	names := st.pageFieldSet(pageIndex)
	if names == nil {
		return nil
	}
	return st.acceptBulk(ctx, names)
}

// DismissAllOnPage dismisses every active suggestion for fields on the page.
func (st *Store) DismissAllOnPage(ctx context.Context, pageIndex int) []string {
	names := st.pageFieldSet(pageIndex)
	if names == nil {
		return nil
	}
	var dismissed []string
	for name := range names {
		if st.dismissSuggestion(ctx, name, false) {
			dismissed = append(dismissed, name)
		}
	}
	st.recordBulk(EntryDismissSuggestion, dismissed, "Dismissed suggestions on page")
	return dismissed
}

func (st *Store) acceptBulk(ctx context.Context, filter map[string]struct{}) []string {
	st.mu.Lock()
	var candidates []string
	for name, state := range st.suggestions {
		if filter != nil {
			if _, ok := filter[name]; !ok {
				continue
			}
		}
		if state.Status == suggest.StatusAvailable || state.Status == suggest.StatusReviewing {
			candidates = append(candidates, name)
		}
	}
	st.mu.Unlock()

	var accepted []string
	for _, name := range candidates {
		if st.acceptSuggestion(ctx, name, false) {
			accepted = append(accepted, name)
		}
	}
	st.recordBulk(EntryBulkAccept, accepted, "Accepted all suggestions")
	return accepted
}

func (st *Store) recordBulk(t EntryType, fields []string, description string) {
	if len(fields) == 0 {
		return
	}
	st.mu.Lock()
	st.history.append(t, fields, description, copyValues(st.values))
	st.mu.Unlock()
}

func (st *Store) pageFieldSet(pageIndex int) map[string]struct{} {
	if pageIndex < 0 || pageIndex >= len(st.schema.Pages) {
		return nil
	}
	names := make(map[string]struct{})
	for _, f := range st.schema.Pages[pageIndex].Fields {
		names[f.Name] = struct{}{}
	}
	return names
}

// invalidateSuggestion drops a field's suggestion as part of the dependency
// cascade; the caller re-requests afterwards.
func (st *Store) invalidateSuggestion(name string) {
	st.mu.Lock()
	delete(st.suggestions, name)
	st.mu.Unlock()
}

// SweepExpiredSuggestions clears every suggestion whose expiry has passed,
// reverting its status. Runs periodically; exported for direct use.
func (st *Store) SweepExpiredSuggestions() int {
	now := time.Now()
	st.mu.Lock()
	var cleared int
	for name, state := range st.suggestions {
		if state.Expired(now) {
			delete(st.suggestions, name)
			cleared++
		}
	}
	st.mu.Unlock()
	if cleared > 0 {
		slog.Debug("Cleared expired suggestions", "count", cleared)
	}
	return cleared
}
