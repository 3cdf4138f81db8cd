package form

import (
	"context"
	"fmt"
	"log/slog"
)

// Autosave persists the current draft through the save hook if the form is
// dirty and differs from the last saved checkpoint. A clean form is a no-op.
// The autosave loop calls this on its timer; callers may also invoke it
// directly, for example before navigating away.
func (st *Store) Autosave(ctx context.Context) error {
	if st.hooks.OnSaveDraft == nil {
		return nil
	}
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return nil
	}
	dirty := len(st.dirtyFieldsLocked()) > 0
	st.mu.Unlock()
	if !dirty || st.IsDraftSaved() {
		return nil
	}

	changes, err := st.Changes()
	if err != nil {
		slog.Warn("Autosave skipped, change computation failed", "error", err)
		return err
	}
	snap := st.Values()
	if err := st.hooks.OnSaveDraft(ctx, snap, changes); err != nil {
		// Draft persistence is best effort. The next tick retries.
		slog.Warn("Autosave failed", "error", err)
		return fmt.Errorf("failed to save draft: %w", err)
	}
	st.MarkClean()
	slog.Debug("Draft autosaved", "fields", len(changes))
	return nil
}
