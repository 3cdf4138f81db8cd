package form

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangesAgainstInitialBaseline(t *testing.T) {
	st := New(testSchema(), WithInitialValues(map[string]any{"name": "Ada"}))
	defer st.Close()
	ctx := context.Background()

	changes, err := st.Changes()
	require.NoError(t, err)
	assert.Empty(t, changes, "clean form has no changes")

	st.SetValue(ctx, "name", "Grace", SourceUser)
	st.SetValue(ctx, "email", "g@h.io", SourceUser)

	changes, err = st.Changes()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Grace", "email": "g@h.io"}, changes)
}

func TestMarkCleanMovesBaseline(t *testing.T) {
	st := New(testSchema())
	defer st.Close()
	ctx := context.Background()

	assert.Nil(t, st.LastSavedAt())
	assert.False(t, st.IsDraftSaved())

	st.SetValue(ctx, "name", "Ada", SourceUser)
	st.MarkClean()
	require.NotNil(t, st.LastSavedAt())
	assert.True(t, st.IsDraftSaved())

	changes, err := st.Changes()
	require.NoError(t, err)
	assert.Empty(t, changes)

	// Only deltas since the checkpoint are reported.
	st.SetValue(ctx, "email", "a@b.co", SourceUser)
	assert.False(t, st.IsDraftSaved())
	changes, err = st.Changes()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"email": "a@b.co"}, changes)

	// Dirty is still measured against initial values, not the save point.
	assert.True(t, st.IsDirty())
}

func TestAutosavePersistsDirtyDraft(t *testing.T) {
	var (
		mu      sync.Mutex
		saves   int
		gotVals map[string]any
		gotDiff map[string]any
	)
	hooks := Hooks{OnSaveDraft: func(ctx context.Context, values, changes map[string]any) error {
		mu.Lock()
		saves++
		gotVals = values
		gotDiff = changes
		mu.Unlock()
		return nil
	}}
	st := New(testSchema(), WithHooks(hooks))
	defer st.Close()
	ctx := context.Background()

	// Clean form: nothing to save.
	require.NoError(t, st.Autosave(ctx))
	assert.Equal(t, 0, saves)

	st.SetValue(ctx, "name", "Ada", SourceUser)
	require.NoError(t, st.Autosave(ctx))
	require.Equal(t, 1, saves)
	assert.Equal(t, "Ada", gotVals["name"])
	assert.Equal(t, map[string]any{"name": "Ada"}, gotDiff)
	assert.True(t, st.IsDraftSaved())

	// Saved and unchanged: the next tick is a no-op.
	require.NoError(t, st.Autosave(ctx))
	assert.Equal(t, 1, saves)
}

func TestAutosaveFailureRetriesNextTick(t *testing.T) {
	var saves int
	hooks := Hooks{OnSaveDraft: func(ctx context.Context, values, changes map[string]any) error {
		saves++
		if saves == 1 {
			return fmt.Errorf("storage offline")
		}
		return nil
	}}
	st := New(testSchema(), WithHooks(hooks))
	defer st.Close()
	ctx := context.Background()

	st.SetValue(ctx, "name", "Ada", SourceUser)
	require.Error(t, st.Autosave(ctx))
	assert.Nil(t, st.LastSavedAt(), "a failed save does not move the checkpoint")

	require.NoError(t, st.Autosave(ctx))
	assert.Equal(t, 2, saves)
	assert.True(t, st.IsDraftSaved())
}
