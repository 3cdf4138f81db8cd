package form

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/formflow/schema"
	"github.com/tbxark/formflow/validation"
)

func intPtr(n int) *int { return &n }

func testSchema() *schema.Schema {
	return &schema.Schema{
		Version: "1.0",
		Pages: []schema.Page{
			{
				ID: "basic",
				Fields: []schema.Field{
					{Name: "name", Type: "text", Required: true, Validation: &schema.ValidationSpec{MinLength: intPtr(2)}},
					{Name: "email", Type: "email", Validation: &schema.ValidationSpec{Email: true}},
					{Name: "country", Type: "select", DefaultValue: "DE"},
					{Name: "city", Type: "text", DependsOn: []string{"country"}},
				},
			},
		},
	}
}

type dirtyRecorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *dirtyRecorder) listen(dirty bool, fields []string) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string(nil), fields...))
	r.mu.Unlock()
}

func (r *dirtyRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestSetValueAndDefaults(t *testing.T) {
	st := New(testSchema())
	defer st.Close()
	ctx := context.Background()

	assert.Equal(t, "DE", st.Value("country"), "schema defaults are applied at mount")
	assert.False(t, st.IsDirty())

	st.SetValue(ctx, "name", "Ada", SourceUser)
	assert.Equal(t, "Ada", st.Value("name"))
	assert.True(t, st.IsDirty())
	assert.Equal(t, []string{"name"}, st.DirtyFields())
	assert.Equal(t, []string{"name"}, st.UserEditedFields())
}

func TestInitialValuesOverrideDefaults(t *testing.T) {
	st := New(testSchema(), WithInitialValues(map[string]any{
		"country": "FR",
		"ghost":   "ignored",
	}))
	defer st.Close()

	assert.Equal(t, "FR", st.Value("country"))
	assert.Nil(t, st.Value("ghost"), "unknown initial keys are dropped")
	assert.False(t, st.IsDirty(), "initial values are part of the clean baseline")
}

func TestIdempotentWrite(t *testing.T) {
	st := New(testSchema())
	defer st.Close()
	ctx := context.Background()
	rec := &dirtyRecorder{}
	st.OnDirtyChanged(rec.listen)

	st.SetValue(ctx, "name", "Ada", SourceUser)
	require.Len(t, st.History(), 1)
	require.Equal(t, 1, rec.count())

	// Writing the stored value again is a complete no-op.
	st.SetValue(ctx, "name", "Ada", SourceUser)
	assert.Len(t, st.History(), 1)
	assert.Equal(t, 1, rec.count())
}

func TestUnknownFieldIsNoOp(t *testing.T) {
	st := New(testSchema())
	defer st.Close()

	st.SetValue(context.Background(), "does-not-exist", "x", SourceUser)
	assert.Empty(t, st.History())
	assert.False(t, st.IsDirty())
}

func TestDirtyIsRecomputedNotCached(t *testing.T) {
	st := New(testSchema())
	defer st.Close()
	ctx := context.Background()

	st.SetValue(ctx, "country", "FR", SourceUser)
	assert.True(t, st.IsDirty())

	// Writing the initial value back makes the form clean again.
	st.SetValue(ctx, "country", "DE", SourceUser)
	assert.False(t, st.IsDirty())
	assert.Empty(t, st.DirtyFields())
}

func TestDirtyNotificationFiresOnlyOnSetChange(t *testing.T) {
	st := New(testSchema())
	defer st.Close()
	ctx := context.Background()
	rec := &dirtyRecorder{}
	st.OnDirtyChanged(rec.listen)

	st.SetValue(ctx, "name", "Ada", SourceUser)
	require.Equal(t, 1, rec.count())

	// name stays dirty; the dirty set is unchanged, so no notification.
	st.SetValue(ctx, "name", "Grace", SourceUser)
	assert.Equal(t, 1, rec.count())

	st.SetValue(ctx, "email", "g@h.io", SourceUser)
	assert.Equal(t, 2, rec.count())
}

func TestSyncValidationStoredOnWrite(t *testing.T) {
	st := New(testSchema())
	defer st.Close()
	ctx := context.Background()

	st.SetValue(ctx, "name", "A", SourceUser)
	r, ok := st.ValidationResult("name")
	require.True(t, ok)
	assert.False(t, r.Valid)
	assert.Equal(t, "Must be at least 2 characters", r.Message)
	assert.False(t, st.IsValid())
	assert.Contains(t, st.Errors(), "name")

	st.SetValue(ctx, "name", "Ada", SourceUser)
	r, ok = st.ValidationResult("name")
	require.True(t, ok)
	assert.True(t, r.Valid)
	assert.True(t, st.IsValid())
}

func TestStaleAsyncResultDiscarded(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	s := testSchema()
	s.Pages[0].Fields = append(s.Pages[0].Fields, schema.Field{
		Name: "code",
		Type: "text",
		Validation: &schema.ValidationSpec{
			ValidateAsync: func(ctx context.Context, value any, env schema.AsyncEnv) (*schema.AsyncOutcome, error) {
				if value == "old" {
					close(entered)
					<-release
					return &schema.AsyncOutcome{Valid: false, Message: "taken"}, nil
				}
				return nil, nil
			},
		},
	})
	st := New(s, WithValidationOptions(validation.WithDebounce(5*time.Millisecond)))
	defer st.Close()
	ctx := context.Background()

	st.SetValue(ctx, "code", "old", SourceUser)
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("async validator never started")
	}

	// The value moves on while the old validation is still in flight.
	st.SetValue(ctx, "code", "new", SourceUser)
	require.Eventually(t, func() bool {
		r, ok := st.ValidationResult("code")
		return ok && r.Valid
	}, time.Second, 5*time.Millisecond)

	close(release)
	time.Sleep(50 * time.Millisecond)

	r, ok := st.ValidationResult("code")
	require.True(t, ok)
	assert.True(t, r.Valid, "the stale failure for the superseded value must not land")
}

func TestDependentValidationFollowsCascade(t *testing.T) {
	s := &schema.Schema{
		Version: "1.0",
		Pages: []schema.Page{{
			ID: "p",
			Fields: []schema.Field{
				{Name: "country", Type: "select"},
				{
					Name:      "city",
					Type:      "text",
					DependsOn: []string{"country"},
					Validation: &schema.ValidationSpec{
						Validate: func(value any, all map[string]any) string {
							if all["country"] == "FR" && value == "Berlin" {
								return "Berlin is not in FR"
							}
							return ""
						},
					},
				},
			},
		}},
	}
	st := New(s)
	defer st.Close()
	ctx := context.Background()

	st.SetValue(ctx, "city", "Berlin", SourceUser)
	r, _ := st.ValidationResult("city")
	assert.True(t, r.Valid)

	// Changing the dependency re-runs the dependent's validation.
	st.SetValue(ctx, "country", "FR", SourceUser)
	r, ok := st.ValidationResult("city")
	require.True(t, ok)
	assert.False(t, r.Valid)
	assert.Equal(t, "Berlin is not in FR", r.Message)
}

func TestUndoRedo(t *testing.T) {
	st := New(testSchema())
	defer st.Close()
	ctx := context.Background()

	assert.False(t, st.CanUndo())
	st.SetValue(ctx, "name", "Ada", SourceUser)
	st.SetValue(ctx, "name", "Grace", SourceUser)
	require.True(t, st.CanUndo())

	require.True(t, st.Undo())
	assert.Equal(t, "Ada", st.Value("name"))

	require.True(t, st.Undo())
	assert.Nil(t, st.Value("name"), "undo below the first entry restores initial values")
	assert.False(t, st.IsDirty())
	assert.False(t, st.CanUndo())
	assert.False(t, st.Undo())

	require.True(t, st.Redo())
	assert.Equal(t, "Ada", st.Value("name"))
	require.True(t, st.Redo())
	assert.Equal(t, "Grace", st.Value("name"))
	assert.False(t, st.Redo())

	// Undo/redo never appends history.
	assert.Len(t, st.History(), 2)
}

func TestNewWriteTruncatesRedoFuture(t *testing.T) {
	st := New(testSchema())
	defer st.Close()
	ctx := context.Background()

	st.SetValue(ctx, "name", "Ada", SourceUser)
	st.SetValue(ctx, "name", "Grace", SourceUser)
	require.True(t, st.Undo())
	require.True(t, st.CanRedo())

	st.SetValue(ctx, "name", "Linus", SourceUser)
	assert.False(t, st.CanRedo(), "a write truncates the redo future")
	assert.Len(t, st.History(), 2)
}

func TestHistoryLimitPrunesOldest(t *testing.T) {
	st := New(testSchema(), WithHistoryLimit(3))
	defer st.Close()
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c", "d", "e"} {
		st.SetValue(ctx, "name", v, SourceUser)
	}
	history := st.History()
	require.Len(t, history, 3)

	require.True(t, st.Undo())
	assert.Equal(t, "d", st.Value("name"))
	require.True(t, st.Undo())
	assert.Equal(t, "c", st.Value("name"))
	// Below the oldest surviving entry the initial values apply.
	require.True(t, st.Undo())
	assert.Nil(t, st.Value("name"))
	assert.False(t, st.CanUndo())
}

func TestReset(t *testing.T) {
	st := New(testSchema())
	defer st.Close()
	ctx := context.Background()

	st.SetValue(ctx, "name", "A", SourceUser)
	st.SetValue(ctx, "country", "FR", SourceUser)
	require.True(t, st.IsDirty())
	require.NotEmpty(t, st.Errors())

	st.Reset()
	assert.False(t, st.IsDirty())
	assert.Equal(t, "DE", st.Value("country"))
	assert.Nil(t, st.Value("name"))
	assert.Empty(t, st.Errors())
	assert.Empty(t, st.History())
	assert.Empty(t, st.UserEditedFields())
	assert.False(t, st.CanUndo())
}

func TestSourceMetadata(t *testing.T) {
	st := New(testSchema())
	defer st.Close()
	ctx := context.Background()

	st.SetValue(ctx, "name", "Ada", SourceUser)
	st.SetValue(ctx, "email", "a@b.co", SourceSuggested)
	st.SetValue(ctx, "country", "FR", SourceSystem)

	assert.Equal(t, []string{"name"}, st.UserEditedFields())
	assert.Equal(t, []string{"email"}, st.AIAssistedFields())
}

func TestValidatePageStoresResults(t *testing.T) {
	st := New(testSchema())
	defer st.Close()

	results := st.ValidatePage(context.Background(), 0)
	require.Contains(t, results, "name")
	assert.False(t, results["name"].Valid, "required name is empty")

	stored, ok := st.ValidationResult("name")
	require.True(t, ok)
	assert.False(t, stored.Valid)
}

func TestCrossFieldResultsAttach(t *testing.T) {
	s := testSchema()
	s.CrossField = []schema.CrossFieldRule{{
		Name:   "pair",
		Fields: []string{"name", "email"},
		Check: func(values map[string]any) string {
			if values["name"] != nil && values["email"] == nil {
				return "email required once name is set"
			}
			return ""
		},
	}}
	st := New(s)
	defer st.Close()
	ctx := context.Background()

	st.SetValue(ctx, "name", "Ada", SourceUser)
	results := st.ValidateCrossField()
	require.Contains(t, results, "email")
	assert.Equal(t, "pair", results["email"].Rule)
	assert.False(t, st.IsValid())
}

func TestCrossFieldRecoveryClearsStoredResults(t *testing.T) {
	s := &schema.Schema{
		Version: "1.0",
		Pages: []schema.Page{{ID: "p", Fields: []schema.Field{
			{Name: "start_date", Type: "date"},
			{Name: "end_date", Type: "date"},
		}}},
		CrossField: []schema.CrossFieldRule{{
			Name:   "date-order",
			Fields: []string{"start_date", "end_date"},
			Check: func(values map[string]any) string {
				startVal, _ := values["start_date"].(string)
				endVal, _ := values["end_date"].(string)
				if startVal != "" && endVal != "" && endVal < startVal {
					return "end date must not precede start date"
				}
				return ""
			},
		}},
	}
	st := New(s)
	defer st.Close()
	ctx := context.Background()

	st.SetValue(ctx, "start_date", "2026-01-10", SourceUser)
	st.SetValue(ctx, "end_date", "2026-01-01", SourceUser)
	broken := st.ValidateCrossField()
	require.Len(t, broken, 2)
	require.False(t, st.IsValid())

	// Fixing one side clears the stored rule failure on the other too, so
	// IsValid/Errors recover without waiting for a page validation.
	st.SetValue(ctx, "end_date", "2026-01-20", SourceUser)
	fixed := st.ValidateCrossField()
	assert.Empty(t, fixed)
	assert.True(t, st.IsValid())
	assert.Empty(t, st.Errors())
	_, ok := st.ValidationResult("start_date")
	assert.False(t, ok, "the passing rule leaves no stored result behind")
}
