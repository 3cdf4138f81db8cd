package form

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytedance/sonic"
	"github.com/tbxark/formflow/job"
	"github.com/tbxark/formflow/schema"
	"github.com/tbxark/formflow/suggest"
)

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := New(testSchema())
	st.SetValue(ctx, "name", "Ada", SourceUser)
	st.SetValue(ctx, "email", "a@b.co", SourceSuggested)
	st.MarkClean()
	st.SetValue(ctx, "city", "Berlin", SourceUser)

	data, err := st.CreateCheckpoint()
	require.NoError(t, err)
	st.Close()

	// A later session restores into a fresh store over the same schema.
	restored := New(testSchema())
	defer restored.Close()
	require.NoError(t, restored.RestoreCheckpoint(ctx, data))

	assert.Equal(t, "Ada", restored.Value("name"))
	assert.Equal(t, "a@b.co", restored.Value("email"))
	assert.Equal(t, "Berlin", restored.Value("city"))
	assert.Equal(t, []string{"city", "name"}, restored.UserEditedFields())
	assert.Equal(t, []string{"email"}, restored.AIAssistedFields())
	require.NotNil(t, restored.LastSavedAt())

	// Only the post-save edit counts as unsaved.
	changes, err := restored.Changes()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"city": "Berlin"}, changes)

	// History is session-local and deliberately not serialized.
	assert.False(t, restored.CanUndo())
	assert.True(t, restored.IsDirty())
}

func TestCheckpointVersionMismatch(t *testing.T) {
	st := New(testSchema())
	defer st.Close()

	data, err := sonic.Marshal(Checkpoint{Version: "0.9"})
	require.NoError(t, err)
	err = st.RestoreCheckpoint(context.Background(), data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible checkpoint version")
}

func TestCheckpointGarbage(t *testing.T) {
	st := New(testSchema())
	defer st.Close()
	assert.Error(t, st.RestoreCheckpoint(context.Background(), []byte("{broken")))
}

func TestCheckpointCarriesActiveJob(t *testing.T) {
	ctx := context.Background()
	descriptor := job.New([]string{"city"})
	hooks := Hooks{
		OnBulkSuggest: func(ctx context.Context, files []string, s *schema.Schema, values map[string]any) (*BulkSuggestOutcome, error) {
			return &BulkSuggestOutcome{Job: descriptor}, nil
		},
		OnJobProgress: func(ctx context.Context, jobID string) (*job.Job, error) {
			return &job.Job{
				ID: jobID, Status: job.StatusCompleted, Progress: 1,
				AffectedFields: []string{"city"},
				PartialResults: map[string]any{"city": "Paris"},
			}, nil
		},
	}

	st := New(testSchema(), WithHooks(hooks), WithPollInterval(time.Hour))
	started, err := st.StartBulkSuggest(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, started)

	data, err := st.CreateCheckpoint()
	require.NoError(t, err)
	st.Close()

	var cp Checkpoint
	require.NoError(t, sonic.Unmarshal(data, &cp))
	assert.Equal(t, started.ID, cp.ActiveJobID)

	// Restoring resumes the job; here it is already complete.
	restored := New(testSchema(), WithHooks(hooks))
	defer restored.Close()
	require.NoError(t, restored.RestoreCheckpoint(ctx, data))

	state := restored.SuggestionState("city")
	require.NotNil(t, state)
	assert.Equal(t, suggest.StatusAvailable, state.Status)
	assert.Equal(t, "Paris", state.SuggestedValue)
}
