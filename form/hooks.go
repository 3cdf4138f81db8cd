package form

import (
	"context"

	"github.com/tbxark/formflow/job"
	"github.com/tbxark/formflow/schema"
	"github.com/tbxark/formflow/suggest"
)

// BulkSuggestOutcome is what a bulk suggestion provider returns: results it
// can produce immediately plus an optional descriptor for a long-running job
// that will fill the rest over time.
type BulkSuggestOutcome struct {
	Immediate map[string]suggest.Result
	Job       *job.Job
}

// BulkSuggestFunc analyses the given source documents and proposes values
// for many fields at once.
type BulkSuggestFunc func(ctx context.Context, files []string, s *schema.Schema, values map[string]any) (*BulkSuggestOutcome, error)

// SaveDraftFunc persists a draft. changes is the merge-patch style delta
// since the last save checkpoint.
type SaveDraftFunc func(ctx context.Context, values map[string]any, changes map[string]any) error

// SubmitFunc is the sole way validated form values leave the engine.
type SubmitFunc func(ctx context.Context, values map[string]any) error

// Hooks are the injected boundary collaborators. Every member is optional;
// a nil hook disables the corresponding behaviour.
type Hooks struct {
	// OnSuggest produces a per-field suggestion.
	OnSuggest suggest.Provider
	// OnBulkSuggest produces suggestions for many fields from documents.
	OnBulkSuggest BulkSuggestFunc
	// OnJobProgress polls a background job's status. Each poll must report
	// only new updates since the previous poll in NewUpdates.
	OnJobProgress job.ProgressFunc
	// OnJobCancel asks the executor to abandon a job.
	OnJobCancel job.CancelFunc
	// OnSaveDraft persists a draft on the autosave timer while dirty.
	OnSaveDraft SaveDraftFunc
	// OnSubmit receives the final values after validation passes.
	OnSubmit SubmitFunc
}
