package form

import (
	"context"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tbxark/formflow/job"
	"github.com/tbxark/formflow/schema"
	"github.com/tbxark/formflow/suggest"
	"github.com/tbxark/formflow/validation"
)

// Source tags who wrote a value. It decides whether the write counts toward
// user-edited or AI-assisted metadata.
type Source string

const (
	SourceUser      Source = "user"
	SourceSuggested Source = "suggested"
	SourceSystem    Source = "system"
)

// DefaultAutosaveInterval is how often a dirty form is handed to the draft
// persistence hook.
const DefaultAutosaveInterval = 30 * time.Second

// DirtyListener is notified whenever the set of dirty fields changes.
type DirtyListener func(dirty bool, fields []string)

// Store is the single source of truth for a form session: field values,
// dirty tracking, validation results, suggestion states, history and derived
// metadata. The validation engine, suggestion provider and job tracker never
// hold authoritative state of their own; they read from the store and write
// back through its API.
//
// All operations tolerate unknown field names as silent no-ops: during live
// editing the schema can change while UI still holds stale references, and a
// builder tool must not crash on that skew.
type Store struct {
	schema *schema.Schema
	engine *validation.Engine
	hooks  Hooks

	mu          sync.Mutex
	values      map[string]any
	initial     map[string]any
	validations map[string]validation.Result
	suggestions map[string]*suggest.State
	history     *historyLog
	userEdited  map[string]struct{}
	aiAssisted  map[string]struct{}

	savedValues map[string]any
	lastSavedAt *time.Time

	tracker *job.Tracker

	dirtyListeners []DirtyListener
	lastDirty      []string
	closed         bool

	sweepInterval    time.Duration
	autosaveInterval time.Duration
	pollInterval     time.Duration
	stop             chan struct{}
	stopOnce         sync.Once
}

type storeConfig struct {
	initialValues    map[string]any
	hooks            Hooks
	engineOpts       []validation.Option
	historyLimit     int
	sweepInterval    time.Duration
	autosaveInterval time.Duration
	pollInterval     time.Duration
}

// Option configures a Store.
type Option func(*storeConfig)

// WithInitialValues merges caller-supplied values over schema defaults at
// mount. They become part of the clean baseline: a field holding its initial
// value is not dirty.
func WithInitialValues(values map[string]any) Option {
	return func(c *storeConfig) {
		c.initialValues = values
	}
}

// WithHooks installs the boundary collaborators.
func WithHooks(h Hooks) Option {
	return func(c *storeConfig) {
		c.hooks = h
	}
}

// WithValidationOptions forwards options to the embedded validation engine.
func WithValidationOptions(opts ...validation.Option) Option {
	return func(c *storeConfig) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// WithHistoryLimit bounds the undo log (default 50).
func WithHistoryLimit(n int) Option {
	return func(c *storeConfig) {
		c.historyLimit = n
	}
}

// WithSweepInterval overrides how often expired suggestions are cleared.
func WithSweepInterval(d time.Duration) Option {
	return func(c *storeConfig) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithAutosaveInterval overrides the draft autosave cadence.
func WithAutosaveInterval(d time.Duration) Option {
	return func(c *storeConfig) {
		if d > 0 {
			c.autosaveInterval = d
		}
	}
}

// WithPollInterval overrides the background job poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(c *storeConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// New mounts a form session for the schema. The schema is treated as
// read-only for the lifetime of the store.
func New(s *schema.Schema, opts ...Option) *Store {
	cfg := storeConfig{
		sweepInterval:    suggest.DefaultSweepInterval,
		autosaveInterval: DefaultAutosaveInterval,
		pollInterval:     job.DefaultPollInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	initial := s.Defaults()
	for name, value := range cfg.initialValues {
		if _, ok := s.FieldByName(name); ok {
			initial[name] = value
		}
	}

	st := &Store{
		schema:           s,
		engine:           validation.NewEngine(s, cfg.engineOpts...),
		hooks:            cfg.hooks,
		values:           copyValues(initial),
		initial:          initial,
		validations:      make(map[string]validation.Result),
		suggestions:      make(map[string]*suggest.State),
		history:          newHistoryLog(cfg.historyLimit),
		userEdited:       make(map[string]struct{}),
		aiAssisted:       make(map[string]struct{}),
		sweepInterval:    cfg.sweepInterval,
		autosaveInterval: cfg.autosaveInterval,
		pollInterval:     cfg.pollInterval,
		stop:             make(chan struct{}),
	}

	go st.sweepLoop()
	if st.hooks.OnSaveDraft != nil {
		go st.autosaveLoop()
	}
	return st
}

// Schema returns the schema the store was mounted with.
func (st *Store) Schema() *schema.Schema {
	return st.schema
}

// Hooks returns the boundary collaborators installed at mount.
func (st *Store) Hooks() Hooks {
	return st.hooks
}

// Value returns the current active value for the field, or nil when unset.
func (st *Store) Value(name string) any {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.values[name]
}

// Values returns a snapshot of all current values.
func (st *Store) Values() map[string]any {
	st.mu.Lock()
	defer st.mu.Unlock()
	return copyValues(st.values)
}

// InitialValues returns the clean baseline established at mount.
func (st *Store) InitialValues() map[string]any {
	st.mu.Lock()
	defer st.mu.Unlock()
	return copyValues(st.initial)
}

// SetValue writes a field value. Writing the value already stored is a
// complete no-op: no history entry, no dirty notification. Every effective
// write appends a history entry, runs the synchronous validation stage
// immediately, debounces the asynchronous stage, triggers the suggestion and
// validation cascades for dependent fields, and fires the dirty listener if
// the dirty set changed.
func (st *Store) SetValue(ctx context.Context, name string, value any, source Source) {
	st.setValue(ctx, name, value, source, EntryFieldEdit, "", true, map[string]struct{}{})
}

func (st *Store) setValue(ctx context.Context, name string, value any, source Source, entryType EntryType, description string, record bool, visited map[string]struct{}) {
	field, ok := st.schema.FieldByName(name)
	if !ok {
		return
	}
	if _, seen := visited[name]; seen {
		// Cycle guard: a field revisited within one cascade is skipped.
		return
	}
	visited[name] = struct{}{}

	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	if valueEqual(st.values[name], value) {
		st.mu.Unlock()
		return
	}
	st.values[name] = value
	switch source {
	case SourceUser:
		st.userEdited[name] = struct{}{}
	case SourceSuggested:
		st.aiAssisted[name] = struct{}{}
	}
	if state := st.suggestions[name]; state != nil && source == SourceUser {
		if state.Active == suggest.ActiveSuggested {
			// Hand-edit of the live suggested value. The original proposal
			// stays untouched as the reset target.
			state.SuggestedValue = value
			state.SuggestedValueModified = true
		} else {
			state.UserValue = value
		}
	}
	if record {
		if description == "" {
			description = editDescription(field, entryType)
		}
		st.history.append(entryType, []string{name}, description, copyValues(st.values))
	}
	changed, dirty, dirtyFields := st.refreshDirtyLocked()
	listeners := slices.Clone(st.dirtyListeners)
	valuesSnap := copyValues(st.values)
	st.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(dirty, dirtyFields)
		}
	}

	st.revalidate(ctx, field, valuesSnap)
	if source == SourceUser {
		st.maybeRequestSuggestion(ctx, field)
	}

	for _, depName := range st.schema.Dependents(name) {
		if _, seen := visited[depName]; seen {
			continue
		}
		depField, ok := st.schema.FieldByName(depName)
		if !ok {
			continue
		}
		// A cached "valid" on the dependent must not survive a change in a
		// field it logically depends on.
		st.engine.Invalidate(depName)
		st.revalidate(ctx, depField, valuesSnap)
		st.invalidateSuggestion(depName)
		st.maybeRequestSuggestion(ctx, depField)
	}
}

// revalidate runs the synchronous stage now and schedules the debounced
// asynchronous stage when the field configures one.
func (st *Store) revalidate(ctx context.Context, field *schema.Field, values map[string]any) {
	result := st.engine.ValidateSync(field, values[field.Name], values)
	st.storeValidation(field.Name, values[field.Name], result)
	if result.Valid && field.Validation != nil && field.Validation.ValidateAsync != nil {
		// The async run must outlive the UI event that triggered it.
		asyncCtx := context.WithoutCancel(ctx)
		st.engine.Debounce(field, func() {
			st.runAsyncValidation(asyncCtx, field)
		})
	}
}

func (st *Store) runAsyncValidation(ctx context.Context, field *schema.Field) {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	requested := st.values[field.Name]
	valuesSnap := copyValues(st.values)
	st.mu.Unlock()

	result := st.engine.ValidateField(ctx, field, requested, valuesSnap)
	st.storeValidation(field.Name, requested, result)
}

// storeValidation applies a result only if the field still holds the value
// it was computed for; a stale outcome for a superseded value is discarded.
func (st *Store) storeValidation(name string, forValue any, result validation.Result) {
	st.mu.Lock()
	if !st.closed && valueEqual(st.values[name], forValue) {
		st.validations[name] = result
	}
	st.mu.Unlock()
}

// IsDirty reports whether any field's value differs from its initial value.
func (st *Store) IsDirty() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.dirtyFieldsLocked()) > 0
}

// DirtyFields lists the fields whose current value differs from the initial
// value. The set is recomputed from values on every call, never trusted from
// a prior snapshot.
func (st *Store) DirtyFields() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.dirtyFieldsLocked()
}

// IsValid reports whether no field currently holds a blocking invalid
// result.
func (st *Store) IsValid() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, r := range st.validations {
		if !r.Valid && r.Blocking {
			return false
		}
	}
	return true
}

// Errors returns the currently stored failing validation results.
func (st *Store) Errors() map[string]validation.Result {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]validation.Result)
	for name, r := range st.validations {
		if !r.Valid {
			out[name] = r
		}
	}
	return out
}

// ValidationResult returns the stored result for one field, if any.
func (st *Store) ValidationResult(name string) (validation.Result, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	r, ok := st.validations[name]
	return r, ok
}

// ValidateField runs the full pipeline for one field right now, bypassing
// the debounce, and stores the result.
func (st *Store) ValidateField(ctx context.Context, name string) validation.Result {
	field, ok := st.schema.FieldByName(name)
	if !ok {
		return validation.OK()
	}
	st.mu.Lock()
	requested := st.values[name]
	valuesSnap := copyValues(st.values)
	st.mu.Unlock()

	result := st.engine.ValidateField(ctx, field, requested, valuesSnap)
	st.storeValidation(name, requested, result)
	return result
}

// ValidatePage runs every visible field on the page through the full
// pipeline and stores the results.
func (st *Store) ValidatePage(ctx context.Context, pageIndex int) map[string]validation.Result {
	if pageIndex < 0 || pageIndex >= len(st.schema.Pages) {
		return map[string]validation.Result{}
	}
	snap := st.Values()
	results := st.engine.ValidatePage(ctx, &st.schema.Pages[pageIndex], snap)
	for name, r := range results {
		st.storeValidation(name, snap[name], r)
	}
	return results
}

// ValidateAll runs every visible field on every visible page through the
// full pipeline and stores the results.
func (st *Store) ValidateAll(ctx context.Context) map[string]validation.Result {
	snap := st.Values()
	results := st.engine.ValidateAll(ctx, snap)
	for name, r := range results {
		st.storeValidation(name, snap[name], r)
	}
	return results
}

// ValidateCrossField evaluates the schema's cross-field rules and stores the
// failing results on every field each broken rule names. Stored rule results
// for fields whose rules all pass again are cleared, so a fixed rule does not
// keep reporting through IsValid/Errors until the next page validation.
func (st *Store) ValidateCrossField() map[string]validation.Result {
	snap := st.Values()
	results := st.engine.ValidateCrossField(snap)
	st.mu.Lock()
	for _, rule := range st.schema.CrossField {
		for _, name := range rule.Fields {
			if _, failing := results[name]; failing {
				continue
			}
			if stored, ok := st.validations[name]; ok && stored.Rule != "" {
				delete(st.validations, name)
			}
		}
	}
	st.mu.Unlock()
	for name, r := range results {
		st.storeValidation(name, snap[name], r)
	}
	return results
}

// OnDirtyChanged registers a listener for dirty-set changes.
func (st *Store) OnDirtyChanged(fn DirtyListener) {
	if fn == nil {
		return
	}
	st.mu.Lock()
	st.dirtyListeners = append(st.dirtyListeners, fn)
	st.mu.Unlock()
}

// Undo moves the history cursor back one entry and restores that snapshot.
// The restore itself never appends history.
func (st *Store) Undo() bool {
	return st.restoreHistory(func() (map[string]any, bool) { return st.history.undo() })
}

// Redo moves the history cursor forward one entry and restores its snapshot.
func (st *Store) Redo() bool {
	return st.restoreHistory(func() (map[string]any, bool) { return st.history.redo() })
}

func (st *Store) restoreHistory(move func() (map[string]any, bool)) bool {
	st.mu.Lock()
	snapshot, ok := move()
	if !ok {
		st.mu.Unlock()
		return false
	}
	if snapshot == nil {
		snapshot = st.initial
	}
	for name, value := range snapshot {
		if !valueEqual(st.values[name], value) {
			delete(st.validations, name)
		}
	}
	for name := range st.values {
		if _, kept := snapshot[name]; !kept {
			delete(st.validations, name)
		}
	}
	st.values = copyValues(snapshot)
	changed, dirty, dirtyFields := st.refreshDirtyLocked()
	listeners := slices.Clone(st.dirtyListeners)
	st.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(dirty, dirtyFields)
		}
	}
	return true
}

// CanUndo reports whether an undo step exists.
func (st *Store) CanUndo() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.history.canUndo()
}

// CanRedo reports whether a redo step exists.
func (st *Store) CanRedo() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.history.canRedo()
}

// History returns a copy of the history entries in order.
func (st *Store) History() []Entry {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.history.list()
}

// Reset restores all values to the initial baseline and clears dirty state,
// suggestions, validation results, metadata and history.
func (st *Store) Reset() {
	st.mu.Lock()
	st.values = copyValues(st.initial)
	st.validations = make(map[string]validation.Result)
	st.suggestions = make(map[string]*suggest.State)
	st.history.clear()
	st.userEdited = make(map[string]struct{})
	st.aiAssisted = make(map[string]struct{})
	changed, dirty, dirtyFields := st.refreshDirtyLocked()
	listeners := slices.Clone(st.dirtyListeners)
	st.mu.Unlock()

	st.engine.ClearCache()
	if changed {
		for _, fn := range listeners {
			fn(dirty, dirtyFields)
		}
	}
}

// UserEditedFields lists the fields a human has written to, sorted.
func (st *Store) UserEditedFields() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return sortedKeys(st.userEdited)
}

// AIAssistedFields lists the fields holding an accepted suggestion value,
// sorted.
func (st *Store) AIAssistedFields() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return sortedKeys(st.aiAssisted)
}

// Close stops the sweep, autosave and debounce timers and detaches any job
// tracker without cancelling the remote job. The store must not be used
// afterwards.
func (st *Store) Close() {
	st.stopOnce.Do(func() {
		close(st.stop)
	})
	st.mu.Lock()
	st.closed = true
	tracker := st.tracker
	st.tracker = nil
	st.mu.Unlock()
	if tracker != nil {
		tracker.Stop()
	}
	st.engine.Close()
}

func (st *Store) dirtyFieldsLocked() []string {
	var out []string
	for _, f := range st.schema.AllFields() {
		cur, curOK := st.values[f.Name]
		init, initOK := st.initial[f.Name]
		if curOK != initOK || (curOK && !valueEqual(cur, init)) {
			out = append(out, f.Name)
		}
	}
	sort.Strings(out)
	return out
}

func (st *Store) refreshDirtyLocked() (changed bool, dirty bool, fields []string) {
	fields = st.dirtyFieldsLocked()
	changed = !slices.Equal(fields, st.lastDirty)
	st.lastDirty = fields
	return changed, len(fields) > 0, fields
}

func (st *Store) sweepLoop() {
	ticker := time.NewTicker(st.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C:
			st.SweepExpiredSuggestions()
		}
	}
}

func (st *Store) autosaveLoop() {
	ticker := time.NewTicker(st.autosaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C:
			st.Autosave(context.Background())
		}
	}
}

func editDescription(field *schema.Field, t EntryType) string {
	label := field.Label
	if label == "" {
		label = field.Name
	}
	switch t {
	case EntryAcceptSuggestion:
		return "Accepted suggestion for " + label
	case EntryDismissSuggestion:
		return "Dismissed suggestion for " + label
	case EntryToggleValue:
		return "Toggled value for " + label
	default:
		return "Edited " + label
	}
}

func valueEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func copyValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func isBlankValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}
