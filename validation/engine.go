package validation

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tbxark/formflow/schema"
)

const (
	// DefaultDebounce is how long the engine waits after the last keystroke
	// before an async validation is allowed to fire.
	DefaultDebounce = 500 * time.Millisecond
	// DefaultCacheTTL bounds how long an async result for an exact
	// (field, value) pair is reused without re-invoking the validator.
	DefaultCacheTTL = 300 * time.Second
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Engine evaluates field values against their validation specs. It is safe
// for use from timer callbacks and poll goroutines; the form store is the
// only writer of authoritative state, the engine only computes results.
type Engine struct {
	schema *schema.Schema

	cache    *resultCache
	inflight singleflight.Group
	debounce time.Duration

	mu       sync.Mutex
	timers   map[string]*time.Timer
	patterns map[string]*regexp.Regexp
	closed   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDebounce overrides the default async debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.debounce = d
		}
	}
}

// WithCacheTTL overrides the default async result cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.cache.ttl = ttl
		}
	}
}

// NewEngine builds a validation engine for one schema.
func NewEngine(s *schema.Schema, opts ...Option) *Engine {
	e := &Engine{
		schema:   s,
		cache:    newResultCache(DefaultCacheTTL),
		debounce: DefaultDebounce,
		timers:   make(map[string]*time.Timer),
		patterns: make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// ValidateSync runs the built-in synchronous pipeline for one field in its
// fixed order: required, string length, numeric range, pattern, email, URL,
// phone, then the custom sync validator. The first failure wins.
func (e *Engine) ValidateSync(field *schema.Field, value any, allValues map[string]any) Result {
	if field == nil {
		return OK()
	}
	spec := field.Validation
	if spec == nil {
		if field.Required && isEmpty(value) {
			return Fail("This field is required")
		}
		return OK()
	}

	if field.Required && isEmpty(value) {
		return Fail("This field is required")
	}
	if isEmpty(value) {
		// Optional and empty: nothing further to check.
		return OK()
	}

	if s, ok := value.(string); ok {
		if spec.MinLength != nil && len([]rune(s)) < *spec.MinLength {
			return Fail(fmt.Sprintf("Must be at least %d characters", *spec.MinLength))
		}
		if spec.MaxLength != nil && len([]rune(s)) > *spec.MaxLength {
			return Fail(fmt.Sprintf("Must be at most %d characters", *spec.MaxLength))
		}
	}

	if spec.Min != nil || spec.Max != nil {
		if n, ok := numericValue(value); ok {
			if spec.Min != nil && n < *spec.Min {
				return Fail(fmt.Sprintf("Must be at least %v", *spec.Min))
			}
			if spec.Max != nil && n > *spec.Max {
				return Fail(fmt.Sprintf("Must be at most %v", *spec.Max))
			}
		}
	}

	if spec.Pattern != "" {
		re, err := e.compiled(spec.Pattern)
		if err != nil {
			slog.Warn("Invalid validation pattern", "field", field.Name, "pattern", spec.Pattern, "error", err)
		} else if !re.MatchString(fmt.Sprint(value)) {
			return Fail("Invalid format")
		}
	}

	if spec.Email && !emailPattern.MatchString(fmt.Sprint(value)) {
		return Fail("Invalid email address")
	}

	if spec.URL {
		u, err := url.ParseRequestURI(fmt.Sprint(value))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return Fail("Invalid URL")
		}
	}

	if spec.Phone && digitCount(fmt.Sprint(value)) < 10 {
		return Fail("Invalid phone number")
	}

	if spec.Validate != nil {
		if msg := spec.Validate(value, allValues); msg != "" {
			return Fail(msg)
		}
	}

	return OK()
}

// ValidateField runs the full pipeline: the synchronous stage, then — only
// if it passed and the field configures one — the asynchronous validator.
// Async results are cached per (field, exact value) and concurrent calls for
// the same pair are coalesced into a single in-flight request.
func (e *Engine) ValidateField(ctx context.Context, field *schema.Field, value any, allValues map[string]any) Result {
	result := e.ValidateSync(field, value, allValues)
	if !result.Valid {
		return result
	}
	if field == nil || field.Validation == nil || field.Validation.ValidateAsync == nil {
		return result
	}
	return e.validateAsync(ctx, field, value, allValues)
}

func (e *Engine) validateAsync(ctx context.Context, field *schema.Field, value any, allValues map[string]any) Result {
	key := cacheKey(field.Name, value)
	if cached, ok := e.cache.get(key); ok {
		return cached
	}

	shared, err, _ := e.inflight.Do(key, func() (any, error) {
		outcome, err := field.Validation.ValidateAsync(ctx, value, schema.AsyncEnv{
			FieldName: field.Name,
			AllValues: allValues,
			Schema:    e.schema,
		})
		if err != nil {
			return Result{}, err
		}
		result := OK()
		if outcome != nil && !outcome.Valid {
			result = normalize(Result{
				Valid:    false,
				Message:  outcome.Message,
				Severity: Severity(outcome.Severity),
				Blocking: outcome.Blocking != nil && *outcome.Blocking,
				AutoFix:  outcome.AutoFix,
			}, outcome.Blocking != nil)
			if result.Message == "" {
				result.Message = "Invalid value"
			}
		}
		e.cache.put(key, result)
		return result, nil
	})
	if err != nil {
		// A rejecting validator is converted to a blocking error, never
		// propagated: nothing from the engine may escape as a panic or an
		// unhandled failure.
		slog.Warn("Async validation failed", "field", field.Name, "error", err)
		return Fail("Validation error")
	}
	return shared.(Result)
}

// ValidatePage validates every visible field on the page in parallel and
// returns a map of field name to result. Hidden fields are excluded so they
// can never block navigation.
func (e *Engine) ValidatePage(ctx context.Context, page *schema.Page, values map[string]any) map[string]Result {
	if page == nil {
		return map[string]Result{}
	}
	var fields []*schema.Field
	for i := range page.Fields {
		if page.Fields[i].ShowIf.Evaluate(values) {
			fields = append(fields, &page.Fields[i])
		}
	}
	return e.validateFields(ctx, fields, values)
}

// ValidateAll validates every visible field on every visible page.
func (e *Engine) ValidateAll(ctx context.Context, values map[string]any) map[string]Result {
	var fields []*schema.Field
	for pi := range e.schema.Pages {
		page := &e.schema.Pages[pi]
		if !page.ShowIf.Evaluate(values) {
			continue
		}
		for fi := range page.Fields {
			if page.Fields[fi].ShowIf.Evaluate(values) {
				fields = append(fields, &page.Fields[fi])
			}
		}
	}
	return e.validateFields(ctx, fields, values)
}

func (e *Engine) validateFields(ctx context.Context, fields []*schema.Field, values map[string]any) map[string]Result {
	results := make(map[string]Result, len(fields))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, field := range fields {
		wg.Add(1)
		go func(f *schema.Field) {
			defer wg.Done()
			r := e.ValidateField(ctx, f, values[f.Name], values)
			mu.Lock()
			results[f.Name] = r
			mu.Unlock()
		}(field)
	}
	wg.Wait()
	return results
}

// Invalidate drops any cached async results for the field. The dependency
// cascade calls this when a field the target depends on changes.
func (e *Engine) Invalidate(fieldName string) {
	e.cache.invalidateField(fieldName)
}

// ClearCache drops all cached async results, e.g. on form reset.
func (e *Engine) ClearCache() {
	e.cache.clear()
}

// Debounce schedules fn to run once the field's debounce window elapses with
// no further keystrokes. A new call for the same field supersedes the
// pending one. The per-field DebounceMS spec overrides the engine default.
func (e *Engine) Debounce(field *schema.Field, fn func()) {
	d := e.debounce
	if field.Validation != nil && field.Validation.DebounceMS > 0 {
		d = time.Duration(field.Validation.DebounceMS) * time.Millisecond
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if t, ok := e.timers[field.Name]; ok {
		t.Stop()
	}
	name := field.Name
	e.timers[name] = time.AfterFunc(d, func() {
		e.mu.Lock()
		delete(e.timers, name)
		closed := e.closed
		e.mu.Unlock()
		if !closed {
			fn()
		}
	})
}

// CancelDebounce drops any pending debounced run for the field.
func (e *Engine) CancelDebounce(fieldName string) {
	e.mu.Lock()
	if t, ok := e.timers[fieldName]; ok {
		t.Stop()
		delete(e.timers, fieldName)
	}
	e.mu.Unlock()
}

// Close stops all pending debounce timers. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	for name, t := range e.timers {
		t.Stop()
		delete(e.timers, name)
	}
	e.mu.Unlock()
}

func (e *Engine) compiled(pattern string) (*regexp.Regexp, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if re, ok := e.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.patterns[pattern] = re
	return re, nil
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func numericValue(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func digitCount(s string) int {
	count := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			count++
		}
	}
	return count
}
