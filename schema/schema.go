package schema

import "context"

// Schema is the declarative description of a multi-page form. It is treated
// as read-only for the lifetime of a render session.
type Schema struct {
	Version     string           `json:"version" yaml:"version"`
	Title       string           `json:"title,omitempty" yaml:"title,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Pages       []Page           `json:"pages" yaml:"pages"`
	CrossField  []CrossFieldRule `json:"cross_field,omitempty" yaml:"cross_field,omitempty"`
}

// Page is an ordered group of fields presented together.
type Page struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title,omitempty" yaml:"title,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	ShowIf      *Condition `json:"show_if,omitempty" yaml:"show_if,omitempty"`
	Fields      []Field    `json:"fields" yaml:"fields"`
}

// Field is one input unit. Name keys into the form values map and must be
// unique across the whole schema. Type is an open string dispatched through
// the type registry so new types degrade gracefully instead of breaking old
// renderers.
type Field struct {
	ID           string          `json:"id,omitempty" yaml:"id,omitempty"`
	Name         string          `json:"name" yaml:"name"`
	Type         string          `json:"type" yaml:"type"`
	Label        string          `json:"label,omitempty" yaml:"label,omitempty"`
	Description  string          `json:"description,omitempty" yaml:"description,omitempty"`
	Required     bool            `json:"required,omitempty" yaml:"required,omitempty"`
	DefaultValue any             `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	ShowIf       *Condition      `json:"show_if,omitempty" yaml:"show_if,omitempty"`
	DependsOn    []string        `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Validation   *ValidationSpec `json:"validation,omitempty" yaml:"validation,omitempty"`
	Suggest      *SuggestSpec    `json:"suggest,omitempty" yaml:"suggest,omitempty"`
	Config       map[string]any  `json:"config,omitempty" yaml:"config,omitempty"`
	Metadata     map[string]any  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// SyncValidator is a custom synchronous check. It returns an empty string
// when the value is acceptable, or the error message to surface.
type SyncValidator func(value any, allValues map[string]any) string

// AsyncEnv carries the evaluation context handed to asynchronous validators.
type AsyncEnv struct {
	FieldName string
	AllValues map[string]any
	Schema    *Schema
}

// AsyncOutcome is the structured form of an asynchronous validation result.
// A nil *AsyncOutcome with a nil error means the value is valid. Severity
// defaults to "error" and Blocking defaults to true iff the severity is
// "error".
type AsyncOutcome struct {
	Valid    bool   `json:"valid"`
	Message  string `json:"message,omitempty"`
	Severity string `json:"severity,omitempty"`
	Blocking *bool  `json:"blocking,omitempty"`
	AutoFix  any    `json:"auto_fix,omitempty"`
}

// AsyncValidator performs a validation that needs to leave the process,
// typically a network lookup. Implementations must be safe to call with a
// cancelled context.
type AsyncValidator func(ctx context.Context, value any, env AsyncEnv) (*AsyncOutcome, error)

// ValidationSpec declares the built-in checks for a field. The engine applies
// them in a fixed order: required presence, string length, numeric range,
// pattern, email, URL, phone, custom sync validator, then the async validator.
type ValidationSpec struct {
	MinLength *int     `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Email     bool     `json:"email,omitempty" yaml:"email,omitempty"`
	URL       bool     `json:"url,omitempty" yaml:"url,omitempty"`
	Phone     bool     `json:"phone,omitempty" yaml:"phone,omitempty"`

	// DebounceMS overrides the engine's default async debounce for this
	// field. Zero means use the engine default.
	DebounceMS int `json:"debounce_ms,omitempty" yaml:"debounce_ms,omitempty"`

	Validate      SyncValidator  `json:"-" yaml:"-"`
	ValidateAsync AsyncValidator `json:"-" yaml:"-"`
}

// SuggestSpec opts a field into the suggestion engine.
type SuggestSpec struct {
	// MinConfidence discards provider results below this threshold.
	// Zero means use the engine default (0.7).
	MinConfidence float64 `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
	// TTLSeconds bounds how long an accepted suggestion stays live before the
	// expiry sweep clears it. Zero means use the engine default (3600).
	TTLSeconds int `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
	// Guidance is free-form context handed to the suggestion provider.
	Guidance string `json:"guidance,omitempty" yaml:"guidance,omitempty"`
	// Source is the default attribution for suggestions on this field.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// CrossFieldRule judges several fields jointly. A failing rule attaches the
// same result to every field it names.
type CrossFieldRule struct {
	Name     string   `json:"name" yaml:"name"`
	Fields   []string `json:"fields" yaml:"fields"`
	Message  string   `json:"message,omitempty" yaml:"message,omitempty"`
	Severity string   `json:"severity,omitempty" yaml:"severity,omitempty"`
	Blocking *bool    `json:"blocking,omitempty" yaml:"blocking,omitempty"`

	// Check receives just the named fields' values and returns an empty
	// string when the rule holds, or the message to attach. When it returns
	// a non-empty string and Message is also set, Message wins.
	Check func(values map[string]any) string `json:"-" yaml:"-"`
}

// FieldByName looks a field up across all pages.
func (s *Schema) FieldByName(name string) (*Field, bool) {
	if s == nil {
		return nil, false
	}
	for pi := range s.Pages {
		for fi := range s.Pages[pi].Fields {
			if s.Pages[pi].Fields[fi].Name == name {
				return &s.Pages[pi].Fields[fi], true
			}
		}
	}
	return nil, false
}

// AllFields returns pointers to every field in page order.
func (s *Schema) AllFields() []*Field {
	if s == nil {
		return nil
	}
	var out []*Field
	for pi := range s.Pages {
		for fi := range s.Pages[pi].Fields {
			out = append(out, &s.Pages[pi].Fields[fi])
		}
	}
	return out
}

// Dependents returns the names of fields that declare a dependency on name.
func (s *Schema) Dependents(name string) []string {
	var out []string
	for _, f := range s.AllFields() {
		for _, dep := range f.DependsOn {
			if dep == name {
				out = append(out, f.Name)
				break
			}
		}
	}
	return out
}

// Defaults collects every field's default value into a fresh values map.
func (s *Schema) Defaults() map[string]any {
	values := make(map[string]any)
	for _, f := range s.AllFields() {
		if f.DefaultValue != nil {
			values[f.Name] = f.DefaultValue
		}
	}
	return values
}
