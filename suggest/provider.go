package suggest

import (
	"context"

	"github.com/tbxark/formflow/schema"
)

// Request is what a provider gets to work with when asked for a suggestion.
type Request struct {
	Field        *schema.Field
	CurrentValue any
	AllValues    map[string]any
}

// Result is a provider's proposal for one field. A nil *Result with a nil
// error means the provider has nothing to offer.
type Result struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// Provider produces an alternative value for a field. The engine treats it
// strictly as an injected function: how the suggestion is produced (LLM,
// lookup, document analysis) is not its concern. Provider errors degrade to
// "no suggestion available", never to form errors.
type Provider interface {
	Suggest(ctx context.Context, req Request) (*Result, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (*Result, error)

func (f ProviderFunc) Suggest(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// MinConfidence resolves the acceptance threshold for a field, falling back
// to the engine default.
func MinConfidence(field *schema.Field) float64 {
	if field != nil && field.Suggest != nil && field.Suggest.MinConfidence > 0 {
		return field.Suggest.MinConfidence
	}
	return DefaultMinConfidence
}

// TTL resolves the suggestion lifetime for a field, falling back to the
// engine default.
func TTL(field *schema.Field) int {
	if field != nil && field.Suggest != nil && field.Suggest.TTLSeconds > 0 {
		return field.Suggest.TTLSeconds
	}
	return int(DefaultTTL.Seconds())
}
