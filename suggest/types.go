package suggest

import "time"

// Defaults for the suggestion engine. Per-field SuggestSpec values override
// them.
const (
	DefaultMinConfidence = 0.7
	DefaultTTL           = 3600 * time.Second
	DefaultSweepInterval = 60 * time.Second
)

// Status is the lifecycle of one field's suggestion.
//
//	none -> expecting -> loading -> available -> reviewing -> accepted|dismissed
//
// A job that reports a full value with confidence may jump a field straight
// from expecting to available without passing through loading.
type Status string

const (
	StatusNone      Status = "none"
	StatusExpecting Status = "expecting"
	StatusLoading   Status = "loading"
	StatusAvailable Status = "available"
	StatusReviewing Status = "reviewing"
	StatusAccepted  Status = "accepted"
	StatusDismissed Status = "dismissed"
)

// ActiveSide says which of the dual values is live in the rendered field and
// hence in the submitted form values.
type ActiveSide string

const (
	ActiveUser      ActiveSide = "user"
	ActiveSuggested ActiveSide = "suggested"
)

// State is the dual-value suggestion state for one field. UserValue is
// always what the human actually typed; SuggestedValue is the provider's
// proposal, possibly hand-edited afterwards; OriginalSuggestedValue is never
// overwritten once set within a suggestion cycle and is the undo target for
// reset-to-original.
type State struct {
	FieldName string     `json:"field_name"`
	Status    Status     `json:"status"`
	Active    ActiveSide `json:"active"`

	UserValue              any  `json:"user_value,omitempty"`
	SuggestedValue         any  `json:"suggested_value,omitempty"`
	OriginalSuggestedValue any  `json:"original_suggested_value,omitempty"`
	SuggestedValueModified bool `json:"suggested_value_modified,omitempty"`

	Confidence float64    `json:"confidence,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Source     string     `json:"source,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`

	// Error carries a per-field failure from a background job. Status
	// reverts to none when it is set.
	Error string `json:"error,omitempty"`
}

// Expired reports whether the suggestion's TTL has passed.
func (s *State) Expired(now time.Time) bool {
	return s != nil && s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Pending reports whether a suggestion request or job delivery is underway
// for the field; a pending field must not issue a duplicate request.
func (s *State) Pending() bool {
	return s != nil && (s.Status == StatusExpecting || s.Status == StatusLoading)
}

// ActiveValue resolves the live value of the dual pair.
func (s *State) ActiveValue() any {
	if s == nil {
		return nil
	}
	if s.Active == ActiveSuggested {
		return s.SuggestedValue
	}
	return s.UserValue
}
