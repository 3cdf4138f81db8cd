package validation

// Severity classifies how serious a validation failure is. Only error
// results block navigation and submission by default.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Result is the outcome of validating a single field value. Cross-field
// rules attach an identical Result to every field they name, carrying the
// rule name in Rule.
type Result struct {
	Valid    bool     `json:"valid"`
	Message  string   `json:"message,omitempty"`
	Severity Severity `json:"severity,omitempty"`
	Blocking bool     `json:"blocking"`
	// AutoFix optionally carries a replacement value the user can apply
	// with one action.
	AutoFix any    `json:"auto_fix,omitempty"`
	Rule    string `json:"rule,omitempty"`
}

// OK is the result of a passing validation.
func OK() Result {
	return Result{Valid: true}
}

// Fail builds a blocking error result with the given message.
func Fail(message string) Result {
	return Result{Valid: false, Message: message, Severity: SeverityError, Blocking: true}
}

// Warn builds a non-blocking warning result.
func Warn(message string) Result {
	return Result{Valid: false, Message: message, Severity: SeverityWarning, Blocking: false}
}

// normalize fills defaulted Severity/Blocking on externally built results:
// severity defaults to error, blocking defaults to true iff severity is
// error.
func normalize(r Result, blockingSet bool) Result {
	if r.Severity == "" {
		r.Severity = SeverityError
	}
	if !blockingSet {
		r.Blocking = r.Severity == SeverityError && !r.Valid
	}
	return r
}

// AnyBlocking reports whether a result set contains a blocking failure.
func AnyBlocking(results map[string]Result) bool {
	for _, r := range results {
		if !r.Valid && r.Blocking {
			return true
		}
	}
	return false
}
