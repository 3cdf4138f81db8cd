package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition operators. Comparison operators coerce both sides to float64
// where possible; Contains works on strings and slices.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
)

// Condition is a declarative predicate over current form values, used for
// conditional visibility of fields and pages. Leaf conditions set Field/Op/
// Value; composite conditions set And or Or. A nil Condition is always true.
type Condition struct {
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
	Op    string `json:"op,omitempty" yaml:"op,omitempty"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`

	And []*Condition `json:"and,omitempty" yaml:"and,omitempty"`
	Or  []*Condition `json:"or,omitempty" yaml:"or,omitempty"`
}

// Evaluate resolves the condition against values. It must be called with
// live values on every render/validate/navigate decision; results are never
// cached because they depend on possibly-just-changed values.
func (c *Condition) Evaluate(values map[string]any) bool {
	if c == nil {
		return true
	}
	if len(c.And) > 0 {
		for _, sub := range c.And {
			if !sub.Evaluate(values) {
				return false
			}
		}
		return true
	}
	if len(c.Or) > 0 {
		for _, sub := range c.Or {
			if sub.Evaluate(values) {
				return true
			}
		}
		return false
	}
	return c.evaluateLeaf(values)
}

func (c *Condition) evaluateLeaf(values map[string]any) bool {
	current := values[c.Field]
	switch c.Op {
	case OpEquals, "":
		return looseEqual(current, c.Value)
	case OpNotEquals:
		return !looseEqual(current, c.Value)
	case OpContains:
		return containsValue(current, c.Value)
	case OpGreaterThan:
		a, aok := toFloat(current)
		b, bok := toFloat(c.Value)
		return aok && bok && a > b
	case OpLessThan:
		a, aok := toFloat(current)
		b, bok := toFloat(c.Value)
		return aok && bok && a < b
	default:
		// Unknown operator: fail closed so a typo hides rather than shows.
		return false
	}
}

func looseEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func containsValue(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, fmt.Sprint(needle))
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range h {
			if item == fmt.Sprint(needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
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
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
