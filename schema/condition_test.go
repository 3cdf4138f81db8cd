package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditionEvaluate(t *testing.T) {
	values := map[string]any{
		"country":  "DE",
		"age":      30,
		"tags":     []any{"vip", "beta"},
		"comment":  "please call me back",
		"verified": true,
	}

	tests := []struct {
		name string
		cond *Condition
		want bool
	}{
		{"nil condition is true", nil, true},
		{"equals match", &Condition{Field: "country", Op: OpEquals, Value: "DE"}, true},
		{"equals mismatch", &Condition{Field: "country", Op: OpEquals, Value: "FR"}, false},
		{"empty op defaults to equals", &Condition{Field: "country", Value: "DE"}, true},
		{"equals bool", &Condition{Field: "verified", Op: OpEquals, Value: true}, true},
		{"numeric equals across types", &Condition{Field: "age", Op: OpEquals, Value: 30.0}, true},
		{"not equals", &Condition{Field: "country", Op: OpNotEquals, Value: "FR"}, true},
		{"greater than", &Condition{Field: "age", Op: OpGreaterThan, Value: 18}, true},
		{"greater than refused", &Condition{Field: "age", Op: OpGreaterThan, Value: 30}, false},
		{"less than", &Condition{Field: "age", Op: OpLessThan, Value: 65}, true},
		{"contains string", &Condition{Field: "comment", Op: OpContains, Value: "call"}, true},
		{"contains slice", &Condition{Field: "tags", Op: OpContains, Value: "vip"}, true},
		{"contains miss", &Condition{Field: "tags", Op: OpContains, Value: "admin"}, false},
		{"unknown op fails closed", &Condition{Field: "country", Op: "matches", Value: "DE"}, false},
		{"non-numeric comparison fails closed", &Condition{Field: "country", Op: OpGreaterThan, Value: 1}, false},
		{"absent field not equal", &Condition{Field: "missing", Op: OpEquals, Value: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Evaluate(values))
		})
	}
}

func TestConditionComposite(t *testing.T) {
	values := map[string]any{"country": "DE", "age": 30}

	and := &Condition{And: []*Condition{
		{Field: "country", Op: OpEquals, Value: "DE"},
		{Field: "age", Op: OpGreaterThan, Value: 18},
	}}
	assert.True(t, and.Evaluate(values))

	and.And[1].Value = 40
	assert.False(t, and.Evaluate(values))

	or := &Condition{Or: []*Condition{
		{Field: "country", Op: OpEquals, Value: "FR"},
		{Field: "age", Op: OpEquals, Value: 30},
	}}
	assert.True(t, or.Evaluate(values))

	or.Or[1].Value = 31
	assert.False(t, or.Evaluate(values))
}
