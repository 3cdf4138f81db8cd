package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSchema() *Schema {
	return &Schema{
		Version: "1.0",
		Pages: []Page{
			{
				ID: "p1",
				Fields: []Field{
					{Name: "name", Type: "text", Required: true},
					{Name: "email", Type: "email"},
				},
			},
			{
				ID: "p2",
				Fields: []Field{
					{Name: "city", Type: "text", DependsOn: []string{"name"}},
				},
			},
		},
	}
}

func TestCheckValidSchema(t *testing.T) {
	issues := Check(validSchema())
	assert.Empty(t, issues)
	assert.False(t, HasErrors(issues))
}

func TestCheckNilSchema(t *testing.T) {
	issues := Check(nil)
	require.Len(t, issues, 1)
	assert.True(t, HasErrors(issues))
}

func TestCheckDuplicateFieldName(t *testing.T) {
	s := validSchema()
	s.Pages[1].Fields = append(s.Pages[1].Fields, Field{Name: "name", Type: "text"})
	issues := Check(s)
	require.True(t, HasErrors(issues))
	assert.Contains(t, issues[0].Message, "duplicate field name")
}

func TestCheckDanglingReferences(t *testing.T) {
	s := validSchema()
	s.Pages[0].Fields[0].DependsOn = []string{"ghost"}
	s.CrossField = []CrossFieldRule{{Name: "r", Fields: []string{"name", "phantom"}}}
	issues := Check(s)
	require.True(t, HasErrors(issues))

	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	assert.Contains(t, messages, `depends_on references unknown field "ghost"`)
	assert.Contains(t, messages, `cross-field rule references unknown field "phantom"`)
}

func TestCheckUnknownTypeWarns(t *testing.T) {
	s := validSchema()
	s.Pages[0].Fields[0].Type = "hologram"
	issues := Check(s)
	require.Len(t, issues, 1)
	assert.Equal(t, IssueWarning, issues[0].Severity)
	assert.False(t, HasErrors(issues))
}

func TestCheckConditionReferenceWarns(t *testing.T) {
	s := validSchema()
	s.Pages[1].ShowIf = &Condition{Field: "nonexistent", Op: OpEquals, Value: true}
	issues := Check(s)
	require.Len(t, issues, 1)
	assert.Equal(t, IssueWarning, issues[0].Severity)
}
