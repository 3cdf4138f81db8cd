package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonDoc = `{
	"version": "1.0",
	"pages": [
		{
			"id": "basic",
			"fields": [
				{"name": "name", "type": "text", "required": true, "default_value": "anon"},
				{"name": "age", "type": "number", "validation": {"min": 18, "max": 99}}
			]
		}
	]
}`

const yamlDoc = `
version: "1.0"
pages:
  - id: basic
    show_if:
      field: mode
      op: equals
      value: full
    fields:
      - name: name
        type: text
        required: true
      - name: country
        type: select
        depends_on: [name]
`

func TestParseJSON(t *testing.T) {
	s, err := ParseJSON([]byte(jsonDoc))
	require.NoError(t, err)
	require.Len(t, s.Pages, 1)

	field, ok := s.FieldByName("age")
	require.True(t, ok)
	require.NotNil(t, field.Validation)
	assert.Equal(t, 18.0, *field.Validation.Min)
	assert.Equal(t, "anon", s.Defaults()["name"])
}

func TestParseYAML(t *testing.T) {
	s, err := ParseYAML([]byte(yamlDoc))
	require.NoError(t, err)
	require.Len(t, s.Pages, 1)
	require.NotNil(t, s.Pages[0].ShowIf)
	assert.Equal(t, "mode", s.Pages[0].ShowIf.Field)
	assert.Equal(t, []string{"country"}, s.Dependents("name"))
}

func TestParseSniffsFormat(t *testing.T) {
	fromJSON, err := Parse([]byte("  \n" + jsonDoc))
	require.NoError(t, err)
	assert.Equal(t, "1.0", fromJSON.Version)

	fromYAML, err := Parse([]byte(yamlDoc))
	require.NoError(t, err)
	assert.Equal(t, "1.0", fromYAML.Version)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseJSON([]byte("{not json"))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	s, err := ParseJSON([]byte(jsonDoc))
	require.NoError(t, err)
	data, err := MarshalJSON(s)
	require.NoError(t, err)
	again, err := ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, s.Version, again.Version)
	_, ok := again.FieldByName("age")
	assert.True(t, ok)
}

func TestTypeRegistry(t *testing.T) {
	assert.True(t, LookupType("text").Known)
	assert.True(t, LookupType("multiselect").Multi)
	assert.False(t, LookupType("hologram").Known)

	RegisterType(TypeDescriptor{Name: "signature", ZeroValue: ""})
	assert.True(t, LookupType("signature").Known)
	assert.Contains(t, KnownTypes(), "signature")
}
