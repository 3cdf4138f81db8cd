package suggest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	formschema "github.com/tbxark/formflow/schema"
)

func TestBuildSuggestPrompt(t *testing.T) {
	msgs, err := buildSuggestPrompt(context.Background(), Request{
		Field: &formschema.Field{
			Name:        "title",
			Type:        "text",
			Label:       "Job title",
			Description: "Current role at the company",
			Suggest:     &formschema.SuggestSpec{Guidance: "infer from the company name"},
		},
		CurrentValue: "engineer",
		AllValues: map[string]any{
			"company": "ACME Robotics",
			"title":   "engineer",
			"years":   3,
		},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Contains(t, msgs[0].Content, suggestToolName)

	user := msgs[1].Content
	assert.Contains(t, user, "# Target field:")
	assert.Contains(t, user, "title")
	assert.Contains(t, user, "Job title")
	assert.Contains(t, user, "# Other form values:")
	assert.Contains(t, user, "ACME Robotics")
	assert.Contains(t, user, "# Field guidance:")
	assert.Contains(t, user, "infer from the company name")
}

func TestBuildSuggestPromptRequiresField(t *testing.T) {
	_, err := buildSuggestPrompt(context.Background(), Request{})
	assert.Error(t, err)
}

func TestCompactJSON(t *testing.T) {
	assert.Equal(t, "", compactJSON(nil))
	assert.Equal(t, "plain", compactJSON("plain"))
	assert.Equal(t, `["a","b"]`, compactJSON([]string{"a", "b"}))
}
