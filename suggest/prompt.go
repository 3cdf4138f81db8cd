package suggest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

const suggestSystemPrompt = `You are a form completion assistant. Given a form field, its current value and the rest of the form, propose the best value for that field.

Rules:
- Only propose a value you can justify from the other form values or the field guidance; never invent facts.
- Report your confidence honestly in [0,1]; a low-confidence proposal is discarded, a fabricated high confidence misleads the user.
- Keep the reason to one short sentence.
- The proposed value must match the field type.

Call the '%s' tool with the result.`

func buildSuggestPrompt(ctx context.Context, req Request) ([]*schema.Message, error) {
	if req.Field == nil {
		return nil, fmt.Errorf("suggest request has no field")
	}

	sections := []string{
		fmt.Sprintf("# Current Date:\n%s", time.Now().Format(time.RFC3339)),
		formatTargetFieldSection(req),
	}
	if s := formatValuesSection(req.AllValues); s != "" {
		sections = append(sections, s)
	}
	if req.Field.Suggest != nil && req.Field.Suggest.Guidance != "" {
		sections = append(sections, fmt.Sprintf("# Field guidance:\n%s", req.Field.Suggest.Guidance))
	}

	return []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(suggestSystemPrompt, suggestToolName)),
		schema.UserMessage(strings.Join(sections, "\n\n")),
	}, nil
}

func formatTargetFieldSection(req Request) string {
	var buf strings.Builder
	buf.WriteString("# Target field:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Name", "Type", "Label", "Description", "Current Value")
	_ = table.Append(
		req.Field.Name,
		req.Field.Type,
		req.Field.Label,
		req.Field.Description,
		compactJSON(req.CurrentValue),
	)
	_ = table.Render()
	return buf.String()
}

func formatValuesSection(values map[string]any) string {
	if len(values) == 0 {
		return ""
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf strings.Builder
	buf.WriteString("# Other form values:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Value")
	for _, name := range names {
		_ = table.Append(name, compactJSON(values[name]))
	}
	_ = table.Render()
	return buf.String()
}

func compactJSON(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	encoded, err := sonic.MarshalString(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return encoded
}
