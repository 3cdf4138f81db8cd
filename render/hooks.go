package render

import (
	"context"

	"github.com/tbxark/formflow/form"
	"github.com/tbxark/formflow/schema"
	"github.com/tbxark/formflow/suggest"
	"github.com/tbxark/formflow/validation"
)

// FieldData is everything a presentation layer needs to draw one field: the
// definition, the live state around it, and a setter to write edits back.
type FieldData struct {
	Field      *schema.Field
	Value      any
	Dirty      bool
	Validation *validation.Result
	Suggestion *suggest.State
	SetValue   func(ctx context.Context, value any)
}

// PageData is a page definition plus the data of its currently visible
// fields.
type PageData struct {
	Page   *schema.Page
	Index  int
	Fields []FieldData
}

// Hooks are optional presentation overrides. A nil hook means the host
// renders that part however it likes from the data accessors instead.
type Hooks struct {
	RenderField    func(data FieldData)
	RenderPage     func(data PageData)
	RenderProgress func(p Progress)
}

// FieldData assembles the presentation data for one field by name, or nil
// for an unknown field.
func (n *Navigator) FieldData(name string) *FieldData {
	field, ok := n.store.Schema().FieldByName(name)
	if !ok {
		return nil
	}
	data := n.fieldData(field)
	return &data
}

// PageData assembles the presentation data for the current page, with hidden
// fields excluded.
func (n *Navigator) PageData() PageData {
	n.mu.Lock()
	index := n.current
	n.mu.Unlock()

	page := n.pageAt(index)
	data := PageData{Page: page, Index: index}
	if page == nil {
		return data
	}
	values := n.store.Values()
	for i := range page.Fields {
		field := &page.Fields[i]
		if !field.ShowIf.Evaluate(values) {
			continue
		}
		data.Fields = append(data.Fields, n.fieldData(field))
	}
	return data
}

// Render draws the current page through the installed hooks: progress first,
// then the page, then each visible field.
func (n *Navigator) Render() {
	data := n.PageData()
	if n.hooks.RenderProgress != nil {
		n.hooks.RenderProgress(n.Progress())
	}
	if n.hooks.RenderPage != nil {
		n.hooks.RenderPage(data)
	}
	if n.hooks.RenderField != nil {
		for _, fd := range data.Fields {
			n.hooks.RenderField(fd)
		}
	}
}

func (n *Navigator) fieldData(field *schema.Field) FieldData {
	name := field.Name
	data := FieldData{
		Field: field,
		Value: n.store.Value(name),
		SetValue: func(ctx context.Context, value any) {
			n.store.SetValue(ctx, name, value, form.SourceUser)
		},
	}
	for _, dirty := range n.store.DirtyFields() {
		if dirty == name {
			data.Dirty = true
			break
		}
	}
	if r, ok := n.store.ValidationResult(name); ok {
		data.Validation = &r
	}
	data.Suggestion = n.store.SuggestionState(name)
	return data
}
