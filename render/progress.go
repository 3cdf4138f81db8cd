package render

import (
	"strings"

	"github.com/tbxark/formflow/schema"
)

// PageProgress is completion data for one page. A field counts as completed
// when it is visible, holds a non-empty value, and has no stored blocking
// error.
type PageProgress struct {
	Index     int
	ID        string
	Title     string
	Visible   bool
	Current   bool
	Total     int
	Completed int
}

// Progress is the whole-form completion picture a progress bar renders from.
type Progress struct {
	Pages     []PageProgress
	Total     int
	Completed int
	Ratio     float64
}

// Progress computes per-page and overall completion over the visible parts
// of the form.
func (n *Navigator) Progress() Progress {
	n.mu.Lock()
	current := n.current
	n.mu.Unlock()

	values := n.store.Values()
	var p Progress
	for pi := range n.store.Schema().Pages {
		page := &n.store.Schema().Pages[pi]
		pp := PageProgress{
			Index:   pi,
			ID:      page.ID,
			Title:   page.Title,
			Visible: page.ShowIf.Evaluate(values),
			Current: pi == current,
		}
		if pp.Visible {
			for fi := range page.Fields {
				field := &page.Fields[fi]
				if !field.ShowIf.Evaluate(values) {
					continue
				}
				pp.Total++
				if n.fieldCompleted(field, values) {
					pp.Completed++
				}
			}
		}
		p.Total += pp.Total
		p.Completed += pp.Completed
		p.Pages = append(p.Pages, pp)
	}
	if p.Total > 0 {
		p.Ratio = float64(p.Completed) / float64(p.Total)
	}
	return p
}

func (n *Navigator) fieldCompleted(field *schema.Field, values map[string]any) bool {
	if blankValue(values[field.Name]) {
		return false
	}
	if r, ok := n.store.ValidationResult(field.Name); ok && !r.Valid && r.Blocking {
		return false
	}
	return true
}

func blankValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}
