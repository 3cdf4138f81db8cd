package schema

import "fmt"

// Issue severities reported by Check.
const (
	IssueError   = "error"
	IssueWarning = "warning"
)

// Issue is one structural problem found in a schema document.
type Issue struct {
	Severity string `json:"severity"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message"`
}

// Check runs the structural schema checks that the rendering core itself
// deliberately does not enforce: the engine tolerates a skewed schema at
// runtime (unknown names become no-ops), while builder tooling calls Check
// before saving a document. Errors are problems that will misbehave at
// runtime; warnings degrade gracefully.
func Check(s *Schema) []Issue {
	var issues []Issue
	if s == nil {
		return []Issue{{Severity: IssueError, Message: "schema is nil"}}
	}
	if len(s.Pages) == 0 {
		issues = append(issues, Issue{Severity: IssueError, Path: "/pages", Message: "schema has no pages"})
	}

	names := map[string]string{}
	for pi, page := range s.Pages {
		pagePath := fmt.Sprintf("/pages/%d", pi)
		if len(page.Fields) == 0 {
			issues = append(issues, Issue{Severity: IssueWarning, Path: pagePath, Message: "page has no fields"})
		}
		for fi, field := range page.Fields {
			fieldPath := fmt.Sprintf("%s/fields/%d", pagePath, fi)
			if field.Name == "" {
				issues = append(issues, Issue{Severity: IssueError, Path: fieldPath, Message: "field has no name"})
				continue
			}
			if prev, dup := names[field.Name]; dup {
				issues = append(issues, Issue{
					Severity: IssueError,
					Path:     fieldPath,
					Message:  fmt.Sprintf("duplicate field name %q (also at %s)", field.Name, prev),
				})
			} else {
				names[field.Name] = fieldPath
			}
			if !LookupType(field.Type).Known {
				issues = append(issues, Issue{
					Severity: IssueWarning,
					Path:     fieldPath,
					Message:  fmt.Sprintf("unknown field type %q will not render", field.Type),
				})
			}
		}
	}

	// Reference checks need the full name set, so they run in a second pass.
	for pi, page := range s.Pages {
		for fi, field := range page.Fields {
			fieldPath := fmt.Sprintf("/pages/%d/fields/%d", pi, fi)
			for _, dep := range field.DependsOn {
				if _, ok := names[dep]; !ok {
					issues = append(issues, Issue{
						Severity: IssueError,
						Path:     fieldPath,
						Message:  fmt.Sprintf("depends_on references unknown field %q", dep),
					})
				}
			}
			issues = append(issues, checkCondition(field.ShowIf, fieldPath+"/show_if", names)...)
		}
		issues = append(issues, checkCondition(page.ShowIf, fmt.Sprintf("/pages/%d/show_if", pi), names)...)
	}
	for ri, rule := range s.CrossField {
		rulePath := fmt.Sprintf("/cross_field/%d", ri)
		if len(rule.Fields) == 0 {
			issues = append(issues, Issue{Severity: IssueError, Path: rulePath, Message: "cross-field rule names no fields"})
		}
		for _, name := range rule.Fields {
			if _, ok := names[name]; !ok {
				issues = append(issues, Issue{
					Severity: IssueError,
					Path:     rulePath,
					Message:  fmt.Sprintf("cross-field rule references unknown field %q", name),
				})
			}
		}
	}
	return issues
}

func checkCondition(c *Condition, path string, names map[string]string) []Issue {
	if c == nil {
		return nil
	}
	var issues []Issue
	if c.Field != "" {
		if _, ok := names[c.Field]; !ok {
			issues = append(issues, Issue{
				Severity: IssueWarning,
				Path:     path,
				Message:  fmt.Sprintf("condition references unknown field %q", c.Field),
			})
		}
	}
	for i, sub := range c.And {
		issues = append(issues, checkCondition(sub, fmt.Sprintf("%s/and/%d", path, i), names)...)
	}
	for i, sub := range c.Or {
		issues = append(issues, checkCondition(sub, fmt.Sprintf("%s/or/%d", path, i), names)...)
	}
	return issues
}

// HasErrors reports whether any issue in the list is severity error.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == IssueError {
			return true
		}
	}
	return false
}
