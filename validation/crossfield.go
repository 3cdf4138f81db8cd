package validation

// ValidateCrossField evaluates every schema-level cross-field rule against
// the current values and returns the failing results, attached to every
// field each broken rule names. A rule sees only the values of the fields it
// declares.
func (e *Engine) ValidateCrossField(values map[string]any) map[string]Result {
	results := make(map[string]Result)
	if e.schema == nil {
		return results
	}
	for _, rule := range e.schema.CrossField {
		if rule.Check == nil || len(rule.Fields) == 0 {
			continue
		}
		scoped := make(map[string]any, len(rule.Fields))
		for _, name := range rule.Fields {
			if v, ok := values[name]; ok {
				scoped[name] = v
			}
		}
		msg := rule.Check(scoped)
		if msg == "" {
			continue
		}
		if rule.Message != "" {
			msg = rule.Message
		}
		result := normalize(Result{
			Valid:    false,
			Message:  msg,
			Severity: Severity(rule.Severity),
			Blocking: rule.Blocking != nil && *rule.Blocking,
			Rule:     rule.Name,
		}, rule.Blocking != nil)
		for _, name := range rule.Fields {
			// First broken rule wins per field; later rules do not
			// overwrite an existing failure.
			if existing, ok := results[name]; ok && !existing.Valid {
				continue
			}
			results[name] = result
		}
	}
	return results
}
