package catalog

import "strconv"

// ResolveVisible computes the ordered list of currently visible questions
// given the current answer values (question id -> answer value). It is a pure
// function: no caching, no side effects, deterministic for identical inputs.
// A condition over an unanswered question evaluates to hidden, never to
// visible by default.
func (c *Catalog) ResolveVisible(values map[string]string) []Question {
	visible := make([]Question, 0, len(c.Questions))
	for _, q := range c.Questions {
		if conditionsHold(q.VisibleIf, values) {
			visible = append(visible, q)
		}
	}
	return visible
}

// VisibleInSection narrows ResolveVisible to one section.
func (c *Catalog) VisibleInSection(sectionID string, values map[string]string) []Question {
	var out []Question
	for _, q := range c.ResolveVisible(values) {
		if q.SectionID == sectionID {
			out = append(out, q)
		}
	}
	return out
}

func conditionsHold(conds []Condition, values map[string]string) bool {
	for _, cond := range conds {
		answer, answered := values[cond.QuestionID]
		if !answered {
			return false
		}
		switch cond.Op {
		case OpAnswered:
			// Presence already checked.
		case OpEquals:
			if answer != cond.Value {
				return false
			}
		case OpNotEquals:
			if answer == cond.Value {
				return false
			}
		case OpAtLeast:
			have, err := strconv.ParseFloat(answer, 64)
			if err != nil {
				return false
			}
			want, err := strconv.ParseFloat(cond.Value, 64)
			if err != nil {
				return false
			}
			if have < want {
				return false
			}
		default:
			return false
		}
	}
	return true
}
