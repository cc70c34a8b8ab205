package catalog

import "fmt"

// Load validates the raw definition and builds the lookup indexes. A
// visibility condition may only reference a question that precedes it in
// catalog order; a forward or unknown reference is a configuration error and
// fails here rather than resolving silently to hidden.
func Load(sections []SectionSpec, questions []Question, gates []GateSpec, concepts []Concept) (*Catalog, error) {
	c := &Catalog{
		Sections:     sections,
		Questions:    questions,
		Gates:        gates,
		Concepts:     concepts,
		sectionByID:  make(map[string]SectionSpec, len(sections)),
		questionByID: make(map[string]Question, len(questions)),
		gateByID:     make(map[string]GateSpec, len(gates)),
		questionPos:  make(map[string]int, len(questions)),
	}

	for _, s := range sections {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog: section with empty id")
		}
		if _, dup := c.sectionByID[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate section %q", s.ID)
		}
		if s.MinPercent < 0 || s.MinPercent > 100 || s.OptimalPercent < 0 || s.OptimalPercent > 100 {
			return nil, fmt.Errorf("catalog: section %q thresholds out of range", s.ID)
		}
		if s.OptimalPercent < s.MinPercent {
			return nil, fmt.Errorf("catalog: section %q optimal threshold below minimum", s.ID)
		}
		c.sectionByID[s.ID] = s
	}

	for _, g := range gates {
		if g.ID == "" {
			return nil, fmt.Errorf("catalog: gate with empty id")
		}
		if _, dup := c.gateByID[g.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate gate %q", g.ID)
		}
		if _, ok := c.sectionByID[g.SectionID]; !ok {
			return nil, fmt.Errorf("catalog: gate %q references unknown section %q", g.ID, g.SectionID)
		}
		c.gateByID[g.ID] = g
	}

	gateQuestion := make(map[string]string)
	for i, q := range questions {
		if q.ID == "" {
			return nil, fmt.Errorf("catalog: question at position %d has empty id", i)
		}
		if _, dup := c.questionByID[q.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate question %q", q.ID)
		}
		if _, ok := c.sectionByID[q.SectionID]; !ok {
			return nil, fmt.Errorf("catalog: question %q references unknown section %q", q.ID, q.SectionID)
		}
		if q.Kind == KindChoice && len(q.Choices) == 0 {
			return nil, fmt.Errorf("catalog: choice question %q has no choices", q.ID)
		}
		if q.MinLength < 0 || (q.MaxLength > 0 && q.MaxLength < q.MinLength) {
			return nil, fmt.Errorf("catalog: question %q has inconsistent length bounds", q.ID)
		}
		if q.GateID != "" {
			if _, ok := c.gateByID[q.GateID]; !ok {
				return nil, fmt.Errorf("catalog: question %q references unknown gate %q", q.ID, q.GateID)
			}
			if prev, taken := gateQuestion[q.GateID]; taken {
				return nil, fmt.Errorf("catalog: gate %q linked from both %q and %q", q.GateID, prev, q.ID)
			}
			gateQuestion[q.GateID] = q.ID
		}
		if q.MaxIterations < 0 {
			return nil, fmt.Errorf("catalog: question %q has negative max iterations", q.ID)
		}
		for _, cond := range q.VisibleIf {
			pos, known := c.questionPos[cond.QuestionID]
			if !known {
				return nil, fmt.Errorf("catalog: question %q visibility references %q which is unknown or does not precede it", q.ID, cond.QuestionID)
			}
			if pos >= i {
				return nil, fmt.Errorf("catalog: question %q visibility references later question %q", q.ID, cond.QuestionID)
			}
			switch cond.Op {
			case OpAnswered, OpEquals, OpNotEquals, OpAtLeast:
			default:
				return nil, fmt.Errorf("catalog: question %q has unknown condition op %q", q.ID, cond.Op)
			}
		}
		c.questionPos[q.ID] = i
		c.questionByID[q.ID] = q
	}

	// Every gate needs a linked question, otherwise it could never leave
	// locked.
	for _, g := range gates {
		if _, ok := gateQuestion[g.ID]; !ok {
			return nil, fmt.Errorf("catalog: gate %q has no linked question", g.ID)
		}
	}

	for _, concept := range concepts {
		if _, ok := c.sectionByID[concept.IntroducedIn]; !ok {
			return nil, fmt.Errorf("catalog: concept %q introduced in unknown section %q", concept.ID, concept.IntroducedIn)
		}
		for _, r := range concept.Schedule {
			if _, ok := c.sectionByID[r.SectionID]; !ok {
				return nil, fmt.Errorf("catalog: concept %q scheduled in unknown section %q", concept.ID, r.SectionID)
			}
		}
	}

	return c, nil
}
