package section

import "planwright/api/internal/catalog"

// Recap is a concept due for resurfacing in the current section. It is
// display context only; nothing here touches section state.
type Recap struct {
	ConceptID string        `json:"conceptId"`
	Title     string        `json:"title"`
	Stage     catalog.Stage `json:"stage"`
}

// NextRecap returns at most one concept scheduled to resurface in the given
// section, restricted to concepts whose introducing section the user has
// already worked through. Pure lookup: first match in catalog order wins.
func NextRecap(concepts []catalog.Concept, sectionID string, introduced map[string]bool) *Recap {
	for _, concept := range concepts {
		if !introduced[concept.IntroducedIn] {
			continue
		}
		for _, r := range concept.Schedule {
			if r.SectionID == sectionID {
				return &Recap{ConceptID: concept.ID, Title: concept.Title, Stage: r.Stage}
			}
		}
	}
	return nil
}
