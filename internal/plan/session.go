// Package plan holds the session aggregate: answers, coaching history,
// per-question iteration state, section runtime state and gates. All
// mutation goes through methods here, called by the session controller; the
// struct is also the persisted snapshot shape.
package plan

import (
	"encoding/json"
	"time"

	"planwright/api/internal/catalog"
	"planwright/api/internal/gate"
	"planwright/api/internal/section"
)

type Status string

const (
	StatusActive Status = "ACTIVE"
	// StatusReady: every compliance gate has passed; the plan can be
	// exported without forcing.
	StatusReady    Status = "READY"
	StatusArchived Status = "ARCHIVED"
)

type Phase string

const (
	PhaseUnanswered Phase = "UNANSWERED"
	PhaseSubmitted  Phase = "SUBMITTED"
	PhaseEvaluating Phase = "EVALUATING"
	PhaseFinal      Phase = "FINAL"
)

// Answer is the single live value for a question. Edits supersede it, there
// are never two current answers for one id.
type Answer struct {
	QuestionID string    `json:"questionId"`
	Value      string    `json:"value"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Exchange is one coaching round: the submitted answer snapshot and the
// evaluation result. Append-only; iteration indexes are 0-based and strictly
// increasing per question.
type Exchange struct {
	QuestionID    string          `json:"questionId"`
	Answer        string          `json:"answer"`
	Feedback      json.RawMessage `json:"feedback,omitempty"`
	ShouldIterate bool            `json:"shouldIterate"`
	Iteration     int             `json:"iteration"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// GateUpdate is the coach's optional verdict for the gate linked to the
// evaluated question. It is held on the question state until the answer is
// accepted; only acceptance applies it.
type GateUpdate struct {
	GateID string      `json:"gateId"`
	Status gate.Status `json:"status"`
}

// QuestionState tracks the iteration machine for one question. Seq is the
// supersession token: a result carrying a stale Seq is discarded.
type QuestionState struct {
	Phase       Phase       `json:"phase"`
	Draft       string      `json:"draft,omitempty"`
	Iterations  int         `json:"iterations"`
	Seq         int         `json:"seq"`
	PendingGate *GateUpdate `json:"pendingGate,omitempty"`
}

type Session struct {
	ID        string                    `json:"id"`
	UserID    string                    `json:"userId"`
	Title     string                    `json:"title"`
	Status    Status                    `json:"status"`
	Sections  []section.State           `json:"sections"`
	Answers   map[string]Answer         `json:"answers"`
	History   map[string][]Exchange     `json:"history"`
	Gates     map[string]*gate.Gate     `json:"gates"`
	Questions map[string]*QuestionState `json:"questions"`
	// Verdicts records, per gate, the latest accepted evaluation outcome
	// for the current answer. Cleared when the answer is edited; input to
	// the idempotent batch re-evaluation.
	Verdicts         map[string]gate.Status `json:"verdicts"`
	Score            int                    `json:"score"`
	Profile          json.RawMessage        `json:"profile,omitempty"`
	StartedAt        time.Time              `json:"startedAt"`
	SectionStartedAt map[string]time.Time   `json:"sectionStartedAt"`
}

// NewSession builds a fresh aggregate from the catalog: first section
// available, the rest locked, every gate locked.
func NewSession(cat *catalog.Catalog, id, userID string, profile json.RawMessage, now time.Time) *Session {
	s := &Session{
		ID:               id,
		UserID:           userID,
		Status:           StatusActive,
		Answers:          make(map[string]Answer),
		History:          make(map[string][]Exchange),
		Gates:            make(map[string]*gate.Gate, len(cat.Gates)),
		Questions:        make(map[string]*QuestionState, len(cat.Questions)),
		Verdicts:         make(map[string]gate.Status),
		Profile:          profile,
		StartedAt:        now,
		SectionStartedAt: make(map[string]time.Time),
	}
	for _, spec := range cat.Sections {
		status := section.StatusLocked
		if spec.Ordinal == 1 {
			status = section.StatusAvailable
		}
		s.Sections = append(s.Sections, section.State{
			ID:      spec.ID,
			Ordinal: spec.Ordinal,
			Status:  status,
		})
	}
	for _, g := range cat.Gates {
		s.Gates[g.ID] = &gate.Gate{
			ID:        g.ID,
			SectionID: g.SectionID,
			Title:     g.Title,
			Status:    gate.StatusLocked,
			Weight:    g.Weight,
		}
	}
	for _, q := range cat.Questions {
		s.Questions[q.ID] = &QuestionState{Phase: PhaseUnanswered}
	}
	s.RefreshSections(cat, now)
	return s
}

// Values returns the current answer values keyed by question id, the input
// shape the visibility resolver expects.
func (s *Session) Values() map[string]string {
	values := make(map[string]string, len(s.Answers))
	for id, a := range s.Answers {
		values[id] = a.Value
	}
	return values
}

// Section returns the runtime state for a section id.
func (s *Session) Section(id string) *section.State {
	for i := range s.Sections {
		if s.Sections[i].ID == id {
			return &s.Sections[i]
		}
	}
	return nil
}

// RefreshSections recomputes per-section answered/expected counts from the
// currently visible question set and cascades availability: a section
// unlocks when its predecessor completes, and moves to in_progress when its
// first answer lands.
func (s *Session) RefreshSections(cat *catalog.Catalog, now time.Time) {
	values := s.Values()
	for i := range s.Sections {
		st := &s.Sections[i]
		visible := cat.VisibleInSection(st.ID, values)
		st.Expected = len(visible)
		answered := 0
		for _, q := range visible {
			if _, ok := s.Answers[q.ID]; ok {
				answered++
			}
		}
		st.Answered = answered

		if st.Status == section.StatusLocked && i > 0 && s.Sections[i-1].Status == section.StatusCompleted {
			_ = section.Apply(st, section.StatusAvailable)
		}
		if st.Status == section.StatusAvailable && answered > 0 {
			_ = section.Apply(st, section.StatusInProgress)
			if _, started := s.SectionStartedAt[st.ID]; !started {
				s.SectionStartedAt[st.ID] = now
			}
		}
	}
}

// IntroducedSections reports which sections have at least started, the
// input to the recap scheduler.
func (s *Session) IntroducedSections() map[string]bool {
	introduced := make(map[string]bool)
	for _, st := range s.Sections {
		if st.Status == section.StatusInProgress || st.Status == section.StatusCompleted {
			introduced[st.ID] = true
		}
	}
	return introduced
}

// GateLinks returns gate id -> linked question id for the catalog.
func GateLinks(cat *catalog.Catalog) map[string]string {
	links := make(map[string]string)
	for _, q := range cat.Questions {
		if q.GateID != "" {
			links[q.GateID] = q.ID
		}
	}
	return links
}

// AnsweredSet returns question id -> answered, for the batch re-evaluation.
func (s *Session) AnsweredSet() map[string]bool {
	answered := make(map[string]bool, len(s.Answers))
	for id := range s.Answers {
		answered[id] = true
	}
	return answered
}

// Clone deep-copies the aggregate via its snapshot encoding. Controllers
// hand copies to readers so no caller can mutate owned state.
func (s *Session) Clone() (*Session, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
