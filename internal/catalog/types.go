// Package catalog holds the immutable interview definition: sections,
// questions, compliance gates and reinforcement concepts. It is loaded once
// at startup and validated; everything else in the engine treats it as
// read-only.
package catalog

type InputKind string

const (
	KindText   InputKind = "TEXT"
	KindChoice InputKind = "CHOICE"
	KindNumber InputKind = "NUMBER"
)

type CondOp string

const (
	// OpAnswered is satisfied when the referenced question has any answer.
	OpAnswered CondOp = "ANSWERED"
	OpEquals   CondOp = "EQUALS"
	OpNotEquals CondOp = "NOT_EQUALS"
	// OpAtLeast compares numerically and is satisfied when the referenced
	// answer parses as a number >= the condition value.
	OpAtLeast CondOp = "AT_LEAST"
)

// Condition is one clause of a question's visibility predicate. All clauses
// must hold for the question to be visible. A clause over an unanswered
// question never holds.
type Condition struct {
	QuestionID string `json:"questionId"`
	Op         CondOp `json:"op"`
	Value      string `json:"value,omitempty"`
}

type Question struct {
	ID        string      `json:"id"`
	SectionID string      `json:"sectionId"`
	Prompt    string      `json:"prompt"`
	Kind      InputKind   `json:"kind"`
	Required  bool        `json:"required"`
	MinLength int         `json:"minLength,omitempty"`
	MaxLength int         `json:"maxLength,omitempty"`
	Choices   []string    `json:"choices,omitempty"`
	VisibleIf []Condition `json:"visibleIf,omitempty"`
	// GateID links the question to a compliance gate; accepting an
	// evaluated answer for it is the only way that gate leaves checking.
	GateID string `json:"gateId,omitempty"`
	// MaxIterations bounds the coaching loop for this question. Zero means
	// the answer is accepted without any coaching rounds beyond the first.
	MaxIterations int `json:"maxIterations,omitempty"`
	// SpecificityChecks are hints forwarded verbatim to the coaching
	// service; the engine does not interpret them.
	SpecificityChecks []string `json:"specificityChecks,omitempty"`
}

type SectionSpec struct {
	ID      string `json:"id"`
	Ordinal int    `json:"ordinal"`
	Title   string `json:"title"`
	// MinPercent is the fill percentage below which completion is refused.
	// OptimalPercent is the fill percentage at which completion proceeds
	// without confirmation. Between the two a confirmation step is required.
	MinPercent     int `json:"minPercent"`
	OptimalPercent int `json:"optimalPercent"`
	// Weight scales the section's quality contribution to the readiness
	// score, reflecting how many form questions the section answers.
	Weight int `json:"weight"`
}

type GateSpec struct {
	ID        string `json:"id"`
	SectionID string `json:"sectionId"`
	Title     string `json:"title"`
	Weight    int    `json:"weight"`
}

type Stage string

const (
	StageIntroduce Stage = "INTRODUCE"
	StageReinforce Stage = "REINFORCE"
	StageApply     Stage = "APPLY"
	StageValidate  Stage = "VALIDATE"
)

// Resurfacing schedules a concept to reappear in a later section at a given
// stage. It supplies display context only and never affects section state.
type Resurfacing struct {
	SectionID string `json:"sectionId"`
	Stage     Stage  `json:"stage"`
}

type Concept struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	IntroducedIn string        `json:"introducedIn"`
	Schedule     []Resurfacing `json:"schedule,omitempty"`
}

// Catalog is the validated interview definition.
type Catalog struct {
	Sections  []SectionSpec
	Questions []Question
	Gates     []GateSpec
	Concepts  []Concept

	sectionByID  map[string]SectionSpec
	questionByID map[string]Question
	gateByID     map[string]GateSpec
	questionPos  map[string]int
}

func (c *Catalog) Section(id string) (SectionSpec, bool) {
	s, ok := c.sectionByID[id]
	return s, ok
}

func (c *Catalog) Question(id string) (Question, bool) {
	q, ok := c.questionByID[id]
	return q, ok
}

func (c *Catalog) Gate(id string) (GateSpec, bool) {
	g, ok := c.gateByID[id]
	return g, ok
}

// SectionQuestions returns the catalog-ordered questions of one section.
func (c *Catalog) SectionQuestions(sectionID string) []Question {
	var out []Question
	for _, q := range c.Questions {
		if q.SectionID == sectionID {
			out = append(out, q)
		}
	}
	return out
}
