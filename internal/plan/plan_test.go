package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"planwright/api/internal/catalog"
	"planwright/api/internal/gate"
	"planwright/api/internal/section"
)

func planCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(
		[]catalog.SectionSpec{
			{ID: "idea", Ordinal: 1, Title: "Idea", MinPercent: 50, OptimalPercent: 80, Weight: 2},
			{ID: "finance", Ordinal: 2, Title: "Finance", MinPercent: 50, OptimalPercent: 80, Weight: 1},
		},
		[]catalog.Question{
			{ID: "i1", SectionID: "idea", Prompt: "What do you sell?", Kind: catalog.KindText, Required: true, MaxIterations: 3, GateID: "eligibility"},
			{ID: "i2", SectionID: "idea", Prompt: "Describe it", Kind: catalog.KindText, Required: true, MinLength: 5, MaxLength: 40, MaxIterations: 3},
			{ID: "i3", SectionID: "idea", Prompt: "Do you have customers?", Kind: catalog.KindChoice, Required: true, Choices: []string{"Yes", "No"}, MaxIterations: 3},
			{ID: "i4", SectionID: "idea", Prompt: "How many?", Kind: catalog.KindNumber, Required: true, MaxIterations: 3,
				VisibleIf: []catalog.Condition{{QuestionID: "i3", Op: catalog.OpEquals, Value: "Yes"}}},
			{ID: "f1", SectionID: "finance", Prompt: "Yearly revenue?", Kind: catalog.KindNumber, Required: true, MaxIterations: 3},
		},
		[]catalog.GateSpec{
			{ID: "eligibility", SectionID: "idea", Title: "Eligibility", Weight: 1},
		},
		nil,
	)
	if err != nil {
		t.Fatalf("load plan catalog: %v", err)
	}
	return cat
}

func newPlanSession(t *testing.T) (*Session, *catalog.Catalog) {
	t.Helper()
	cat := planCatalog(t)
	return NewSession(cat, "plan_1", "user_1", nil, time.Now()), cat
}

// submit runs one full successful coaching round and accepts the result.
func submitAccept(t *testing.T, s *Session, cat *catalog.Catalog, questionID, value string, update *GateUpdate) {
	t.Helper()
	q, ok := cat.Question(questionID)
	if !ok {
		t.Fatalf("unknown question %s", questionID)
	}
	seq, err := s.BeginEvaluation(q, value)
	if err != nil {
		t.Fatalf("begin %s: %v", questionID, err)
	}
	if _, applied := s.RecordEvaluation(q, seq, []byte(`{}`), false, update, time.Now()); !applied {
		t.Fatalf("record %s not applied", questionID)
	}
	if err := s.Accept(q, cat, time.Now()); err != nil {
		t.Fatalf("accept %s: %v", questionID, err)
	}
}

func TestNewSessionInitialState(t *testing.T) {
	s, _ := newPlanSession(t)

	if s.Status != StatusActive {
		t.Fatalf("status = %s", s.Status)
	}
	if s.Sections[0].Status != section.StatusAvailable {
		t.Fatalf("first section = %s", s.Sections[0].Status)
	}
	if s.Sections[1].Status != section.StatusLocked {
		t.Fatalf("second section = %s", s.Sections[1].Status)
	}
	if s.Gates["eligibility"].Status != gate.StatusLocked {
		t.Fatalf("gate = %s", s.Gates["eligibility"].Status)
	}
	for id, qs := range s.Questions {
		if qs.Phase != PhaseUnanswered {
			t.Fatalf("question %s phase = %s", id, qs.Phase)
		}
	}
	// i4 is conditional on i3 and must not count as expected yet.
	if s.Sections[0].Expected != 3 {
		t.Fatalf("idea expected = %d", s.Sections[0].Expected)
	}
}

func TestRefreshSectionsTracksVisibility(t *testing.T) {
	s, cat := newPlanSession(t)

	submitAccept(t, s, cat, "i3", "Yes", nil)
	if s.Sections[0].Expected != 4 {
		t.Fatalf("expected after unlock answer = %d", s.Sections[0].Expected)
	}
	if s.Sections[0].Answered != 1 {
		t.Fatalf("answered = %d", s.Sections[0].Answered)
	}
	if s.Sections[0].Status != section.StatusInProgress {
		t.Fatalf("section after first answer = %s", s.Sections[0].Status)
	}

	// Changing the controlling answer hides the dependent question again.
	submitAccept(t, s, cat, "i3", "No", nil)
	if s.Sections[0].Expected != 3 {
		t.Fatalf("expected after flip = %d", s.Sections[0].Expected)
	}
}

func TestSectionCascadeOnCompletion(t *testing.T) {
	s, cat := newPlanSession(t)
	submitAccept(t, s, cat, "i1", "Sourdough bread", nil)
	submitAccept(t, s, cat, "i2", "Daily fresh loaves", nil)

	st := s.Section("idea")
	if _, err := section.RequestCompletion(st, 50, 80, true); err != nil {
		t.Fatalf("complete idea: %v", err)
	}
	s.RefreshSections(cat, time.Now())
	if s.Section("finance").Status != section.StatusAvailable {
		t.Fatalf("finance after idea completed = %s", s.Section("finance").Status)
	}
}

func TestBeginEvaluationRejectsInFlight(t *testing.T) {
	s, cat := newPlanSession(t)
	q, _ := cat.Question("i1")

	if _, err := s.BeginEvaluation(q, "first"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := s.BeginEvaluation(q, "second"); !errors.Is(err, ErrEvaluationInFlight) {
		t.Fatalf("second begin: %v", err)
	}
}

func TestStaleResultIsDropped(t *testing.T) {
	s, cat := newPlanSession(t)
	q, _ := cat.Question("i1")

	seq1, err := s.BeginEvaluation(q, "first draft")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	// The call fails and rolls back, then a fresh submission goes out.
	s.RollbackEvaluation(q.ID, seq1)
	seq2, err := s.BeginEvaluation(q, "second draft")
	if err != nil {
		t.Fatalf("second begin: %v", err)
	}

	// The first call's result straggles in; it must not touch anything.
	if _, applied := s.RecordEvaluation(q, seq1, []byte(`{}`), true, nil, time.Now()); applied {
		t.Fatal("stale result applied")
	}
	if len(s.History[q.ID]) != 0 {
		t.Fatalf("stale result recorded: %d exchanges", len(s.History[q.ID]))
	}

	exchange, applied := s.RecordEvaluation(q, seq2, []byte(`{}`), false, nil, time.Now())
	if !applied {
		t.Fatal("current result dropped")
	}
	if exchange.Answer != "second draft" {
		t.Fatalf("recorded answer = %q", exchange.Answer)
	}
}

func TestRollbackPreservesDraft(t *testing.T) {
	s, cat := newPlanSession(t)
	q, _ := cat.Question("i1")

	seq, _ := s.BeginEvaluation(q, "keep me")
	s.RollbackEvaluation(q.ID, seq)

	qs := s.Questions[q.ID]
	if qs.Phase != PhaseSubmitted {
		t.Fatalf("phase after rollback = %s", qs.Phase)
	}
	if qs.Draft != "keep me" {
		t.Fatalf("draft after rollback = %q", qs.Draft)
	}
	if len(s.History[q.ID]) != 0 {
		t.Fatal("rollback recorded an exchange")
	}
}

func TestIterationCapForcesFinalRound(t *testing.T) {
	s, cat := newPlanSession(t)
	q, _ := cat.Question("i1") // MaxIterations 3

	for round := 0; round < 3; round++ {
		seq, err := s.BeginEvaluation(q, fmt.Sprintf("draft %d", round))
		if err != nil {
			t.Fatalf("begin round %d: %v", round, err)
		}
		// The coach always wants another round; the cap overrides it on the
		// last one.
		exchange, applied := s.RecordEvaluation(q, seq, []byte(`{}`), true, nil, time.Now())
		if !applied {
			t.Fatalf("round %d dropped", round)
		}
		if exchange.Iteration != round {
			t.Fatalf("round %d iteration = %d", round, exchange.Iteration)
		}
		want := round < 2
		if exchange.ShouldIterate != want {
			t.Fatalf("round %d shouldIterate = %v, want %v", round, exchange.ShouldIterate, want)
		}
	}
}

func TestZeroMaxIterationsNeverIterates(t *testing.T) {
	s, cat := newPlanSession(t)
	q, _ := cat.Question("i1")
	q.MaxIterations = 0

	seq, _ := s.BeginEvaluation(q, "only draft")
	exchange, _ := s.RecordEvaluation(q, seq, []byte(`{}`), true, nil, time.Now())
	if exchange.ShouldIterate {
		t.Fatal("shouldIterate with no iteration budget")
	}
}

func TestHistoryIsCapped(t *testing.T) {
	s, cat := newPlanSession(t)
	q, _ := cat.Question("i1") // MaxIterations 3, so 4 retained exchanges

	for round := 0; round < 6; round++ {
		seq, _ := s.BeginEvaluation(q, fmt.Sprintf("draft %d", round))
		s.RecordEvaluation(q, seq, []byte(`{}`), true, nil, time.Now())
	}
	history := s.History[q.ID]
	if len(history) != 4 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[len(history)-1].Answer != "draft 5" {
		t.Fatalf("newest retained = %q", history[len(history)-1].Answer)
	}
	if history[0].Answer != "draft 2" {
		t.Fatalf("oldest retained = %q", history[0].Answer)
	}
}

func TestAcceptAppliesPendingVerdict(t *testing.T) {
	s, cat := newPlanSession(t)
	q, _ := cat.Question("i1")

	seq, _ := s.BeginEvaluation(q, "I meet the criteria")
	update := &GateUpdate{GateID: "eligibility", Status: gate.StatusPassed}
	if _, applied := s.RecordEvaluation(q, seq, []byte(`{}`), false, update, time.Now()); !applied {
		t.Fatal("record dropped")
	}
	// The verdict is held, not applied, until acceptance.
	if s.Gates["eligibility"].Status != gate.StatusLocked {
		t.Fatalf("gate before accept = %s", s.Gates["eligibility"].Status)
	}

	if err := s.Accept(q, cat, time.Now()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if s.Gates["eligibility"].Status != gate.StatusPassed {
		t.Fatalf("gate after accept = %s", s.Gates["eligibility"].Status)
	}
	if s.Verdicts["eligibility"] != gate.StatusPassed {
		t.Fatalf("verdict = %s", s.Verdicts["eligibility"])
	}
	if s.Answers[q.ID].Value != "I meet the criteria" {
		t.Fatalf("answer = %q", s.Answers[q.ID].Value)
	}
}

func TestAcceptWithoutVerdictMovesGateToChecking(t *testing.T) {
	s, cat := newPlanSession(t)
	submitAccept(t, s, cat, "i1", "an answer", nil)
	if s.Gates["eligibility"].Status != gate.StatusChecking {
		t.Fatalf("gate after accept without verdict = %s", s.Gates["eligibility"].Status)
	}
}

func TestEditingFinalAnswerInvalidatesGate(t *testing.T) {
	s, cat := newPlanSession(t)
	q, _ := cat.Question("i1")
	submitAccept(t, s, cat, "i1", "original", &GateUpdate{GateID: "eligibility", Status: gate.StatusPassed})

	// A new submission for the accepted answer drops the stale pass before
	// the coach has said anything.
	if _, err := s.BeginEvaluation(q, "edited"); err != nil {
		t.Fatalf("begin on final: %v", err)
	}
	if s.Gates["eligibility"].Status != gate.StatusChecking {
		t.Fatalf("gate after edit = %s", s.Gates["eligibility"].Status)
	}
	if _, held := s.Verdicts["eligibility"]; held {
		t.Fatal("stale verdict survived the edit")
	}
}

func TestAcceptRequiresSubmittedPhase(t *testing.T) {
	s, cat := newPlanSession(t)
	q, _ := cat.Question("i1")
	if err := s.Accept(q, cat, time.Now()); err == nil {
		t.Fatal("accept on unanswered question succeeded")
	}
	if _, err := s.BeginEvaluation(q, "draft"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.Accept(q, cat, time.Now()); err == nil {
		t.Fatal("accept while evaluating succeeded")
	}
}

func TestIterateRequiresSubmittedPhase(t *testing.T) {
	s, cat := newPlanSession(t)
	if err := s.Iterate("i1"); err == nil {
		t.Fatal("iterate on unanswered question succeeded")
	}
	q, _ := cat.Question("i1")
	seq, _ := s.BeginEvaluation(q, "draft")
	s.RecordEvaluation(q, seq, []byte(`{}`), true, nil, time.Now())
	if err := s.Iterate("i1"); err != nil {
		t.Fatalf("iterate on submitted question: %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s, cat := newPlanSession(t)
	submitAccept(t, s, cat, "i1", "original", nil)

	clone, err := s.Clone()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	clone.Answers["i1"] = Answer{QuestionID: "i1", Value: "mutated"}
	clone.Gates["eligibility"].Status = gate.StatusFailed

	if s.Answers["i1"].Value != "original" {
		t.Fatalf("clone mutation leaked into answers: %q", s.Answers["i1"].Value)
	}
	if s.Gates["eligibility"].Status == gate.StatusFailed {
		t.Fatal("clone mutation leaked into gates")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, cat := newPlanSession(t)
	submitAccept(t, s, cat, "i1", "round trip", &GateUpdate{GateID: "eligibility", Status: gate.StatusPassed})

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored Session
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restored.Answers["i1"].Value != "round trip" {
		t.Fatalf("restored answer = %q", restored.Answers["i1"].Value)
	}
	if restored.Gates["eligibility"].Status != gate.StatusPassed {
		t.Fatalf("restored gate = %s", restored.Gates["eligibility"].Status)
	}
	if restored.Questions["i1"].Phase != PhaseFinal {
		t.Fatalf("restored phase = %s", restored.Questions["i1"].Phase)
	}
}

func TestValidateAnswer(t *testing.T) {
	cat := planCatalog(t)
	text, _ := cat.Question("i2")
	choice, _ := cat.Question("i3")
	number, _ := cat.Question("f1")

	cases := []struct {
		name  string
		q     catalog.Question
		value string
		ok    bool
	}{
		{"blank required", text, "   ", false},
		{"too short", text, "tiny", false},
		{"too long", text, "this answer keeps going well past the forty character cap", false},
		{"valid text", text, "Fresh sourdough daily", true},
		{"valid choice", choice, "Yes", true},
		{"unknown choice", choice, "Maybe", false},
		{"valid number", number, "120000.50", true},
		{"not a number", number, "plenty", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAnswer(tc.q, tc.value)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if verr.QuestionID != tc.q.ID {
					t.Fatalf("error question = %s", verr.QuestionID)
				}
			}
		})
	}
}
