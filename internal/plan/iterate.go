package plan

import (
	"errors"
	"fmt"
	"time"

	"planwright/api/internal/catalog"
	"planwright/api/internal/gate"
	"planwright/api/internal/section"
)

// ErrEvaluationInFlight rejects a second submission for a question whose
// previous submission is still out at the coaching service.
var ErrEvaluationInFlight = errors.New("evaluation already in flight for question")

// BeginEvaluation validates nothing (the caller validates first); it stakes
// the in-flight claim for a submission and returns the supersession token
// the caller must present when recording the result. Editing a finalised
// gate-linked answer returns the gate to checking here, so a stale pass can
// never survive an edit.
func (s *Session) BeginEvaluation(q catalog.Question, value string) (int, error) {
	qs := s.Questions[q.ID]
	if qs == nil {
		return 0, fmt.Errorf("unknown question %q", q.ID)
	}
	if qs.Phase == PhaseEvaluating {
		return 0, ErrEvaluationInFlight
	}

	if qs.Phase == PhaseFinal && q.GateID != "" {
		if g := s.Gates[q.GateID]; g != nil && (g.Status == gate.StatusPassed || g.Status == gate.StatusFailed) {
			if err := gate.Apply(g, gate.StatusChecking); err != nil {
				return 0, err
			}
		}
		delete(s.Verdicts, q.GateID)
	}

	qs.Draft = value
	qs.Phase = PhaseEvaluating
	qs.PendingGate = nil
	qs.Seq++
	return qs.Seq, nil
}

// RecordEvaluation appends the coaching exchange for an in-flight
// submission. A result whose seq no longer matches is stale (a newer
// submission superseded it) and is dropped without any mutation; the second
// return value reports whether the result was applied.
//
// The bounded-retry guarantee lives here: once the exchange count reaches
// the question's iteration cap, shouldIterate is forced false no matter what
// the coach recommended.
func (s *Session) RecordEvaluation(q catalog.Question, seq int, feedback []byte, shouldIterate bool, update *GateUpdate, now time.Time) (Exchange, bool) {
	qs := s.Questions[q.ID]
	if qs == nil || qs.Phase != PhaseEvaluating || qs.Seq != seq {
		return Exchange{}, false
	}

	exchange := Exchange{
		QuestionID:    q.ID,
		Answer:        qs.Draft,
		Feedback:      feedback,
		ShouldIterate: shouldIterate,
		Iteration:     qs.Iterations,
		CreatedAt:     now,
	}
	if q.MaxIterations <= 0 || exchange.Iteration+1 >= q.MaxIterations {
		exchange.ShouldIterate = false
	}

	s.History[q.ID] = append(s.History[q.ID], exchange)
	if keep := q.MaxIterations + 1; len(s.History[q.ID]) > keep {
		s.History[q.ID] = s.History[q.ID][len(s.History[q.ID])-keep:]
	}

	qs.Iterations++
	qs.Phase = PhaseSubmitted
	qs.PendingGate = update
	return exchange, true
}

// RollbackEvaluation is the failure path: the coaching call errored after
// retries, so the question returns to Submitted with the draft preserved and
// no exchange recorded. Stale seqs are ignored.
func (s *Session) RollbackEvaluation(questionID string, seq int) {
	qs := s.Questions[questionID]
	if qs == nil || qs.Phase != PhaseEvaluating || qs.Seq != seq {
		return
	}
	qs.Phase = PhaseSubmitted
	qs.PendingGate = nil
}

// Accept finalises the draft as the question's answer. This is the only
// path by which a linked gate leaves checking: a pending verdict from the
// accepted evaluation is applied here, through the transition table.
func (s *Session) Accept(q catalog.Question, cat *catalog.Catalog, now time.Time) error {
	qs := s.Questions[q.ID]
	if qs == nil {
		return fmt.Errorf("unknown question %q", q.ID)
	}
	if qs.Phase != PhaseSubmitted {
		return fmt.Errorf("question %q is not awaiting acceptance (phase %s)", q.ID, qs.Phase)
	}

	s.Answers[q.ID] = Answer{QuestionID: q.ID, Value: qs.Draft, UpdatedAt: now}
	qs.Phase = PhaseFinal

	if q.GateID != "" {
		g := s.Gates[q.GateID]
		if g != nil && g.Status == gate.StatusLocked {
			if err := gate.Apply(g, gate.StatusChecking); err != nil {
				return err
			}
		}
		if qs.PendingGate != nil && qs.PendingGate.GateID == q.GateID {
			verdict := qs.PendingGate.Status
			if verdict == gate.StatusPassed || verdict == gate.StatusFailed {
				if err := gate.Apply(g, verdict); err != nil {
					return err
				}
				s.Verdicts[q.GateID] = verdict
			}
		}
	}
	qs.PendingGate = nil

	s.RefreshSections(cat, now)
	return nil
}

// Iterate discards the pending evaluation result but keeps the draft for
// revision. The question stays Submitted so the user can rework and resubmit.
func (s *Session) Iterate(questionID string) error {
	qs := s.Questions[questionID]
	if qs == nil {
		return fmt.Errorf("unknown question %q", questionID)
	}
	if qs.Phase != PhaseSubmitted {
		return fmt.Errorf("question %q has no evaluation to iterate on (phase %s)", questionID, qs.Phase)
	}
	qs.PendingGate = nil
	return nil
}

// ReopenSection is the explicit edit action that returns a completed
// section to in_progress. Nothing else regresses a completed section.
func (s *Session) ReopenSection(sectionID string) error {
	st := s.Section(sectionID)
	if st == nil {
		return fmt.Errorf("unknown section %q", sectionID)
	}
	return section.Reopen(st)
}
