package section

// Decision is the outcome of a completion request.
type Decision string

const (
	// DecisionRefused: fill is below the minimum threshold.
	DecisionRefused Decision = "REFUSED"
	// DecisionNeedsConfirmation: fill is between minimum and optimal; the
	// caller must repeat the request with the confirmation flag set.
	DecisionNeedsConfirmation Decision = "NEEDS_CONFIRMATION"
	DecisionCompleted         Decision = "COMPLETED"
)

// Outcome describes a completion request result. RemainingToMinimum and
// RemainingToOptimal name how many more answered fields would reach the
// respective threshold; both are zero once met.
type Outcome struct {
	Decision           Decision `json:"decision"`
	FillPercent        float64  `json:"fillPercent"`
	RemainingToMinimum int      `json:"remainingToMinimum,omitempty"`
	RemainingToOptimal int      `json:"remainingToOptimal,omitempty"`
}

// RequestCompletion applies the two-threshold rule and, when the request
// passes, transitions the section to completed. Requiring full fill causes
// drop-off, requiring nothing produces thin plans; the confirmation step in
// between is the compromise. A section that is not in_progress cannot be
// completed at all.
func RequestCompletion(s *State, minPercent, optPercent int, confirmed bool) (Outcome, error) {
	if s.Status != StatusInProgress {
		return Outcome{}, &TransitionError{SectionID: s.ID, From: s.Status, To: StatusCompleted}
	}

	minFields := MinFields(s.Expected, minPercent)
	optFields := OptFields(s.Expected, optPercent)
	if optFields < minFields {
		optFields = minFields
	}

	out := Outcome{FillPercent: FillPercent(s.Answered, s.Expected)}

	if s.Answered < minFields {
		out.Decision = DecisionRefused
		out.RemainingToMinimum = minFields - s.Answered
		out.RemainingToOptimal = optFields - s.Answered
		return out, nil
	}

	if s.Answered < optFields && !confirmed {
		out.Decision = DecisionNeedsConfirmation
		out.RemainingToOptimal = optFields - s.Answered
		return out, nil
	}

	if err := Apply(s, StatusCompleted); err != nil {
		return Outcome{}, err
	}
	out.Decision = DecisionCompleted
	return out, nil
}
