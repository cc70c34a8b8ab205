// Package gate tracks the fixed set of compliance gates and enforces their
// transition table. Every status change, whether from an accepted coaching
// iteration or from a batch re-evaluation, goes through Apply.
package gate

import "fmt"

type Status string

const (
	StatusLocked   Status = "LOCKED"
	StatusChecking Status = "CHECKING"
	StatusPassed   Status = "PASSED"
	StatusFailed   Status = "FAILED"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusLocked, StatusChecking, StatusPassed, StatusFailed:
		return Status(s), true
	}
	return "", false
}

// Gate is the runtime state of one compliance checkpoint.
type Gate struct {
	ID        string `json:"id"`
	SectionID string `json:"sectionId"`
	Title     string `json:"title"`
	Status    Status `json:"status"`
	Weight    int    `json:"weight"`
}

// TransitionError reports an attempted status change outside the transition
// table. It is a contract violation, not a user error: callers must not
// absorb it silently.
type TransitionError struct {
	GateID string
	From   Status
	To     Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("gate %s: illegal transition %s -> %s", e.GateID, e.From, e.To)
}

var allowed = map[Status][]Status{
	StatusLocked:   {StatusChecking},
	StatusChecking: {StatusPassed, StatusFailed},
	StatusPassed:   {StatusChecking},
	StatusFailed:   {StatusChecking},
}

// CanTransition reports whether from -> to is in the transition table.
// Self-transitions are permitted as no-ops so that idempotent re-evaluation
// can re-apply an unchanged status.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Apply moves the gate to next, or returns a TransitionError. locked can
// never jump straight to passed or failed; a verdict always goes through
// checking first.
func Apply(g *Gate, next Status) error {
	if !CanTransition(g.Status, next) {
		return &TransitionError{GateID: g.ID, From: g.Status, To: next}
	}
	g.Status = next
	return nil
}
