// Package section implements the section lifecycle machine: the ordered
// phases of the interview, the two-threshold completion rule, and the recap
// scheduler for spaced reinforcement.
package section

import (
	"fmt"
	"math"
)

type Status string

const (
	StatusLocked     Status = "LOCKED"
	StatusAvailable  Status = "AVAILABLE"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// State is the runtime state of one section within a session.
type State struct {
	ID       string `json:"id"`
	Ordinal  int    `json:"ordinal"`
	Status   Status `json:"status"`
	Answered int    `json:"answered"`
	Expected int    `json:"expected"`
	// Quality is the 0-10 section quality score assigned at completion.
	Quality int `json:"quality"`
}

// TransitionError reports a lifecycle change outside the allowed order.
// Like the gate equivalent it marks a programming error, not user input.
type TransitionError struct {
	SectionID string
	From      Status
	To        Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("section %s: illegal transition %s -> %s", e.SectionID, e.From, e.To)
}

var allowed = map[Status][]Status{
	StatusLocked:     {StatusAvailable},
	StatusAvailable:  {StatusInProgress},
	StatusInProgress: {StatusCompleted},
	// completed -> in_progress only through Reopen, never via Apply.
	StatusCompleted: {},
}

// Apply moves the section forward. Section status never regresses here;
// see Reopen for the single sanctioned exception.
func Apply(s *State, next Status) error {
	if s.Status == next {
		return nil
	}
	for _, candidate := range allowed[s.Status] {
		if candidate == next {
			s.Status = next
			return nil
		}
	}
	return &TransitionError{SectionID: s.ID, From: s.Status, To: next}
}

// Reopen returns a completed section to in_progress. It is only reachable
// from an explicit user edit action; the engine never calls it on its own.
func Reopen(s *State) error {
	if s.Status != StatusCompleted {
		return &TransitionError{SectionID: s.ID, From: s.Status, To: StatusInProgress}
	}
	s.Status = StatusInProgress
	return nil
}

// FillPercent is answered/expected as a percentage. Zero expected fields
// count as fully filled.
func FillPercent(answered, expected int) float64 {
	if expected <= 0 {
		return 100
	}
	return float64(answered) / float64(expected) * 100
}

// MinFields is the smallest answered count accepted for completion: a hard
// floor, so fill below the minimum percentage can never complete.
func MinFields(expected, minPercent int) int {
	return int(math.Ceil(float64(expected) * float64(minPercent) / 100))
}

// OptFields is the answered count at which completion skips confirmation.
// This target rounds down: it marks the count closest to the optimal share
// from below, matching how the coaching flow reports "N more to optimal".
func OptFields(expected, optPercent int) int {
	return int(math.Floor(float64(expected) * float64(optPercent) / 100))
}
