package gate

import "sort"

// EvaluateAll is the batch re-evaluation used at section-completion time. It
// derives every gate's status from the same inputs in one pass:
//
//	no answer for the linked question  -> stays locked
//	answer present, no verdict         -> checking
//	verdict for the current answer     -> the verdict's status
//
// A verdict never applies to a locked gate directly; the pass moves the gate
// through checking first, so the transition table holds on this path too.
// The result is a pure function of (answered, verdicts), which makes the
// pass idempotent: running it twice with unchanged inputs changes nothing.
func EvaluateAll(gates map[string]*Gate, linkedQuestion map[string]string, answered map[string]bool, verdicts map[string]Status) error {
	ids := make([]string, 0, len(gates))
	for id := range gates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		g := gates[id]
		questionID, linked := linkedQuestion[id]
		if !linked || !answered[questionID] {
			// Unanswered linked question: the gate must not have left
			// locked, and if it never did there is nothing to do.
			continue
		}

		target := StatusChecking
		if verdict, ok := verdicts[id]; ok && (verdict == StatusPassed || verdict == StatusFailed) {
			target = verdict
		}

		if g.Status == target {
			continue
		}
		if g.Status != StatusChecking && target != StatusChecking {
			// passed/failed/locked -> verdict goes through checking.
			if err := Apply(g, StatusChecking); err != nil {
				return err
			}
		}
		if g.Status != target {
			if err := Apply(g, target); err != nil {
				return err
			}
		}
	}
	return nil
}

// AllPassed reports whether every gate has reached passed.
func AllPassed(gates map[string]*Gate) bool {
	if len(gates) == 0 {
		return false
	}
	for _, g := range gates {
		if g.Status != StatusPassed {
			return false
		}
	}
	return true
}
