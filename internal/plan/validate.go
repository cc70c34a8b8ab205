package plan

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"planwright/api/internal/catalog"
)

// ValidationError rejects an answer on static constraints before any
// external call is made. Recoverable; shown inline to the user.
type ValidationError struct {
	QuestionID string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("answer for %s invalid: %s", e.QuestionID, e.Reason)
}

// ValidateAnswer checks the value against the question's constraints:
// required, length bounds, choice membership, numeric format.
func ValidateAnswer(q catalog.Question, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if q.Required {
			return &ValidationError{QuestionID: q.ID, Reason: "an answer is required"}
		}
		return &ValidationError{QuestionID: q.ID, Reason: "empty answers cannot be submitted"}
	}

	switch q.Kind {
	case catalog.KindText:
		length := utf8.RuneCountInString(trimmed)
		if q.MinLength > 0 && length < q.MinLength {
			return &ValidationError{QuestionID: q.ID, Reason: fmt.Sprintf("needs at least %d characters, got %d", q.MinLength, length)}
		}
		if q.MaxLength > 0 && length > q.MaxLength {
			return &ValidationError{QuestionID: q.ID, Reason: fmt.Sprintf("exceeds %d characters", q.MaxLength)}
		}
	case catalog.KindChoice:
		for _, choice := range q.Choices {
			if trimmed == choice {
				return nil
			}
		}
		return &ValidationError{QuestionID: q.ID, Reason: "value is not one of the offered choices"}
	case catalog.KindNumber:
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return &ValidationError{QuestionID: q.ID, Reason: "value is not a number"}
		}
	default:
		return &ValidationError{QuestionID: q.ID, Reason: fmt.Sprintf("unknown input kind %q", q.Kind)}
	}
	return nil
}
