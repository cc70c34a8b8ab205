package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"

	"planwright/api/internal/auth"
	"planwright/api/internal/authpw"
	"planwright/api/internal/coach"
	"planwright/api/internal/export"
	"planwright/api/internal/gate"
	"planwright/api/internal/plan"
	"planwright/api/internal/section"
	"planwright/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// mapError translates engine and infrastructure errors into the wire shape.
// Transition errors are programming errors, so they surface as 500 and get
// logged loudly rather than being shown to the user as something actionable.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var validationErr *plan.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity, "VALIDATION", validationErr.Reason, map[string]any{"questionId": validationErr.QuestionID}
	}
	if errors.Is(err, plan.ErrEvaluationInFlight) {
		return http.StatusConflict, "EVALUATION_IN_FLIGHT", "An evaluation for this question is still running", nil
	}

	var coachErr *coach.ServiceError
	if errors.As(err, &coachErr) {
		return http.StatusBadGateway, "COACH_UNAVAILABLE", "The coaching service is unavailable, your answer was kept", map[string]any{"attempts": coachErr.Attempts}
	}

	var gateErr *gate.TransitionError
	if errors.As(err, &gateErr) {
		log.Printf("illegal gate transition: %v", gateErr)
		return http.StatusInternalServerError, "ILLEGAL_TRANSITION", "Server error", nil
	}
	var sectionErr *section.TransitionError
	if errors.As(err, &sectionErr) {
		log.Printf("illegal section transition: %v", sectionErr)
		return http.StatusInternalServerError, "ILLEGAL_TRANSITION", "Server error", nil
	}

	if errors.Is(err, authpw.ErrInvalidCredentials) {
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	}
	if errors.Is(err, authpw.ErrEmailTaken) {
		return http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}

	if errors.Is(err, export.ErrUnsupportedFormat) {
		return http.StatusUnprocessableEntity, "VALIDATION", "format must be 'pdf' or 'docx'", nil
	}
	if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export tooling is not available on this host", nil
	}

	if errors.Is(err, store.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}

	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
