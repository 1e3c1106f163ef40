// utils/errors.go - Error taxonomy shared by stores, services and handlers
package utils

import (
	"errors"
	"net/http"

	"wizzzard/session"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("only the host can control this quiz")
	ErrUnauthenticated = errors.New("authentication required")
	ErrConflict        = errors.New("quiz was changed by another request, reload and retry")
	ErrStore           = errors.New("document store unavailable")
	ErrQuestionClosed  = errors.New("question is not accepting answers")
	ErrAlreadyAnswered = errors.New("you already answered this question")
	ErrUsernameTaken   = errors.New("username is already taken")
	ErrBadCredentials  = errors.New("invalid email or password")
	ErrProviderSignIn  = errors.New("sign-in with the external provider failed")
)

// ValidationError reports the first invalid field of a request.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StatusCode maps an error from any layer to an HTTP status.
func StatusCode(err error) int {
	var verr *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrBadCredentials),
		errors.Is(err, ErrProviderSignIn):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, session.ErrNoParticipants):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrQuestionClosed),
		errors.Is(err, ErrAlreadyAnswered),
		errors.Is(err, ErrUsernameTaken),
		errors.Is(err, session.ErrAlreadyStarted),
		errors.Is(err, session.ErrAlreadyCompleted),
		errors.Is(err, session.ErrNotStarted),
		errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
