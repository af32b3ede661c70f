package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/readiness-backend/internal/domain/aggregates"
)

type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

var statusByCode = map[aggregates.ErrorCode]int{
	aggregates.CodeValidation:             http.StatusBadRequest,
	aggregates.CodeNotFound:               http.StatusNotFound,
	aggregates.CodeInvalidStateTransition: http.StatusConflict,
	aggregates.CodeTierNotAllowed:         http.StatusForbidden,
	aggregates.CodeQuestionNotVisible:     http.StatusUnprocessableEntity,
	aggregates.CodeVersionConflict:        http.StatusConflict,
	aggregates.CodeInsufficientData:       http.StatusUnprocessableEntity,
	aggregates.CodeScoringNotComplete:     http.StatusConflict,
	aggregates.CodeStoreUnavailable:       http.StatusServiceUnavailable,
	aggregates.CodeInternal:               http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for a domain error code.
func StatusFor(code aggregates.ErrorCode) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// FromError translates any error into an API error. Coded domain errors keep
// their code and message; infrastructure details are never exposed.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	code := aggregates.CodeOf(err)
	if code == "" {
		code = aggregates.CodeInternal
	}
	msg := aggregates.MessageOf(err)
	switch code {
	case aggregates.CodeInternal:
		msg = "internal error"
	case aggregates.CodeStoreUnavailable:
		msg = "assessment store is temporarily unavailable"
	}
	return &Error{Status: StatusFor(code), Code: string(code), Message: msg, Err: err}
}
