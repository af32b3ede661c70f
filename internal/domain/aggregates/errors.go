package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the stable machine-readable kind carried by assessment failures.
type ErrorCode string

const (
	CodeValidation             ErrorCode = "validation"
	CodeNotFound               ErrorCode = "not_found"
	CodeInvalidStateTransition ErrorCode = "invalid_state_transition"
	CodeTierNotAllowed         ErrorCode = "tier_not_allowed"
	CodeQuestionNotVisible     ErrorCode = "question_not_visible"
	CodeVersionConflict        ErrorCode = "version_conflict"
	CodeInsufficientData       ErrorCode = "insufficient_data"
	CodeScoringNotComplete     ErrorCode = "scoring_not_complete"
	CodeStoreUnavailable       ErrorCode = "store_unavailable"
	CodeInternal               ErrorCode = "internal"
)

// Error is the canonical coded error.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a coded error with explicit operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Errorf is NewError with a formatted message and no cause.
func Errorf(code ErrorCode, op, format string, args ...any) error {
	return NewError(code, op, fmt.Sprintf(format, args...), nil)
}

// Wrap annotates err with code. A nil err stays nil.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// IsCode reports whether err (or anything it wraps) carries code.
func IsCode(err error, code ErrorCode) bool {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return false
	}
	return aggErr.Code == code
}

// CodeOf extracts the outermost code, or "" for uncoded errors.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}

// MessageOf returns the human message of a coded error, falling back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var aggErr *Error
	if errors.As(err, &aggErr) && strings.TrimSpace(aggErr.Message) != "" {
		return aggErr.Message
	}
	return err.Error()
}
