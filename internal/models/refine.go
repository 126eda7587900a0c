package models

import (
	"errors"
	"fmt"
)

// FailureCode classifies refinement failures. Codes are stable strings the
// frontend translates; they also end up on failed conversation messages.
type FailureCode string

const (
	FailureCommandNotFound    FailureCode = "COMMAND_NOT_FOUND"
	FailureTimeout            FailureCode = "TIMEOUT"
	FailureParseError         FailureCode = "PARSE_ERROR"
	FailureValidationError    FailureCode = "VALIDATION_ERROR"
	FailureProhibitedNodeType FailureCode = "PROHIBITED_NODE_TYPE"
	FailureUnknown            FailureCode = "UNKNOWN_ERROR"
)

// RefineError carries a FailureCode through the refinement pipeline.
type RefineError struct {
	Code    FailureCode
	Message string
	Err     error
}

func NewRefineError(code FailureCode, format string, args ...interface{}) *RefineError {
	return &RefineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapRefineError attaches a code to an underlying error while keeping it
// unwrappable.
func WrapRefineError(code FailureCode, err error) *RefineError {
	if err == nil {
		return nil
	}
	return &RefineError{Code: code, Message: err.Error(), Err: err}
}

func (e *RefineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RefineError) Unwrap() error {
	return e.Err
}

// FailureCodeOf extracts the code from err, mapping anything uncoded to
// FailureUnknown. A nil err has no code and returns the empty string.
func FailureCodeOf(err error) FailureCode {
	if err == nil {
		return ""
	}
	var re *RefineError
	if errors.As(err, &re) && re.Code != "" {
		return re.Code
	}
	return FailureUnknown
}
