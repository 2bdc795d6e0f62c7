package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeMalformed    ErrorType = "MALFORMED"
	ErrorTypePolicy       ErrorType = "POLICY"
	ErrorTypeCollaborator ErrorType = "COLLABORATOR"
	ErrorTypeConfig       ErrorType = "CONFIG"
	ErrorTypeInternal     ErrorType = "INTERNAL"
)

// Process exit codes.
const (
	ExitOK                 = 0
	ExitInternal           = 1
	ExitRenameOrDelete     = 2
	ExitModifyPublished    = 3
	ExitMissingVersionTag  = 4
	ExitUnparsableSnapshot = 10
	ExitTruncatedRename    = 11
)

// Error carries the exit code the process should terminate with.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Malformed(code int, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeMalformed,
		Message: message,
		Code:    code,
		Err:     cause,
	}
}

func Policy(code int, message string, details any) *Error {
	return &Error{
		Type:    ErrorTypePolicy,
		Message: message,
		Code:    code,
		Details: details,
	}
}

// Collaborator wraps a failed external process. Details holds its
// captured output so the caller can surface it before exiting.
func Collaborator(code int, message string, output string, cause error) *Error {
	if code <= 0 {
		code = ExitInternal
	}
	return &Error{
		Type:    ErrorTypeCollaborator,
		Message: message,
		Code:    code,
		Details: output,
		Err:     cause,
	}
}

func Config(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeConfig,
		Message: message,
		Code:    ExitInternal,
		Err:     cause,
	}
}

// ExitCode maps err to a process exit code. Untyped errors map to 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ExitInternal
}

// IsType reports whether err wraps an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == t
}
