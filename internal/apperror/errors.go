package apperror

import (
	"errors"
	"fmt"
)

// Code categorizes failures the sync engine reacts to differently.
type Code string

const (
	// CodeConflict means a versioned write lost against a concurrent writer.
	CodeConflict Code = "CONFLICT"

	// CodeRetriesExhausted means a conflicting write was abandoned after the retry budget.
	CodeRetriesExhausted Code = "RETRIES_EXHAUSTED"

	// CodeConfiguration means store configuration cannot route the order.
	CodeConfiguration Code = "CONFIGURATION"

	CodeNotFound        Code = "NOT_FOUND"
	CodeDuplicate       Code = "DUPLICATE"
	CodeLockNotAcquired Code = "LOCK_NOT_ACQUIRED"
	CodeValidation      Code = "VALIDATION"

	// CodeDependency means a record cannot be cancelled while live children reference it.
	CodeDependency Code = "DEPENDENCY"
)

// Error is the typed error returned across package boundaries.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func Is(err error, code Code) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

func IsConflict(err error) bool        { return Is(err, CodeConflict) }
func IsRetriesExhausted(err error) bool { return Is(err, CodeRetriesExhausted) }
func IsConfiguration(err error) bool   { return Is(err, CodeConfiguration) }
func IsNotFound(err error) bool        { return Is(err, CodeNotFound) }
func IsDuplicate(err error) bool       { return Is(err, CodeDuplicate) }
func IsLockNotAcquired(err error) bool { return Is(err, CodeLockNotAcquired) }
func IsValidation(err error) bool      { return Is(err, CodeValidation) }
func IsDependency(err error) bool      { return Is(err, CodeDependency) }
