package driver

import (
	"errors"
	"fmt"
)

// Error is a caller error raised by the driver's programmatic API.
//
// Test outcomes are never errors. Error covers conditions such as an engine
// preference naming no registered engine, or a table that cannot be opened
// at the top level of a run.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes driver errors.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates a name or value the caller passed
	// cannot be resolved.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeTableCycle indicates a table would invoke itself directly or
	// through its descendants.
	ErrCodeTableCycle ErrorCode = "TABLE_CYCLE"

	// ErrCodeDepthExceeded indicates nested invocation exceeded MaxTableDepth.
	ErrCodeDepthExceeded ErrorCode = "DEPTH_EXCEEDED"

	// ErrCodeTableOpen indicates the record source could not open a table.
	ErrCodeTableOpen ErrorCode = "TABLE_OPEN"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsInvalidArgument returns true for ErrCodeInvalidArgument errors.
// Uses errors.As to handle wrapped errors.
func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrCodeInvalidArgument)
}

// IsTableCycle returns true for ErrCodeTableCycle errors.
func IsTableCycle(err error) bool {
	return hasCode(err, ErrCodeTableCycle)
}

// IsDepthExceeded returns true for ErrCodeDepthExceeded errors.
func IsDepthExceeded(err error) bool {
	return hasCode(err, ErrCodeDepthExceeded)
}

func hasCode(err error, code ErrorCode) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// NewInvalidArgumentError creates an Error for an unresolvable argument.
func NewInvalidArgumentError(what, value string) *Error {
	return &Error{
		Code:    ErrCodeInvalidArgument,
		Message: fmt.Sprintf("invalid %s %q", what, value),
		Details: map[string]string{what: value},
	}
}

// NewTableCycleError creates an Error for a self-referencing table chain.
func NewTableCycleError(table string, stack []string) *Error {
	return &Error{
		Code:    ErrCodeTableCycle,
		Message: fmt.Sprintf("table %q is already executing", table),
		Details: map[string]string{
			"table": table,
			"stack": fmt.Sprintf("%v", stack),
		},
	}
}

// NewDepthExceededError creates an Error for nesting beyond the limit.
func NewDepthExceededError(table string, depth, maxDepth int) *Error {
	return &Error{
		Code:    ErrCodeDepthExceeded,
		Message: fmt.Sprintf("table %q exceeds max depth (%d > %d)", table, depth, maxDepth),
		Details: map[string]string{
			"depth":     fmt.Sprintf("%d", depth),
			"max_depth": fmt.Sprintf("%d", maxDepth),
		},
	}
}

// NewTableOpenError creates an Error for a table the source cannot open.
func NewTableOpenError(table, level string, err error) *Error {
	return &Error{
		Code:    ErrCodeTableOpen,
		Message: fmt.Sprintf("unable to open %s table %q", level, table),
		Details: map[string]string{"table": table, "level": level},
		Err:     err,
	}
}

// IsTableOpen returns true for ErrCodeTableOpen errors.
func IsTableOpen(err error) bool {
	return hasCode(err, ErrCodeTableOpen)
}
