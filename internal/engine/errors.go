package engine

import (
	"errors"
	"fmt"
)

// DispatchError represents a failure detected inside the dispatch layer
// itself, as opposed to a failure of the underlying operation, which is
// propagated untouched.
type DispatchError struct {
	// Code identifies the error category.
	Code DispatchErrorCode

	// Op is the operation name being dispatched, when known.
	Op string

	// Type is the native type involved, when known.
	Type string

	// Message is a human-readable description.
	Message string
}

// DispatchErrorCode categorizes dispatch errors.
type DispatchErrorCode string

const (
	// ErrCodeOpNotFound indicates dispatch was invoked for a name with no
	// installed original.
	ErrCodeOpNotFound DispatchErrorCode = "OP_NOT_FOUND"

	// ErrCodeNotEligible indicates the name is on the exclusion list or was
	// never declared interceptable.
	ErrCodeNotEligible DispatchErrorCode = "NOT_ELIGIBLE"

	// ErrCodeBadReceiver indicates a receiver value dispatch cannot
	// classify.
	ErrCodeBadReceiver DispatchErrorCode = "BAD_RECEIVER"

	// ErrCodeBadOperand indicates an argument that cannot be unwrapped to a
	// native operand on the local path.
	ErrCodeBadOperand DispatchErrorCode = "BAD_OPERAND"

	// ErrCodeRemoteFailed indicates the command sender is missing or
	// misconfigured. Failures inside SendCommand itself are propagated
	// unchanged, not wrapped under this code.
	ErrCodeRemoteFailed DispatchErrorCode = "REMOTE_FAILED"

	// ErrCodeRehydrateMismatch indicates a raw result shape the rehydrator
	// does not recognize.
	ErrCodeRehydrateMismatch DispatchErrorCode = "REHYDRATE_MISMATCH"
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.Op != "" && e.Type != "" {
		return fmt.Sprintf("%s: %s (op=%s, type=%s)", e.Code, e.Message, e.Op, e.Type)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsOperationNotFound reports whether err is an OP_NOT_FOUND dispatch error.
// Uses errors.As to handle wrapped errors.
func IsOperationNotFound(err error) bool {
	return hasCode(err, ErrCodeOpNotFound)
}

// IsNotEligible reports whether err is a NOT_ELIGIBLE dispatch error.
func IsNotEligible(err error) bool {
	return hasCode(err, ErrCodeNotEligible)
}

// IsRehydrationMismatch reports whether err is a REHYDRATE_MISMATCH
// dispatch error.
func IsRehydrationMismatch(err error) bool {
	return hasCode(err, ErrCodeRehydrateMismatch)
}

func hasCode(err error, code DispatchErrorCode) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

func opNotFound(op, typeName string) *DispatchError {
	return &DispatchError{
		Code:    ErrCodeOpNotFound,
		Op:      op,
		Type:    typeName,
		Message: "no installed original for operation",
	}
}

func notEligible(op, typeName string) *DispatchError {
	return &DispatchError{
		Code:    ErrCodeNotEligible,
		Op:      op,
		Type:    typeName,
		Message: "operation is not interceptable",
	}
}
