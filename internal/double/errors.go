package double

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes harness errors.
type ErrorCode string

const (
	// ErrCodeUnstubbedCall indicates a strict set received a call no rule matched.
	ErrCodeUnstubbedCall ErrorCode = "UNSTUBBED_CALL"

	// ErrCodeArityMismatch indicates matchers and arguments differ in count.
	ErrCodeArityMismatch ErrorCode = "ARITY_MISMATCH"

	// ErrCodeNoInvocationRecorded indicates a capture found no matching call.
	ErrCodeNoInvocationRecorded ErrorCode = "NO_INVOCATION_RECORDED"

	// ErrCodeUnknownMethod indicates a call or rule names a method the
	// double's descriptor does not declare.
	ErrCodeUnknownMethod ErrorCode = "UNKNOWN_METHOD"
)

// Error is returned for misuse of a double or an unanswerable call.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Double and Method identify the call site, when known.
	Double string
	Method string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Double != "" && e.Method != "" {
		return fmt.Sprintf("%s: %s (call=%s.%s)", e.Code, e.Message, e.Double, e.Method)
	}
	if e.Double != "" {
		return fmt.Sprintf("%s: %s (double=%s)", e.Code, e.Message, e.Double)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnstubbedCall reports whether err is an unstubbed call error.
func IsUnstubbedCall(err error) bool {
	return hasCode(err, ErrCodeUnstubbedCall)
}

// IsArityMismatch reports whether err is an arity mismatch error.
func IsArityMismatch(err error) bool {
	return hasCode(err, ErrCodeArityMismatch)
}

// IsNoInvocationRecorded reports whether err is a missing invocation error.
func IsNoInvocationRecorded(err error) bool {
	return hasCode(err, ErrCodeNoInvocationRecorded)
}

// IsUnknownMethod reports whether err is an unknown method error.
func IsUnknownMethod(err error) bool {
	return hasCode(err, ErrCodeUnknownMethod)
}

func hasCode(err error, code ErrorCode) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// NewUnstubbedCallError creates an Error for a call no rule answered.
func NewUnstubbedCallError(double, method string, args []any) *Error {
	return &Error{
		Code:    ErrCodeUnstubbedCall,
		Message: fmt.Sprintf("no rule matches arguments (%s)", formatArgs(args)),
		Double:  double,
		Method:  method,
	}
}

// NewArityMismatchError creates an Error for a matcher/argument count mismatch.
func NewArityMismatchError(double, method string, want, got int) *Error {
	return &Error{
		Code:    ErrCodeArityMismatch,
		Message: fmt.Sprintf("expected %d arguments, got %d", want, got),
		Double:  double,
		Method:  method,
	}
}

// NewNoInvocationRecordedError creates an Error for a capture on an empty history.
func NewNoInvocationRecordedError(double, method string) *Error {
	return &Error{
		Code:    ErrCodeNoInvocationRecorded,
		Message: "no invocation recorded",
		Double:  double,
		Method:  method,
	}
}

// NewUnknownMethodError creates an Error for a method missing from the descriptor.
func NewUnknownMethodError(double, method string) *Error {
	return &Error{
		Code:    ErrCodeUnknownMethod,
		Message: "method not declared by descriptor",
		Double:  double,
		Method:  method,
	}
}

// VerificationFailure is the failure signal of Verify and VerifyOrder.
// It carries the expected and actual outcome plus a unified diff of the
// expected and recorded call listings.
type VerificationFailure struct {
	Kind     string // "verify", "verify_order" or "no_more_interactions"
	Expected string
	Actual   string
	Diff     string
}

// Error implements the error interface.
func (f *VerificationFailure) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Verification failed: %s\n", f.Kind)
	fmt.Fprintf(&buf, "  Expected: %s\n", f.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", f.Actual)

	if f.Diff != "" {
		fmt.Fprintf(&buf, "\n%s", f.Diff)
	}

	return buf.String()
}
