package domain

import "fmt"

// ErrorKind enumerates the six error kinds of §7.
type ErrorKind string

const (
	ErrCancelled                     ErrorKind = "cancelled"
	ErrClassifierUnavailable         ErrorKind = "classifier_unavailable"
	ErrTransactionSourceUnavailable  ErrorKind = "transaction_source_unavailable"
	ErrResourceLimitExceeded         ErrorKind = "resource_limit_exceeded"
	ErrInvalidInput                  ErrorKind = "invalid_input"
	ErrInternalInvariantViolation    ErrorKind = "internal_invariant_violation"
)

// AnalysisError is the sole error type returned out of the pipeline.
// No stage ever returns a bare error or a partial RiskScore; either a
// complete Analysis or an *AnalysisError.
type AnalysisError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func NewAnalysisError(kind ErrorKind, message string, cause error) *AnalysisError {
	return &AnalysisError{Kind: kind, Message: message, Cause: cause}
}

func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is matching against another *AnalysisError: the
// two match when their Kind is equal. Targets of any other type never
// match.
func (e *AnalysisError) Is(target error) bool {
	other, ok := target.(*AnalysisError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
