package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Numerical errors
	ErrNumericalDomain = errors.New("numerical domain error")
	ErrNonConvergence  = errors.New("model did not converge")
	ErrSingularMatrix  = fmt.Errorf("%w: singular information matrix", ErrNonConvergence)
	ErrDegenerateGroup = fmt.Errorf("%w: empty comparison group", ErrNumericalDomain)

	// Aggregation errors
	ErrContractViolation = errors.New("aggregation contract violation")
	ErrGap               = errors.New("aggregation gap")

	// Reporting errors
	ErrMissingScenario = errors.New("scenario missing from aggregated results")

	// Determinism errors
	ErrNonDeterministic = errors.New("non-deterministic result")
	ErrHashMismatch     = errors.New("hash mismatch")
)

// NewValidationError reports an invalid field value
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// NewDomainError reports a value that left its mathematical domain
func NewDomainError(what string, index int, value float64) error {
	return fmt.Errorf("%w: %s[%d] = %g", ErrNumericalDomain, what, index, value)
}

// NewContractError reports malformed input to the aggregator
func NewContractError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}

// Error checking helpers
func IsNumericalDomainError(err error) bool {
	return errors.Is(err, ErrNumericalDomain)
}

func IsNonConvergenceError(err error) bool {
	return errors.Is(err, ErrNonConvergence)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrNonDeterministic) ||
		errors.Is(err, ErrHashMismatch)
}
