package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// DomainError means a probability computation left its valid range (for
// instance the log of a non-positive transition probability). It is fatal for
// a run: it points at a parameterization or proposal-range defect and is never
// retried.
type DomainError struct {
	Op     string    // Computation that failed, e.g. "LogLikelihood"
	Params []float64 // Parameter values at the time of failure
	Err    error     // Underlying cause
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("Domain error in %s(%v): %v", e.Op, e.Params, e.Err)
}

// Unwrap exposes the underlying cause
func (e *DomainError) Unwrap() error { return e.Err }

// Cause supports errors.Cause from pkg/errors
func (e *DomainError) Cause() error { return e.Err }

// NewDomainError builds a DomainError; params is copied.
func NewDomainError(op string, params []float64, format string, args ...interface{}) *DomainError {
	cp := make([]float64, len(params))
	copy(cp, params)
	return &DomainError{
		Op:     op,
		Params: cp,
		Err:    errors.Errorf(format, args...),
	}
}

// EstimationError means a degenerate sample prevented a meaningful estimate:
// zero retained points, zero finite log-ratio terms, a singular covariance.
// No fallback scalar is ever produced alongside one.
type EstimationError struct {
	Op     string // Estimator step that failed
	Reason string
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("Estimation error in %s: %s", e.Op, e.Reason)
}

// NewEstimationError builds an EstimationError with a formatted reason
func NewEstimationError(op string, format string, args ...interface{}) *EstimationError {
	return &EstimationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsDomainError reports whether err (or anything it wraps) is a DomainError
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// IsEstimationError reports whether err (or anything it wraps) is an
// EstimationError
func IsEstimationError(err error) bool {
	var ee *EstimationError
	return errors.As(err, &ee)
}
