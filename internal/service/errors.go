package service

import (
	"errors"
	"fmt"
)

// Condition classifies query failures so callers can branch without string
// matching.
type Condition string

const (
	// ConditionNotFound indicates an unknown sensor or source.
	ConditionNotFound Condition = "not_found"

	// ConditionUnsupportedResolution indicates a requested resolution that
	// is no integer multiple or divisor of the sensor's native one.
	ConditionUnsupportedResolution Condition = "unsupported_resolution"

	// ConditionStoreUnavailable indicates the store failed or the context
	// was cancelled mid-query.
	ConditionStoreUnavailable Condition = "store_unavailable"

	// ConditionInvalidInput indicates a malformed request or belief batch.
	ConditionInvalidInput Condition = "invalid_input"

	// ConditionInternal indicates an unexpected engine failure.
	ConditionInternal Condition = "internal"
)

// QueryError wraps engine failures with their condition and, for per-sensor
// failures, the sensor concerned.
type QueryError struct {
	Condition  Condition
	Sensor     string
	Message    string
	Underlying error
}

func (e *QueryError) Error() string {
	if e.Sensor != "" {
		if e.Underlying != nil {
			return fmt.Sprintf("sensor %s [%s]: %s: %v", e.Sensor, e.Condition, e.Message, e.Underlying)
		}
		return fmt.Sprintf("sensor %s [%s]: %s", e.Sensor, e.Condition, e.Message)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("[%s]: %s: %v", e.Condition, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s]: %s", e.Condition, e.Message)
}

func (e *QueryError) Unwrap() error {
	return e.Underlying
}

func newQueryError(condition Condition, sensor, message string, underlying error) *QueryError {
	return &QueryError{Condition: condition, Sensor: sensor, Message: message, Underlying: underlying}
}

// ConditionOf extracts the condition from an error.
func ConditionOf(err error) Condition {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Condition
	}
	return ConditionInternal
}

// IsRetryable reports whether retrying the call may help.
func IsRetryable(err error) bool {
	return ConditionOf(err) == ConditionStoreUnavailable
}
