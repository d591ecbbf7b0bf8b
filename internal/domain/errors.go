package domain

import (
	"fmt"
	"time"
)

const conflictLayout = "2006-01-02T15:04"

// MissingFieldError reports a required input that was not supplied.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// InvalidIntervalError reports a normalized interval that breaks the
// start-before-end invariant.
type InvalidIntervalError struct {
	Start  time.Time
	End    time.Time
	Reason string
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid sleep interval %s - %s: %s",
		e.Start.Format(conflictLayout), e.End.Format(conflictLayout), e.Reason)
}

// SleepLogAlreadyExistsError is returned when a candidate interval overlaps
// a stored interval of the same user.
type SleepLogAlreadyExistsError struct {
	ExistingStart  time.Time
	ExistingEnd    time.Time
	CandidateStart time.Time
	CandidateEnd   time.Time
}

func (e *SleepLogAlreadyExistsError) Error() string {
	return fmt.Sprintf("You already have a log between %s and %s",
		e.ExistingStart.Format(conflictLayout), e.ExistingEnd.Format(conflictLayout))
}

// StorageError wraps a failure from the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
