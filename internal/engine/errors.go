package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	ErrCapacityExceeded = errors.New("criteria capacity exceeded")
	ErrIndexOutOfRange  = errors.New("criterion index out of range")
)

// CriteriaErrorCode categorizes criteria collection errors.
type CriteriaErrorCode string

const (
	// ErrCodeCapacityExceeded indicates AddCriterion on a full engine.
	ErrCodeCapacityExceeded CriteriaErrorCode = "CAPACITY_EXCEEDED"

	// ErrCodeIndexOutOfRange indicates RemoveCriterion with an invalid position.
	ErrCodeIndexOutOfRange CriteriaErrorCode = "INDEX_OUT_OF_RANGE"
)

// CriteriaError is returned by the engine's collection operations.
// The engine is never mutated when one is returned.
type CriteriaError struct {
	Code CriteriaErrorCode

	// Index is the requested position (INDEX_OUT_OF_RANGE only).
	Index int

	// Len is the number of criteria held when the operation failed.
	Len int
}

// Error implements the error interface.
func (e *CriteriaError) Error() string {
	switch e.Code {
	case ErrCodeCapacityExceeded:
		return fmt.Sprintf("%s: engine holds %d of %d criteria", e.Code, e.Len, MaxCriteria)
	case ErrCodeIndexOutOfRange:
		return fmt.Sprintf("%s: index %d, engine holds %d criteria", e.Code, e.Index, e.Len)
	default:
		return string(e.Code)
	}
}

// Is lets errors.Is match the sentinel for the error's code.
func (e *CriteriaError) Is(target error) bool {
	switch e.Code {
	case ErrCodeCapacityExceeded:
		return target == ErrCapacityExceeded
	case ErrCodeIndexOutOfRange:
		return target == ErrIndexOutOfRange
	}
	return false
}

// IsCapacityError returns true if the error reports a full engine.
// Uses errors.Is to handle wrapped errors.
func IsCapacityError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}

// IsIndexError returns true if the error reports an invalid position.
// Uses errors.Is to handle wrapped errors.
func IsIndexError(err error) bool {
	return errors.Is(err, ErrIndexOutOfRange)
}
