package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches *NotFoundError
	ErrNotFound = errors.New("not found")
	// ErrDanglingReference matches *DanglingReferenceError
	ErrDanglingReference = errors.New("dangling reference")
	// ErrUpstreamUnavailable matches *UpstreamError
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// NotFoundError is a store lookup miss. No remote fetch was attempted.
type NotFoundError struct {
	ID ObjectID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DanglingReferenceError is a dependency that could not be resolved, even
// through a point lookup against the cloud.
type DanglingReferenceError struct {
	Ref ObjectID
	Err error
}

func (e *DanglingReferenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dangling reference to %s", e.Ref)
	}
	return fmt.Sprintf("dangling reference to %s: %v", e.Ref, e.Err)
}

func (e *DanglingReferenceError) Unwrap() error {
	return e.Err
}

func (e *DanglingReferenceError) Is(target error) bool {
	return target == ErrDanglingReference
}

// UpstreamError is a failed or timed out call to the cloud API
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream unavailable: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// Upstream wraps a cloud API failure as an *UpstreamError.
// Not-found results and errors that are already upstream errors pass through.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUpstreamUnavailable) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}
