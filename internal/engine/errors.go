package engine

import (
	"errors"
	"fmt"
)

// SubscriptionError reports a failure to set up or evaluate a live query.
type SubscriptionError struct {
	// Code identifies the error category.
	Code SubscriptionErrorCode

	// Query is the name of the affected query.
	Query string

	// Message is a human-readable description.
	Message string

	// Panic holds the recovered value for ErrCodeFetchPanic.
	Panic any
}

// SubscriptionErrorCode categorizes subscription errors.
type SubscriptionErrorCode string

const (
	// ErrCodeEmptyWatch indicates a query declared no tables to watch.
	ErrCodeEmptyWatch SubscriptionErrorCode = "EMPTY_WATCH_SET"

	// ErrCodeNoFetch indicates a query has no fetch function.
	ErrCodeNoFetch SubscriptionErrorCode = "NO_FETCH"

	// ErrCodeTrackerClosed indicates the tracker no longer accepts registrations.
	ErrCodeTrackerClosed SubscriptionErrorCode = "TRACKER_CLOSED"

	// ErrCodeFetchPanic indicates a query's fetch function panicked.
	ErrCodeFetchPanic SubscriptionErrorCode = "FETCH_PANIC"
)

// Error implements the error interface.
func (e *SubscriptionError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("%s: %s (query=%s)", e.Code, e.Message, e.Query)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsFetchPanic reports whether err comes from a panicking fetch.
func IsFetchPanic(err error) bool {
	var se *SubscriptionError
	if errors.As(err, &se) {
		return se.Code == ErrCodeFetchPanic
	}
	return false
}

// IsTrackerClosed reports whether err comes from registering on a closed
// tracker.
func IsTrackerClosed(err error) bool {
	var se *SubscriptionError
	if errors.As(err, &se) {
		return se.Code == ErrCodeTrackerClosed
	}
	return false
}

func newFetchPanicError(query string, r any) *SubscriptionError {
	return &SubscriptionError{
		Code:    ErrCodeFetchPanic,
		Query:   query,
		Message: fmt.Sprintf("fetch panicked: %v", r),
		Panic:   r,
	}
}
