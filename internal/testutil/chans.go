package testutil

import (
	"testing"
	"time"
)

// Receive waits up to timeout for a value on ch and fails the test if none
// arrives or the channel is closed.
func Receive[T any](t testing.TB, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while waiting for a value")
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("no value received within %v", timeout)
	}
	var zero T
	return zero
}

// NoReceive fails the test if a value arrives on ch within d. A closed
// channel counts as no value.
func NoReceive[T any](t testing.TB, ch <-chan T, d time.Duration) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unexpected value received: %+v", v)
		}
	case <-time.After(d):
	}
}

// Closed reports whether ch is closed within timeout, discarding any values
// still buffered or in flight.
func Closed[T any](ch <-chan T, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return true
			}
		case <-deadline:
			return false
		}
	}
}
