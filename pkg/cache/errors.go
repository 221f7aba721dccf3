package cache

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when no backend holds the key. Read-path
	// backend failures are folded into this as well: a degraded cache answers
	// with a miss, never an error.
	ErrNotFound = errors.New("cache: key not found")

	// ErrAllBackendsUnavailable is returned by Set when no backend in the
	// write plan accepted the write.
	ErrAllBackendsUnavailable = errors.New("cache: all backends unavailable")

	// ErrThrottled is returned by InvalidatePattern when the invalidation
	// rate limit for the pattern is exceeded.
	ErrThrottled = errors.New("cache: invalidation throttled")
)

// FailureKind classifies backend failures for stats and logging.
type FailureKind int

const (
	FailureUnavailable FailureKind = iota + 1 // connection could not be established
	FailureTimeout                            // operation exceeded its deadline
)

func (k FailureKind) String() string {
	switch k {
	case FailureUnavailable:
		return "unavailable"
	case FailureTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// BackendError wraps a failure from a single backend with its classification.
type BackendError struct {
	Backend string
	Kind    FailureKind
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// classify wraps a raw backend error as a BackendError. Deadline errors become
// FailureTimeout, everything else (refused connections, resets, DNS failures)
// is treated as FailureUnavailable.
func classify(backend string, err error) *BackendError {
	kind := FailureUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = FailureTimeout
	}
	return &BackendError{Backend: backend, Kind: kind, Err: err}
}
