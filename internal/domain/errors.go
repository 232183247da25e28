package domain

import (
	"fmt"

	"github.com/agrisync/agrisync/pkg/errors"
)

// Sentinel errors matched by callers with errors.Is. Wrapping preserves
// the originating cause where one exists.
var (
	// ErrNoCachedData is returned for an offline read with nothing ever
	// cached under the key.
	ErrNoCachedData = errors.Sentinel("no cached data available")

	// ErrRemoteFetchFailed is returned for an online read whose fetch
	// failed with no fallback cache present.
	ErrRemoteFetchFailed = errors.Sentinel("remote fetch failed")

	// ErrQueueWriteFailed means the durable queue itself could not be
	// written. This risks data loss and must be surfaced loudly.
	ErrQueueWriteFailed = errors.Sentinel("could not persist queued operation")

	// ErrRetryExhausted marks an operation past the attempt ceiling.
	ErrRetryExhausted = errors.Sentinel("retry attempts exhausted")

	// ErrNotRetryable is returned by manual retry on an operation that
	// is not in the failed state.
	ErrNotRetryable = errors.Sentinel("operation is not retryable")

	// ErrNotFound is returned for an unknown operation id.
	ErrNotFound = errors.Sentinel("operation not found")

	// ErrNoNetwork is returned by operations that require connectivity.
	ErrNoNetwork = errors.Sentinel("no network connection")
)

// RemoteFetchError carries the originating cause of a failed online
// fetch with no fallback cache. Matches ErrRemoteFetchFailed with
// errors.Is.
type RemoteFetchError struct {
	Key   string
	Cause error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("remote fetch failed for %q: %v", e.Key, e.Cause)
}

func (e *RemoteFetchError) Unwrap() error { return e.Cause }

func (e *RemoteFetchError) Is(target error) bool { return target == ErrRemoteFetchFailed }

// QueueWriteError carries the persistence cause of a failed enqueue.
// Matches ErrQueueWriteFailed with errors.Is.
type QueueWriteError struct {
	Cause error
}

func (e *QueueWriteError) Error() string {
	return fmt.Sprintf("could not persist queued operation: %v", e.Cause)
}

func (e *QueueWriteError) Unwrap() error { return e.Cause }

func (e *QueueWriteError) Is(target error) bool { return target == ErrQueueWriteFailed }

// ValidationError is a terminal remote-write failure: the backend
// rejected the payload itself, so replaying will deterministically fail
// again. The sync queue marks such operations failed immediately
// instead of burning through the retry ceiling.
type ValidationError struct {
	EntityType string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.EntityType, e.Reason)
}
