package domain

import (
	"encoding/json"
	"time"
)

// OpKind is the type of write an operation replays against the backend.
type OpKind string

const (
	OpKindCreate OpKind = "create"
	OpKindUpdate OpKind = "update"
	OpKindDelete OpKind = "delete"
)

// OpStatus is the replay state of a queued operation.
type OpStatus string

const (
	OpStatusPending  OpStatus = "pending"
	OpStatusInFlight OpStatus = "in_flight"
	OpStatusDone     OpStatus = "done"
	OpStatusFailed   OpStatus = "failed"
)

// QueuedOperation is a durably recorded local write awaiting replay
// against the remote API.
type QueuedOperation struct {
	ID            string          `json:"id"`
	Kind          OpKind          `json:"kind"`
	EntityType    string          `json:"entity_type"`
	Payload       json.RawMessage `json:"payload"`
	Status        OpStatus        `json:"status"`
	AttemptCount  int             `json:"attempt_count"`
	// Terminal marks a validation failure: replaying would
	// deterministically fail again, so automatic passes skip the
	// operation regardless of its attempt count.
	Terminal      bool            `json:"terminal,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
	DoneAt        time.Time       `json:"done_at,omitempty"`
}

// SyncSummary aggregates the outcome of a replay pass over the queue.
type SyncSummary struct {
	SyncedCount  int `json:"synced_count"`
	FailedCount  int `json:"failed_count"`
	PendingCount int `json:"pending_count"`
}

// RetryPolicy bounds replay attempts and spaces them out during a
// batch pass.
type RetryPolicy struct {
	MaxAttempts int
	// Delay between consecutive operations within one replay pass.
	Delay time.Duration
}

// DefaultRetryPolicy mirrors the behavior observed in the field app:
// five attempts, half a second between queued writes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Delay:       500 * time.Millisecond,
	}
}

// Retryable reports whether an operation is still eligible for an
// automatic replay pass under this policy. Replay passes are
// serialized, so an in_flight status observed at the start of a pass
// can only be the leftover of a crash mid-replay; those operations are
// eligible again rather than stranded.
func (p RetryPolicy) Retryable(op *QueuedOperation) bool {
	if op.Terminal {
		return false
	}
	if op.Status == OpStatusDone {
		return false
	}
	return op.AttemptCount < p.MaxAttempts
}
