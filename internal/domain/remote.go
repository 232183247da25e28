package domain

import (
	"context"
	"encoding/json"
)

// RemoteFetcher fetches a resource from the backend. The cache service
// treats the result as an opaque blob.
type RemoteFetcher func(ctx context.Context) (json.RawMessage, error)

// RemoteWriter replays one queued payload against the backend. A
// *ValidationError return marks the operation terminally failed; any
// other error counts against the retry ceiling.
type RemoteWriter interface {
	Write(ctx context.Context, payload json.RawMessage) error
}

// RemoteWriterFunc adapts a function to the RemoteWriter interface.
type RemoteWriterFunc func(ctx context.Context, payload json.RawMessage) error

func (f RemoteWriterFunc) Write(ctx context.Context, payload json.RawMessage) error {
	return f(ctx, payload)
}
