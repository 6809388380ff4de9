// Package checkpoint provides durable storage for chat-session message
// buffers, so a long-running session can resume after a process restart
// instead of losing its history.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Store persists session snapshots. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save stores (or overwrites) the snapshot for its SessionID.
	Save(ctx context.Context, snapshot Snapshot) error

	// Load retrieves a snapshot. Returns ErrNotFound if it doesn't exist.
	Load(ctx context.Context, sessionID string) (Snapshot, error)

	// Delete removes a snapshot. Returns nil if it doesn't exist.
	Delete(ctx context.Context, sessionID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Snapshot is the persisted state of one chat session.
type Snapshot struct {
	SessionID string
	// Data holds the JSON-serialized message buffer. The llm package owns
	// the schema; this package treats it as an opaque blob so it has no
	// import-cycle dependency on llm.
	Data      []byte
	Timestamp time.Time
}

// Sentinel errors for checkpoint operations.
var (
	ErrNotFound    = errors.New("session checkpoint not found")
	ErrStoreClosed = errors.New("checkpoint store closed")
)
