package session

import (
	"context"

	"github.com/papercomputeco/scribe/pkg/llm"
)

// Store persists named sessions per owner. Owners are isolated: no call for
// one owner reads or writes another owner's sessions.
//
// Implementations must be safe for concurrent use. Concurrent saves of the
// same (owner, name) are last-writer-wins.
type Store interface {
	// List returns the owner's sessions, most recently updated first.
	// An unknown owner has no sessions and is not an error.
	List(ctx context.Context, owner string) ([]Meta, error)

	// Save atomically replaces the session's full turn sequence, creating
	// the session and the owner's area if needed. A reader never observes a
	// partially written session.
	Save(ctx context.Context, owner, name string, turns []llm.Turn) error

	// Load returns the named session. A session that does not exist loads
	// as an empty session without error.
	Load(ctx context.Context, owner, name string) (*Session, error)

	// Remove deletes the named session. Removing a missing session is a no-op.
	Remove(ctx context.Context, owner, name string) error

	// Close releases any resources held by the store.
	Close() error
}
