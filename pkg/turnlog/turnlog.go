// Package turnlog keeps the in-memory working copy of the active chat
// session and reconciles it with a session.Store.
package turnlog

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/session"
)

// ErrDetached is returned by Append after the log's session was removed.
var ErrDetached = errors.New("session was removed")

// TurnLog is the append-only turn sequence of one owner's active session.
// A TurnLog without a name is a scratch session: it is never persisted.
//
// It is the only component that requests saves of a session's turns.
type TurnLog struct {
	mu sync.Mutex

	store session.Store
	owner string
	name  string
	turns []llm.Turn

	// dirty is set when the in-memory sequence is ahead of the store.
	dirty bool

	// detached is set once the session was removed from the store. A
	// detached log neither accepts turns nor saves.
	detached bool
}

// New creates an unnamed scratch TurnLog for owner.
func New(store session.Store, owner string) *TurnLog {
	return &TurnLog{
		store: store,
		owner: owner,
		turns: []llm.Turn{},
	}
}

// Open creates a TurnLog positioned on the named session.
func Open(ctx context.Context, store session.Store, owner, name string) (*TurnLog, error) {
	l := New(store, owner)
	if err := l.SwitchTo(ctx, name); err != nil {
		return nil, err
	}
	return l, nil
}

// Append adds a turn to the end of the sequence. It does not persist.
func (l *TurnLog) Append(turn llm.Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.detached {
		return ErrDetached
	}
	l.turns = append(l.turns, turn)
	l.dirty = true
	return nil
}

// AppendUnique appends turn unless a turn with the same role and content is
// already in the sequence. It reports whether the turn was added.
func (l *TurnLog) AppendUnique(turn llm.Turn) (bool, error) {
	if err := turn.Validate(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.detached {
		return false, ErrDetached
	}
	for _, t := range l.turns {
		if t.Role == turn.Role && t.Content == turn.Content {
			return false, nil
		}
	}
	l.turns = append(l.turns, turn)
	l.dirty = true
	return true, nil
}

// CommitIfNamed saves the full sequence when the session has a name. For a
// scratch session it does nothing. On failure the in-memory sequence is kept
// and the log stays dirty, so a later commit retries the write.
func (l *TurnLog) CommitIfNamed(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.name == "" || l.detached {
		return nil
	}

	if err := l.store.Save(ctx, l.owner, l.name, l.turns); err != nil {
		l.dirty = true
		return err
	}

	l.dirty = false
	return nil
}

// SwitchTo discards the in-memory sequence without saving it and loads the
// named session. An empty name switches to a fresh scratch session.
func (l *TurnLog) SwitchTo(ctx context.Context, name string) error {
	if name == "" {
		l.mu.Lock()
		defer l.mu.Unlock()

		l.name = ""
		l.turns = []llm.Turn{}
		l.dirty = false
		l.detached = false
		return nil
	}

	s, err := l.store.Load(ctx, l.owner, name)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.name = s.Name
	l.turns = llm.CloneTurns(s.History)
	l.dirty = false
	l.detached = false
	return nil
}

// Create switches to a new, empty session called name and saves it right
// away so it shows up in listings before the first message.
func (l *TurnLog) Create(ctx context.Context, name string) error {
	name, err := session.Validate(l.owner, name)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.name = name
	l.turns = []llm.Turn{}
	l.dirty = true
	l.detached = false

	if err := l.store.Save(ctx, l.owner, l.name, l.turns); err != nil {
		return err
	}

	l.dirty = false
	return nil
}

// Detach marks the session as removed. The turns already in memory stay
// readable, but later appends fail with ErrDetached and commits do nothing,
// so a reply still streaming cannot bring the session back. Switching to
// another session attaches the log again.
func (l *TurnLog) Detach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.detached = true
	l.dirty = false
}

// Detached reports whether the session was removed under the log.
func (l *TurnLog) Detached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.detached
}

// Name is the active session's name, empty for a scratch session.
func (l *TurnLog) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// Owner is the user the log belongs to.
func (l *TurnLog) Owner() string {
	return l.owner
}

// Turns returns a copy of the current sequence.
func (l *TurnLog) Turns() []llm.Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return llm.CloneTurns(l.turns)
}

// Len is the number of turns in the sequence.
func (l *TurnLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// Dirty reports whether the sequence has changes the store has not accepted.
func (l *TurnLog) Dirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}
