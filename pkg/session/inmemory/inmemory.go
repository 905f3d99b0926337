// Package inmemory provides a map-backed session driver for tests and
// throwaway servers.
package inmemory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/session"
)

// Driver implements session.Store using nested maps keyed by owner then name.
type Driver struct {
	// mu guards sessions
	mu sync.RWMutex

	sessions map[string]map[string]*session.Session
	now      func() time.Time
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		sessions: make(map[string]map[string]*session.Session),
		now:      time.Now,
	}
}

// WithClock overrides the time source used for session timestamps.
func (d *Driver) WithClock(now func() time.Time) *Driver {
	d.now = now
	return d
}

func (d *Driver) List(_ context.Context, owner string) ([]session.Meta, error) {
	if err := session.ValidateOwner(owner); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	metas := make([]session.Meta, 0, len(d.sessions[owner]))
	for _, s := range d.sessions[owner] {
		metas = append(metas, session.Meta{
			Name:      s.Name,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
			Turns:     len(s.History),
		})
	}

	slices.SortFunc(metas, func(a, b session.Meta) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return metas, nil
}

func (d *Driver) Save(_ context.Context, owner, name string, turns []llm.Turn) error {
	name, err := session.Validate(owner, name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now().UTC()
	byName, ok := d.sessions[owner]
	if !ok {
		byName = make(map[string]*session.Session)
		d.sessions[owner] = byName
	}

	created := now
	if prev, ok := byName[name]; ok {
		created = prev.CreatedAt
	}

	byName[name] = &session.Session{
		Owner:     owner,
		Name:      name,
		CreatedAt: created,
		UpdatedAt: now,
		History:   llm.CloneTurns(turns),
	}
	return nil
}

func (d *Driver) Load(_ context.Context, owner, name string) (*session.Session, error) {
	name, err := session.Validate(owner, name)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sessions[owner][name]
	if !ok {
		return session.Empty(owner, name), nil
	}

	cp := *s
	cp.History = llm.CloneTurns(s.History)
	return &cp, nil
}

func (d *Driver) Remove(_ context.Context, owner, name string) error {
	name, err := session.Validate(owner, name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.sessions[owner], name)
	return nil
}

func (d *Driver) Close() error {
	return nil
}
