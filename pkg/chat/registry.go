package chat

import (
	"context"
	"sync"

	"github.com/papercomputeco/scribe/pkg/eventstream"
	"github.com/papercomputeco/scribe/pkg/eventstream/nop"
	"github.com/papercomputeco/scribe/pkg/session"
	"github.com/papercomputeco/scribe/pkg/turnlog"
)

// Registry keeps one open TurnLog per (owner, session) so every request for
// a session in a long-running server works on the same log.
type Registry struct {
	store     session.Store
	publisher eventstream.Publisher

	mu   sync.Mutex
	logs map[string]*turnlog.TurnLog
}

// NewRegistry creates a registry over store. A nil publisher disables events.
func NewRegistry(store session.Store, publisher eventstream.Publisher) *Registry {
	if publisher == nil {
		publisher = nop.NewPublisher()
	}
	return &Registry{
		store:     store,
		publisher: publisher,
		logs:      make(map[string]*turnlog.TurnLog),
	}
}

// Store returns the underlying session store.
func (r *Registry) Store() session.Store {
	return r.store
}

// Get returns the open log for the session, loading it on first use.
func (r *Registry) Get(ctx context.Context, owner, name string) (*turnlog.TurnLog, error) {
	name, err := session.Validate(owner, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := owner + "/" + name
	if log, ok := r.logs[key]; ok {
		return log, nil
	}

	log, err := turnlog.Open(ctx, r.store, owner, name)
	if err != nil {
		return nil, err
	}
	r.logs[key] = log
	return log, nil
}

// Create starts a new, empty session and saves it. An empty name picks the
// next free "chat_<n>".
func (r *Registry) Create(ctx context.Context, owner, name string) (*turnlog.TurnLog, error) {
	if err := session.ValidateOwner(owner); err != nil {
		return nil, err
	}

	if name == "" {
		metas, err := r.store.List(ctx, owner)
		if err != nil {
			return nil, err
		}
		name = session.DefaultName(metas)
	}

	log := turnlog.New(r.store, owner)
	if err := log.Create(ctx, name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.logs[owner+"/"+log.Name()] = log
	r.mu.Unlock()

	r.publish(ctx, eventstream.EventTypeSessionSaved, owner, log.Name())
	return log, nil
}

// Remove deletes the session from the store and forgets its open log. The
// log is detached first so a reply still streaming into it is not saved.
func (r *Registry) Remove(ctx context.Context, owner, name string) error {
	name, err := session.Validate(owner, name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	key := owner + "/" + name
	if log, ok := r.logs[key]; ok {
		log.Detach()
		delete(r.logs, key)
	}
	r.mu.Unlock()

	if err := r.store.Remove(ctx, owner, name); err != nil {
		return err
	}

	r.publish(ctx, eventstream.EventTypeSessionRemoved, owner, name)
	return nil
}

// Forget drops the open log for the session without touching the store.
func (r *Registry) Forget(owner, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.logs, owner+"/"+session.NormalizeName(name))
}

func (r *Registry) publish(ctx context.Context, eventType, owner, name string) {
	// best effort
	_ = r.publisher.Publish(ctx, eventstream.NewSessionEvent(eventType, owner, name))
}
