package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// SubscriberStore persists the subscriber set.
type SubscriberStore interface {
	LoadSubscribers(ctx context.Context) ([]string, error)
	AddSubscriber(ctx context.Context, id string) error
	RemoveSubscriber(ctx context.Context, id string) error
}

// Registry is the set of recipients every broadcast goes to. It is safe for
// concurrent use. A nil store keeps the set in memory only.
type Registry struct {
	mu    sync.RWMutex
	ids   map[string]struct{}
	store SubscriberStore
}

// NewRegistry creates a registry seeded with ids.
func NewRegistry(store SubscriberStore, ids ...string) *Registry {
	r := &Registry{ids: make(map[string]struct{}), store: store}
	for _, id := range ids {
		if id != "" {
			r.ids[id] = struct{}{}
		}
	}
	return r
}

// Load merges the persisted subscribers into the set and writes seeded ones
// back so both sides agree.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	stored, err := r.store.LoadSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("registry: load: %w", err)
	}

	r.mu.Lock()
	seen := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		seen[id] = struct{}{}
		r.ids[id] = struct{}{}
	}
	var missing []string
	for id := range r.ids {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	r.mu.Unlock()

	for _, id := range missing {
		if err := r.store.AddSubscriber(ctx, id); err != nil {
			return fmt.Errorf("registry: seed %s: %w", id, err)
		}
	}
	return nil
}

// Add registers a recipient.
func (r *Registry) Add(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if r.store != nil {
		if err := r.store.AddSubscriber(ctx, id); err != nil {
			return fmt.Errorf("registry: add: %w", err)
		}
	}
	r.mu.Lock()
	r.ids[id] = struct{}{}
	r.mu.Unlock()
	return nil
}

// Remove unregisters a recipient.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if r.store != nil {
		if err := r.store.RemoveSubscriber(ctx, id); err != nil {
			return fmt.Errorf("registry: remove: %w", err)
		}
	}
	r.mu.Lock()
	delete(r.ids, id)
	r.mu.Unlock()
	return nil
}

// List returns the recipients in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
