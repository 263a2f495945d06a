package bracket

import (
	"sort"
	"sync"
)

// Registry is the in-memory mirror of tournaments, refreshed after every commit.
// It serves reads only; gating decisions always go to the store.
type Registry struct {
	mu          sync.RWMutex
	tournaments map[string]*Tournament
}

func NewRegistry() *Registry {
	return &Registry{tournaments: make(map[string]*Tournament)}
}

func (r *Registry) Put(t *Tournament) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tournaments[t.ID] = t.Clone()
}

func (r *Registry) Get(id string) (*Tournament, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tournaments, id)
}

// List returns every cached tournament, newest first.
func (r *Registry) List() []*Tournament {
	r.mu.RLock()
	out := make([]*Tournament, 0, len(r.tournaments))
	for _, t := range r.tournaments {
		out = append(out, t.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tournaments)
}
