package feed

import (
	"sync"
	"time"

	"github.com/google/uuid"

	perr "pagestream/internal/platform/errors"
	"pagestream/paginate"
)

// session binds one controller to a client-visible id
type session struct {
	id      uuid.UUID
	backend string
	ctrl    *paginate.Controller[Item]
	created time.Time
}

// registry tracks open sessions. Safe for concurrent use
type registry struct {
	mu sync.RWMutex
	m  map[uuid.UUID]*session
}

func newRegistry() *registry {
	return &registry{m: make(map[uuid.UUID]*session)}
}

func (r *registry) add(s *session) {
	r.mu.Lock()
	r.m[s.id] = s
	r.mu.Unlock()
}

func (r *registry) get(id uuid.UUID) (*session, error) {
	r.mu.RLock()
	s, ok := r.m[id]
	r.mu.RUnlock()
	if !ok {
		return nil, perr.NotFoundf("feed: no session %s", id)
	}
	if s.ctrl.Disposed() {
		return nil, perr.Disposedf("feed: session %s is disposed", id)
	}
	return s, nil
}

// remove disposes the session's controller and forgets it
func (r *registry) remove(id uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.m[id]
	delete(r.m, id)
	r.mu.Unlock()
	if !ok {
		return perr.NotFoundf("feed: no session %s", id)
	}
	s.ctrl.Dispose()
	return nil
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// disposeAll shuts every session down for server shutdown. Entries stay
// registered so requests still draining see a disposed session, not a 404
func (r *registry) disposeAll() {
	r.mu.Lock()
	for _, s := range r.m {
		s.ctrl.Dispose()
	}
	r.mu.Unlock()
}
