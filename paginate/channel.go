package paginate

import "sync"

// stateChannel is a single-slot latest-value cache with broadcast: the last
// published state is replayed to every new subscriber, then all subsequent
// states follow. Per-subscriber channels have capacity 1 and conflate - an
// unconsumed stale value is replaced by the newest - so publishers never
// block on slow consumers and a lagging subscriber always observes the
// latest state
type stateChannel[T any] struct {
	mu     sync.Mutex
	last   State[T]
	subs   map[uint64]chan State[T]
	nextID uint64
	closed bool
}

func newStateChannel[T any](initial State[T]) *stateChannel[T] {
	return &stateChannel[T]{
		last: initial,
		subs: make(map[uint64]chan State[T]),
	}
}

// Last returns the cached current state
func (c *stateChannel[T]) Last() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Publish caches s and broadcasts it to all subscribers
func (c *stateChannel[T]) Publish(s State[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.last = s
	for _, ch := range c.subs {
		conflate(ch, s)
	}
}

// conflate delivers s to a capacity-1 channel, displacing a pending value
func conflate[T any](ch chan State[T], s State[T]) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch: // drop the stale pending value
		default:
		}
	}
}

// Subscribe registers a new subscriber; the current state is delivered
// immediately. The returned cancel func is idempotent. Subscribing to a
// closed channel yields the final state followed by channel close
func (c *stateChannel[T]) Subscribe() (<-chan State[T], func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State[T], 1)
	ch <- c.last
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextID
	c.nextID++
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close closes all subscriber channels; further publishes are dropped
func (c *stateChannel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}
