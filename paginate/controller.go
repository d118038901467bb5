package paginate

import (
	"context"
	"sync"
	"time"

	"pagestream/cursor"
	perr "pagestream/internal/platform/errors"
	"pagestream/internal/platform/logger"
	"pagestream/page"
	"pagestream/store"
)

// timeNow is a seam for debounce tests
var timeNow = time.Now

// Controller orchestrates incremental loading: it holds the current State,
// issues fetches through the injected store.Pager, applies prefetch triggers
// from visibility signals, and republishes every transition on a
// latest-value replay channel.
//
// All entry points return immediately; fetches run asynchronously and at
// most one is outstanding per controller, so state transitions are totally
// ordered. Fetch failures are never returned to the caller - they surface as
// the Error variant carrying the items accumulated before the failing
// attempt
type Controller[T any] struct {
	pager store.Pager[T]
	query store.Query
	cfg   StreamingConfig
	log   *logger.Logger

	// everything below is guarded by mu
	mu            sync.Mutex
	state         State[T]
	ch            *stateChannel[T]
	nextCursor    *cursor.Cursor
	inFlight      bool
	disposed      bool
	failedRefresh bool
	lastTrigger   time.Time
}

// New validates cfg and returns a Controller over pager and the caller query.
// The query's Limit and After are owned by the controller from here on
func New[T any](pager store.Pager[T], q store.Query, cfg StreamingConfig) (*Controller[T], error) {
	if pager == nil {
		return nil, perr.InvalidArgf("paginate: nil pager")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	initial := Initial[T]()
	return &Controller[T]{
		pager: pager,
		query: q,
		cfg:   cfg,
		log:   logger.Named("paginate"),
		state: initial,
		ch:    newStateChannel[T](initial),
	}, nil
}

// CurrentState returns the latest published state
func (c *Controller[T]) CurrentState() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns the controller's immutable tunables
func (c *Controller[T]) Config() StreamingConfig { return c.cfg }

// Query returns the caller-supplied query (without the controller-owned
// limit/after applied)
func (c *Controller[T]) Query() store.Query { return c.query }

// Subscribe registers a state observer with latest-value replay: the current
// state arrives immediately, then every subsequent transition. The cancel
// func unsubscribes and is idempotent
func (c *Controller[T]) Subscribe() (<-chan State[T], func()) {
	return c.ch.Subscribe()
}

// Refresh discards the pagination position and starts a full reload. The
// previous items are retained on the Loading state so consumers can keep
// rendering them. No-op when disposed or a fetch is already in flight
func (c *Controller[T]) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	if c.inFlight {
		c.log.Debug().Msg("refresh dropped: fetch in flight")
		return
	}
	prev := c.state.Items()
	prevInfo := c.bestInfo()
	c.nextCursor = nil
	c.transition(Loading[T](prev))
	c.beginFetch(true, prev, prevInfo)
}

// LoadMore appends the next page. Only acts from the Data state when the
// current PageInfo reports a next page and nothing is in flight
func (c *Controller[T]) LoadMore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadMoreLocked()
}

func (c *Controller[T]) loadMoreLocked() {
	if c.disposed || c.inFlight {
		return
	}
	if c.state.Phase() != PhaseData {
		return
	}
	if !c.state.HasMore() {
		c.log.Debug().Msg("load more dropped: no next page")
		return
	}
	info, _ := c.state.PageInfo()
	items := c.state.Items()
	c.transition(LoadingMore(items, info))
	c.beginFetch(false, items, &info)
}

// Retry re-attempts after a failure: a failed full reload (or a failure with
// no surviving items) behaves like Refresh, retaining the stale items on the
// Loading state; a mid-pagination failure behaves like LoadMore, reusing the
// last known PageInfo. No-op outside the Error state
func (c *Controller[T]) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || c.inFlight || c.state.Phase() != PhaseError {
		return
	}
	items := c.state.Items()
	if len(items) == 0 || c.failedRefresh {
		prevInfo := c.bestInfo()
		c.nextCursor = nil
		c.transition(Loading[T](items))
		c.beginFetch(true, items, prevInfo)
		return
	}
	// Preserve the PageInfo threaded into the Error state; when the failure
	// predates any successful page, assume optimistically that more exists
	info, ok := c.state.PageInfo()
	if !ok {
		info = page.PageInfo{HasNextPage: true}
	}
	c.transition(LoadingMore(items, info))
	c.beginFetch(false, items, &info)
}

// OnItemVisible feeds scroll/visibility signals to the prefetch policy:
// when the consumer reaches within PrefetchDistance of the loaded tail and a
// next page exists, LoadMore is triggered. Debounce (when configured) drops
// triggers that arrive inside the debounce window
func (c *Controller[T]) OnItemVisible(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || !c.cfg.ShouldPrefetch() || c.inFlight {
		return
	}
	if c.state.Phase() != PhaseData || !c.state.HasMore() {
		return
	}
	if index < c.state.ItemCount()-c.cfg.PrefetchDistance {
		return
	}
	if c.cfg.ShouldDebounce() {
		now := timeNow()
		if now.Sub(c.lastTrigger) < c.cfg.Debounce {
			c.log.Debug().Int("index", index).Msg("prefetch dropped: debounced")
			return
		}
		c.lastTrigger = now
	}
	c.log.Debug().Int("index", index).Msg("prefetch triggered")
	c.loadMoreLocked()
}

// Dispose shuts the controller down exactly once: the state channel closes
// and every later method call is a no-op. A fetch still in flight resolves
// silently
func (c *Controller[T]) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.ch.Close()
	c.log.Debug().Msg("controller disposed")
}

// Disposed reports whether Dispose has been called
func (c *Controller[T]) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// transition publishes a new state; call with mu held
func (c *Controller[T]) transition(next State[T]) {
	c.log.Debug().
		Stringer("from", c.state.Phase()).
		Stringer("to", next.Phase()).
		Int("items", next.ItemCount()).
		Msg("state transition")
	c.state = next
	c.ch.Publish(next)
}

// beginFetch builds the effective query and launches the fetch goroutine.
// prev and prevInfo are the items and PageInfo accumulated before this
// attempt, captured by the caller before the transitional state replaced
// them; a failure threads both into the Error state so consumers can keep
// rendering the stale list. Call with mu held
func (c *Controller[T]) beginFetch(refresh bool, prev []T, prevInfo *page.PageInfo) {
	c.inFlight = true

	q := c.query.WithLimit(c.cfg.PageSize)
	if !refresh && c.nextCursor != nil {
		q = q.WithAfter(*c.nextCursor)
	} else {
		q = q.WithoutAfter()
	}

	go c.runFetch(q, refresh, prev, prevInfo)
}

// bestInfo returns the best-known PageInfo to thread into a possible Error
// state; call with mu held
func (c *Controller[T]) bestInfo() *page.PageInfo {
	if info, ok := c.state.PageInfo(); ok {
		return &info
	}
	return nil
}

// runFetch executes one fetch attempt. The in-flight guard is cleared on
// every exit path, including a panicking pager, so the controller can never
// stick in a loading state
func (c *Controller[T]) runFetch(q store.Query, refresh bool, prev []T, prevInfo *page.PageInfo) {
	defer func() {
		r := recover()
		c.mu.Lock()
		c.inFlight = false
		if r != nil {
			c.log.Error().Interface("panic", r).Msg("pager panicked")
			if !c.disposed {
				c.failedRefresh = refresh
				c.transition(Failed(perr.PanicErrf("page fetch panicked: %v", r), prev, prevInfo))
			}
		}
		c.mu.Unlock()
	}()

	res, err := c.pager.FetchPage(context.Background(), q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}

	if err != nil {
		c.log.Error().Err(err).Bool("refresh", refresh).Msg("page fetch failed")
		c.failedRefresh = refresh
		c.transition(Failed(err, prev, prevInfo))
		return
	}

	info := res.PageInfo()
	c.nextCursor = info.EndCursor

	// a refresh replaces the accumulated items, pagination appends
	var items []T
	if refresh {
		items = res.Items()
	} else {
		items = make([]T, 0, len(prev)+res.Len())
		items = append(items, prev...)
		items = append(items, res.Items()...)
	}
	c.transition(Data(items, info))
}
