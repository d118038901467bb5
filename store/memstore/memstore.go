// Package memstore provides an in-memory pager over a slice, keyed by an
// offset cursor. It is the reference backend for tests and demos
package memstore

import (
	"context"
	"sync"

	"pagestream/cursor"
	perr "pagestream/internal/platform/errors"
	"pagestream/page"
	"pagestream/store"
)

const offsetField = "offset"

// Store holds an ordered dataset and serves pages of it.
// Safe for concurrent use
type Store[T any] struct {
	mu    sync.RWMutex
	items []T

	// failNext, when set, makes the next fetch return this error once
	failNext error
}

// New returns a Store seeded with items. The slice is copied
func New[T any](items []T) *Store[T] {
	s := &Store[T]{}
	s.SetItems(items)
	return s
}

// SetItems replaces the dataset
func (s *Store[T]) SetItems(items []T) {
	cp := make([]T, len(items))
	copy(cp, items)
	s.mu.Lock()
	s.items = cp
	s.mu.Unlock()
}

// Append adds items to the tail of the dataset
func (s *Store[T]) Append(items ...T) {
	s.mu.Lock()
	s.items = append(s.items, items...)
	s.mu.Unlock()
}

// Len reports the dataset size
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// FailNext arms a one-shot fetch failure, for exercising error states
func (s *Store[T]) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// FetchPage implements store.Pager. The after cursor carries the absolute
// offset of the first item of the page
func (s *Store[T]) FetchPage(ctx context.Context, q store.Query) (page.PagedResult[T], error) {
	var zero page.PagedResult[T]

	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if q.Limit <= 0 {
		return zero, perr.InvalidArgf("memstore: non-positive limit %d", q.Limit)
	}

	offset := 0
	if q.After != nil {
		n, err := offsetOf(q.After)
		if err != nil {
			return zero, err
		}
		offset = n
	}

	s.mu.Lock()
	failErr := s.failNext
	s.failNext = nil
	s.mu.Unlock()
	if failErr != nil {
		return zero, failErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.items)
	if offset > total {
		offset = total
	}
	end := offset + q.Limit
	if end > total {
		end = total
	}

	items := make([]T, end-offset)
	copy(items, s.items[offset:end])

	info := page.PageInfo{
		HasNextPage:     end < total,
		HasPreviousPage: offset > 0,
		TotalCount:      page.Count(total),
	}
	if len(items) > 0 {
		start := cursor.MustNew(map[string]any{offsetField: offset})
		endCur := cursor.MustNew(map[string]any{offsetField: end})
		info.StartCursor = &start
		info.EndCursor = &endCur
	}

	return page.NewPagedResult(items, info), nil
}

// offsetOf extracts and validates the offset anchor from a cursor
func offsetOf(c *cursor.Cursor) (int, error) {
	v, ok := c.Field(offsetField)
	if !ok {
		return 0, perr.InvalidCursorf("memstore: cursor missing %q", offsetField)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, perr.InvalidCursorf("memstore: cursor %q is not a number", offsetField)
	}
	n := int(f)
	if float64(n) != f || n < 0 {
		return 0, perr.InvalidCursorf("memstore: cursor %q out of range: %v", offsetField, f)
	}
	return n, nil
}
