// Package store defines the collaborator contract the pagination engine
// fetches through: a Pager that executes one Query and returns one page.
//
// Implementations live in the subpackages (memstore, pgstore, chstore); the
// engine itself never performs I/O
package store

import (
	"context"

	"pagestream/cursor"
	"pagestream/page"
)

// Query carries the two primitives the engine controls - a page-size limit
// and an optional "after" cursor - plus opaque params the engine passes
// through untouched (filters, sort hints, tenant ids; store-specific)
type Query struct {
	Limit  int
	After  *cursor.Cursor
	Params map[string]any
}

// WithLimit returns a copy of the query with the limit applied
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// WithAfter returns a copy of the query anchored after c
func (q Query) WithAfter(c cursor.Cursor) Query {
	q.After = &c
	return q
}

// WithoutAfter returns a copy of the query with no position anchor
func (q Query) WithoutAfter() Query {
	q.After = nil
	return q
}

// WithParam returns a copy of the query with an opaque param set.
// The params map is copied so shared queries stay independent
func (q Query) WithParam(name string, v any) Query {
	params := make(map[string]any, len(q.Params)+1)
	for k, pv := range q.Params {
		params[k] = pv
	}
	params[name] = v
	q.Params = params
	return q
}

// Param returns the named opaque param and whether it is present
func (q Query) Param(name string) (any, bool) {
	v, ok := q.Params[name]
	return v, ok
}

// Pager is the paged-fetch seam the engine is injected with.
// Implementations must honor q.Limit and, when set, q.After, and must return
// a PageInfo consistent with the actual result; a HasNextPage=true with no
// further data is a correctness violation the engine cannot detect
type Pager[T any] interface {
	FetchPage(ctx context.Context, q Query) (page.PagedResult[T], error)
}

// PagerFunc adapts a function to the Pager interface
type PagerFunc[T any] func(ctx context.Context, q Query) (page.PagedResult[T], error)

// FetchPage implements Pager
func (f PagerFunc[T]) FetchPage(ctx context.Context, q Query) (page.PagedResult[T], error) {
	return f(ctx, q)
}
