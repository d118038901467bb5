// Package page holds the immutable page data model: PageInfo metadata and
// PagedResult, one fetched page of items
package page

import (
	"pagestream/cursor"
)

// PageInfo describes one page's boundaries and navigability.
// Produced fresh by each fetch; treated as an immutable value
type PageInfo struct {
	HasNextPage     bool           `json:"has_next_page"`
	HasPreviousPage bool           `json:"has_previous_page"`
	StartCursor     *cursor.Cursor `json:"start_cursor,omitempty"`
	EndCursor       *cursor.Cursor `json:"end_cursor,omitempty"`

	// TotalCount is nil when the backend cannot cheaply compute it
	TotalCount *int `json:"total_count,omitempty"`
}

// Count is a convenience constructor for TotalCount pointers
func Count(n int) *int { return &n }

// PagedResult is one fetched page: items plus PageInfo.
// Construct with NewPagedResult; never mutated after construction
type PagedResult[T any] struct {
	items []T
	info  PageInfo
}

// NewPagedResult copies items so later caller mutations cannot leak in
func NewPagedResult[T any](items []T, info PageInfo) PagedResult[T] {
	cp := make([]T, len(items))
	copy(cp, items)
	return PagedResult[T]{items: cp, info: info}
}

// Items returns the page's items. Callers must not mutate the returned slice
func (p PagedResult[T]) Items() []T { return p.items }

// PageInfo returns the page metadata
func (p PagedResult[T]) PageInfo() PageInfo { return p.info }

// HasMore reports whether a next page exists
func (p PagedResult[T]) HasMore() bool { return p.info.HasNextPage }

// NextCursor returns the cursor anchoring the page end, if any
func (p PagedResult[T]) NextCursor() *cursor.Cursor { return p.info.EndCursor }

// PreviousCursor returns the cursor anchoring the page start, if any
func (p PagedResult[T]) PreviousCursor() *cursor.Cursor { return p.info.StartCursor }

// TotalCount returns the backend-reported total and whether it was provided
func (p PagedResult[T]) TotalCount() (int, bool) {
	if p.info.TotalCount == nil {
		return 0, false
	}
	return *p.info.TotalCount, true
}

// IsEmpty reports whether the page holds no items
func (p PagedResult[T]) IsEmpty() bool { return len(p.items) == 0 }

// Len returns the number of items in the page
func (p PagedResult[T]) Len() int { return len(p.items) }

// Map transforms every item and returns a new PagedResult sharing the same PageInfo
func Map[T, U any](p PagedResult[T], fn func(T) U) PagedResult[U] {
	out := make([]U, len(p.items))
	for i, it := range p.items {
		out[i] = fn(it)
	}
	return PagedResult[U]{items: out, info: p.info}
}
