package paginate

import (
	"fmt"

	"pagestream/page"
)

// Phase discriminates the closed set of State variants
type Phase uint8

const (
	// PhaseInitial is the fresh-controller state: nothing loaded, nothing in flight
	PhaseInitial Phase = iota

	// PhaseLoading is a full (re)load in flight; previous items may be retained for display
	PhaseLoading

	// PhaseLoadingMore is an append fetch in flight on top of accumulated items
	PhaseLoadingMore

	// PhaseData holds accumulated items plus the current PageInfo
	PhaseData

	// PhaseError holds the failure plus whatever items/PageInfo survived it
	PhaseError
)

// String implements fmt.Stringer for log fields
func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseLoading:
		return "loading"
	case PhaseLoadingMore:
		return "loading_more"
	case PhaseData:
		return "data"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// State is one snapshot of a paginated list's lifecycle. Exactly one variant
// (Phase) is active; values are immutable - transitions construct new States.
// The zero value is the Initial state
type State[T any] struct {
	phase Phase
	items []T
	info  *page.PageInfo
	err   error
}

// Initial returns the fresh-controller state
func Initial[T any]() State[T] { return State[T]{phase: PhaseInitial} }

// Loading returns the full-load state, optionally retaining previous items
// so consumers can keep rendering the stale list
func Loading[T any](previous []T) State[T] {
	return State[T]{phase: PhaseLoading, items: copyItems(previous)}
}

// LoadingMore returns the append-fetch state over the accumulated items
func LoadingMore[T any](items []T, info page.PageInfo) State[T] {
	return State[T]{phase: PhaseLoadingMore, items: copyItems(items), info: &info}
}

// Data returns the settled state holding accumulated items and current PageInfo
func Data[T any](items []T, info page.PageInfo) State[T] {
	return State[T]{phase: PhaseData, items: copyItems(items), info: &info}
}

// Failed returns the Error variant. previous carries the items accumulated
// before the failing fetch; info is the best-known PageInfo, nil when none
// was ever observed
func Failed[T any](err error, previous []T, info *page.PageInfo) State[T] {
	return State[T]{phase: PhaseError, items: copyItems(previous), info: info, err: err}
}

func copyItems[T any](items []T) []T {
	if len(items) == 0 {
		return nil
	}
	cp := make([]T, len(items))
	copy(cp, items)
	return cp
}

// Phase returns the active variant discriminator
func (s State[T]) Phase() Phase { return s.phase }

// Items returns the items held by the active variant (previous items for
// Loading and Error). Callers must not mutate the returned slice
func (s State[T]) Items() []T { return s.items }

// ItemCount returns len(Items())
func (s State[T]) ItemCount() int { return len(s.items) }

// PageInfo returns the current page metadata and whether the variant holds one
func (s State[T]) PageInfo() (page.PageInfo, bool) {
	if s.info == nil {
		return page.PageInfo{}, false
	}
	return *s.info, true
}

// Err returns the failure held by the Error variant, nil otherwise
func (s State[T]) Err() error { return s.err }

// HasMore reports whether a further page is believed to exist.
// Initial and Loading are optimistic; Data and LoadingMore follow PageInfo;
// Error follows its retained PageInfo and is false without one
func (s State[T]) HasMore() bool {
	switch s.phase {
	case PhaseInitial, PhaseLoading:
		return true
	case PhaseLoadingMore, PhaseData, PhaseError:
		if s.info == nil {
			return false
		}
		return s.info.HasNextPage
	default:
		return false
	}
}

// IsLoading reports whether a full (re)load is in flight
func (s State[T]) IsLoading() bool { return s.phase == PhaseLoading }

// IsLoadingMore reports whether an append fetch is in flight
func (s State[T]) IsLoadingMore() bool { return s.phase == PhaseLoadingMore }

// Matcher carries one arm per State variant for exhaustive dispatch
type Matcher[T, R any] struct {
	Initial     func() R
	Loading     func(previous []T) R
	LoadingMore func(items []T, info page.PageInfo) R
	Data        func(items []T, info page.PageInfo) R
	Error       func(err error, previous []T, info *page.PageInfo) R
}

// Match dispatches on the active variant. A nil arm for the active variant
// panics: consumers must handle every variant, so that adding one is a
// loudly visible change everywhere states are matched
func Match[T, R any](s State[T], m Matcher[T, R]) R {
	switch s.phase {
	case PhaseInitial:
		if m.Initial == nil {
			panic("paginate: Match missing Initial arm")
		}
		return m.Initial()
	case PhaseLoading:
		if m.Loading == nil {
			panic("paginate: Match missing Loading arm")
		}
		return m.Loading(s.items)
	case PhaseLoadingMore:
		if m.LoadingMore == nil {
			panic("paginate: Match missing LoadingMore arm")
		}
		return m.LoadingMore(s.items, *s.info)
	case PhaseData:
		if m.Data == nil {
			panic("paginate: Match missing Data arm")
		}
		return m.Data(s.items, *s.info)
	case PhaseError:
		if m.Error == nil {
			panic("paginate: Match missing Error arm")
		}
		return m.Error(s.err, s.items, s.info)
	default:
		panic(fmt.Sprintf("paginate: Match on unknown phase %d", s.phase))
	}
}
