// Package feed exposes incrementally loaded item feeds over HTTP. Each
// session wraps one pagination controller; clients drive it with refresh,
// load-more, retry, and visibility signals and poll its state
package feed

import (
	"time"
)

// Item is one feed entry served to clients
type Item struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSessionRequest opens a new feed session
type CreateSessionRequest struct {
	Backend          string            `json:"backend" validate:"omitempty,oneof=memory postgres clickhouse"`
	PageSize         int               `json:"page_size" validate:"required,min=1,max=500"`
	PrefetchDistance int               `json:"prefetch_distance" validate:"min=0"`
	MaxPagesInMemory int               `json:"max_pages_in_memory" validate:"omitempty,min=1"`
	DebounceMs       int               `json:"debounce_ms" validate:"min=0,max=60000"`
	Params           map[string]string `json:"params"`
}

// SessionResponse describes an open session
type SessionResponse struct {
	ID      string `json:"id"`
	Backend string `json:"backend"`
}

// PageBlock mirrors the page info of the last loaded page
type PageBlock struct {
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	Total      *int   `json:"total,omitempty"`
}

// StateResponse is a snapshot of a session's pagination state
type StateResponse struct {
	ID        string     `json:"id"`
	Phase     string     `json:"phase"`
	Items     []Item     `json:"items"`
	ItemCount int        `json:"item_count"`
	HasMore   bool       `json:"has_more"`
	Error     string     `json:"error,omitempty"`
	Page      *PageBlock `json:"page,omitempty"`
}

// VisibleRequest reports which item a client currently renders
type VisibleRequest struct {
	Index int `json:"index" validate:"min=0"`
}
