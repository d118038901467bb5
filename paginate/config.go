// Package paginate implements the pagination engine: the streaming config,
// the consumer-visible state variants, a latest-value replay channel, and the
// Controller that sequences fetches through an injected store.Pager
package paginate

import (
	"time"

	"pagestream/internal/platform/validate"
)

// StreamingConfig holds the immutable tunables governing page size, prefetch
// distance, retained-page budget, and trigger debounce.
// Construct with NewStreamingConfig or a preset; invalid values fail
// construction rather than being clamped
type StreamingConfig struct {
	PageSize         int           `json:"page_size"           validate:"required,min=1"`
	PrefetchDistance int           `json:"prefetch_distance"   validate:"min=0"`
	MaxPagesInMemory int           `json:"max_pages_in_memory" validate:"required,min=1"`
	Debounce         time.Duration `json:"debounce"            validate:"min=0"`
}

// NewStreamingConfig validates and returns a StreamingConfig
func NewStreamingConfig(pageSize, prefetchDistance, maxPagesInMemory int, debounce time.Duration) (StreamingConfig, error) {
	cfg := StreamingConfig{
		PageSize:         pageSize,
		PrefetchDistance: prefetchDistance,
		MaxPagesInMemory: maxPagesInMemory,
		Debounce:         debounce,
	}
	if err := cfg.Validate(); err != nil {
		return StreamingConfig{}, err
	}
	return cfg, nil
}

// Validate checks the config's field constraints
func (c StreamingConfig) Validate() error { return validate.Struct(c) }

// TotalItemsInMemory is the advisory retained-item budget
func (c StreamingConfig) TotalItemsInMemory() int { return c.PageSize * c.MaxPagesInMemory }

// ShouldPrefetch reports whether visibility signals may trigger loads
func (c StreamingConfig) ShouldPrefetch() bool { return c.PrefetchDistance > 0 }

// ShouldDebounce reports whether rapid prefetch triggers are rate limited
func (c StreamingConfig) ShouldDebounce() bool { return c.Debounce > 0 }

// Canonical presets. Convenience only; NewStreamingConfig is the general case.

// SmallPages suits short lists and chatty backends
func SmallPages() StreamingConfig {
	return StreamingConfig{PageSize: 20, PrefetchDistance: 5, MaxPagesInMemory: 5, Debounce: 100 * time.Millisecond}
}

// LargePages suits bulk readers that tolerate slower first paint
func LargePages() StreamingConfig {
	return StreamingConfig{PageSize: 100, PrefetchDistance: 20, MaxPagesInMemory: 10, Debounce: 250 * time.Millisecond}
}

// NoPrefetch loads only on explicit LoadMore calls
func NoPrefetch() StreamingConfig {
	return StreamingConfig{PageSize: 50, PrefetchDistance: 0, MaxPagesInMemory: 5, Debounce: 0}
}
