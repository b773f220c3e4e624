package app

import (
	"time"

	"github.com/bft-labs/ambient/internal/domain"
)

// Buffer is the bounded content store of one module. It is not safe for
// concurrent use; the owning Supervisor serializes access.
type Buffer struct {
	policy domain.BufferPolicy

	items         []domain.Item
	lastFetchedAt time.Time
	lastError     *domain.FetchError
	loaded        bool
	lastStats     FilterStats
}

// NewBuffer creates an empty buffer governed by policy.
func NewBuffer(policy domain.BufferPolicy) *Buffer {
	return &Buffer{policy: policy}
}

// Apply folds a fetch result into the buffer.
//
// A failed result leaves the items untouched and records the error; it
// reports changed only when it is the first result ever seen. A successful
// result is filtered and replaces the items atomically; changed is true
// when the new sequence differs from the previous one item by item.
func (b *Buffer) Apply(res domain.FetchResult, now time.Time) bool {
	first := !b.loaded
	b.loaded = true

	if !res.OK() {
		b.lastError = res.Err
		return first
	}

	items, stats := ApplyPolicy(b.policy, res.Items, now)
	changed := !domain.ItemsEqual(b.items, items)

	b.items = items
	b.lastStats = stats
	b.lastError = nil
	b.lastFetchedAt = res.FetchedAt
	if b.lastFetchedAt.IsZero() {
		b.lastFetchedAt = now
	}
	return changed
}

// Items returns the current sequence. Callers must not modify it; Apply
// always installs a fresh slice.
func (b *Buffer) Items() []domain.Item {
	return b.items
}

// Len returns the number of buffered items.
func (b *Buffer) Len() int {
	return len(b.items)
}

// LastError returns the error of the most recent failed fetch, or nil when
// the most recent fetch succeeded.
func (b *Buffer) LastError() *domain.FetchError {
	return b.lastError
}

// LastFetchedAt returns when the current items were fetched.
func (b *Buffer) LastFetchedAt() time.Time {
	return b.lastFetchedAt
}

// Loaded reports whether any result, Ok or failed, has been applied.
func (b *Buffer) Loaded() bool {
	return b.loaded
}

// LastStats returns the filter counters of the last successful apply.
func (b *Buffer) LastStats() FilterStats {
	return b.lastStats
}
