package app

import (
	"time"

	"github.com/bft-labs/ambient/internal/domain"
)

// Rotation holds the visible-item cursor of one module. It is not safe for
// concurrent use; the owning Supervisor serializes access.
type Rotation struct {
	pageSize       int
	cursor         int
	lastAdvancedAt time.Time
}

// NewRotation creates a rotation showing pageSize items at a time. A
// pageSize of 0 shows the whole buffer and never advances.
func NewRotation(pageSize int) *Rotation {
	if pageSize < 0 {
		pageSize = 0
	}
	return &Rotation{pageSize: pageSize}
}

// Tick advances the cursor by one, wrapping modulo len(items), and returns
// the new visible slice. It is a no-op on an empty buffer and when the
// whole buffer fits on one page.
func (r *Rotation) Tick(items []domain.Item, now time.Time) ([]domain.Item, bool) {
	r.clamp(len(items))
	if r.pageSize == 0 || len(items) <= r.pageSize {
		return r.Visible(items), false
	}
	r.cursor = (r.cursor + 1) % len(items)
	r.lastAdvancedAt = now
	return r.Visible(items), true
}

// Reset moves the cursor back to the first item.
func (r *Rotation) Reset() {
	r.cursor = 0
}

// Cursor returns the current cursor.
func (r *Rotation) Cursor() int {
	return r.cursor
}

// LastAdvancedAt returns when the cursor last moved.
func (r *Rotation) LastAdvancedAt() time.Time {
	return r.lastAdvancedAt
}

// Visible returns the items shown at the current cursor. The result is a
// fresh slice.
func (r *Rotation) Visible(items []domain.Item) []domain.Item {
	r.clamp(len(items))
	if len(items) == 0 {
		return nil
	}
	if r.pageSize == 0 || r.pageSize >= len(items) {
		return append([]domain.Item(nil), items...)
	}
	out := make([]domain.Item, 0, r.pageSize)
	for i := 0; i < r.pageSize; i++ {
		out = append(out, items[(r.cursor+i)%len(items)])
	}
	return out
}

// clamp keeps 0 <= cursor < max(1, n).
func (r *Rotation) clamp(n int) {
	if n == 0 || r.cursor < 0 || r.cursor >= n {
		r.cursor = 0
	}
}
