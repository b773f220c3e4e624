package modules

import (
	"context"
	"strconv"
	"time"

	"github.com/bft-labs/ambient/internal/domain"
)

// Static serves fixed lines for modules without a data source.
type Static struct {
	items []domain.Item
	now   func() time.Time
}

// NewStatic creates a static fetcher.
func NewStatic(opts domain.StaticOptions, now func() time.Time) *Static {
	items := make([]domain.Item, len(opts.Lines))
	for i, line := range opts.Lines {
		items[i] = domain.Item{ID: strconv.Itoa(i), Title: line}
	}
	return &Static{items: items, now: now}
}

// Fetch returns the configured lines.
func (s *Static) Fetch(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
	return domain.Ok(append([]domain.Item(nil), s.items...), s.now())
}
