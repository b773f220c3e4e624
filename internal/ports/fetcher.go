package ports

import (
	"context"

	"github.com/bft-labs/ambient/internal/domain"
)

// Fetcher wraps one external data source of a module.
//
// Fetch must honour ctx: it returns once the deadline passes. Protocol
// failures are reported through FetchResult.Err with a classified kind,
// never as a panic. Malformed individual entries are dropped and counted
// in FetchResult.Dropped.
type Fetcher interface {
	Fetch(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult

// Fetch calls f(ctx, spec).
func (f FetcherFunc) Fetch(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
	return f(ctx, spec)
}
