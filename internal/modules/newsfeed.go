package modules

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/ambient/internal/adapters/httpget"
	"github.com/bft-labs/ambient/internal/adapters/rss"
	"github.com/bft-labs/ambient/internal/app"
	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
	"github.com/bft-labs/ambient/pkg/log"
)

// NewsFeedPayload is broadcast on ports.TopicNewsFeed and
// ports.TopicNewsFeedUpdate.
type NewsFeedPayload struct {
	Items []domain.Item
}

type feedState struct {
	feed  domain.Feed
	items []domain.Item
	ok    bool
}

// Newsfeed fetches every configured feed concurrently and merges them.
// A feed that fails keeps contributing its last good items.
type Newsfeed struct {
	id     string
	policy domain.BufferPolicy
	opts   domain.NewsfeedOptions
	getter *httpget.Getter
	bus    ports.Publisher
	logger log.Logger
	now    func() time.Time

	mu     sync.Mutex
	feeds  []*feedState
	seen   map[string]struct{}
	primed bool
}

// NewNewsfeed creates a newsfeed fetcher. bus may be nil.
func NewNewsfeed(spec domain.ModuleSpec, opts domain.NewsfeedOptions, getter *httpget.Getter, bus ports.Publisher, logger log.Logger, now func() time.Time) *Newsfeed {
	feeds := make([]*feedState, len(opts.Feeds))
	for i, f := range opts.Feeds {
		feeds[i] = &feedState{feed: f}
	}
	return &Newsfeed{
		id:     spec.ID,
		policy: spec.Policy,
		opts:   opts,
		getter: getter,
		bus:    bus,
		logger: logger,
		now:    now,
		feeds:  feeds,
		seen:   make(map[string]struct{}),
	}
}

// Fetch refreshes all feeds. It fails only when every feed failed.
func (n *Newsfeed) Fetch(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
	n.mu.Lock()
	defer n.mu.Unlock()

	errs := make([]*domain.FetchError, len(n.feeds))
	dropped := make([]int, len(n.feeds))
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentSources)
	for i, fs := range n.feeds {
		i, fs := i, fs
		g.Go(func() error {
			items, d, err := n.fetchOne(ctx, fs.feed)
			if err != nil {
				errs[i] = err
				return nil
			}
			fs.items, fs.ok, dropped[i] = items, true, d
			return nil
		})
	}
	_ = g.Wait()

	var firstErr *domain.FetchError
	failed, totalDropped := 0, 0
	for i, fs := range n.feeds {
		totalDropped += dropped[i]
		if errs[i] == nil {
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = errs[i]
		}
		n.feedWarning("feed fetch failed",
			log.String("feed", fs.feed.Title),
			log.String("error_kind", errs[i].Kind.String()),
			log.String("error", errs[i].Message),
		)
	}
	if failed == len(n.feeds) {
		return domain.Failed(firstErr)
	}

	var items []domain.Item
	for _, fs := range n.feeds {
		if fs.ok {
			items = append(items, fs.items...)
		}
	}

	n.broadcast(items)

	res := domain.Ok(items, n.now())
	res.Dropped = totalDropped
	return res
}

func (n *Newsfeed) fetchOne(ctx context.Context, feed domain.Feed) ([]domain.Item, int, *domain.FetchError) {
	body, err := n.getter.Get(ctx, feed.URL, nil)
	if err != nil {
		return nil, 0, domain.ClassifyError(err, n.now())
	}
	parsed, err := rss.Parse(body, feed.Title)
	if err != nil {
		return nil, 0, domain.NewFetchError(domain.ErrorParse, n.now(), "%s: %v", feed.Title, err)
	}
	for _, p := range parsed.Problems {
		n.feedWarning("feed entry dropped", log.String("feed", feed.Title), log.Err(p))
	}

	items := parsed.Items
	for i := range items {
		if !n.opts.ShowSourceTitle {
			items[i].Source = ""
		}
		if !n.opts.ShowDescription {
			items[i].Description = ""
		}
	}
	return items, parsed.Dropped, nil
}

// broadcast publishes the filtered item list and, after the first load,
// the items that were not visible after the previous fetch.
func (n *Newsfeed) broadcast(items []domain.Item) {
	if n.bus == nil || (!n.opts.BroadcastNewsFeeds && !n.opts.BroadcastNewsUpdates) {
		return
	}
	visible, _ := app.ApplyPolicy(n.policy, items, n.now())

	var fresh []domain.Item
	seen := make(map[string]struct{}, len(visible))
	for _, it := range visible {
		seen[it.ID] = struct{}{}
		if _, ok := n.seen[it.ID]; !ok {
			fresh = append(fresh, it)
		}
	}
	n.seen = seen

	if n.opts.BroadcastNewsFeeds {
		n.bus.Publish(ports.TopicNewsFeed, n.id, NewsFeedPayload{Items: visible})
	}
	if n.opts.BroadcastNewsUpdates && n.primed && len(fresh) > 0 {
		n.bus.Publish(ports.TopicNewsFeedUpdate, n.id, NewsFeedPayload{Items: fresh})
	}
	n.primed = true
}

func (n *Newsfeed) feedWarning(msg string, fields ...log.Field) {
	if n.opts.LogFeedWarnings {
		n.logger.Warn(msg, fields...)
		return
	}
	n.logger.Debug(msg, fields...)
}
