package modules

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/ambient/internal/adapters/httpget"
	"github.com/bft-labs/ambient/internal/adapters/ical"
	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/pkg/log"
)

// maxConcurrentSources bounds parallel requests of one module.
const maxConcurrentSources = 4

type calendarState struct {
	source    domain.CalendarSource
	events    []ical.Event
	fetchedAt time.Time
	failed    bool
}

// due reports whether the source should be fetched at now. Failed sources
// are retried on every module reload.
func (s *calendarState) due(now time.Time) bool {
	if s.fetchedAt.IsZero() || s.failed || s.source.FetchInterval <= 0 {
		return true
	}
	return now.Sub(s.fetchedAt) >= s.source.FetchInterval
}

// Calendar merges several iCalendar feeds into upcoming events. Every
// calendar keeps its own fetch cadence and its last good events, so one
// broken feed never blanks the others.
type Calendar struct {
	opts   domain.CalendarOptions
	getter *httpget.Getter
	loc    *time.Location
	logger log.Logger
	now    func() time.Time

	mu      sync.Mutex
	sources []*calendarState
}

// NewCalendar creates a calendar fetcher.
func NewCalendar(opts domain.CalendarOptions, getter *httpget.Getter, loc *time.Location, logger log.Logger, now func() time.Time) *Calendar {
	sources := make([]*calendarState, len(opts.Calendars))
	for i, src := range opts.Calendars {
		sources[i] = &calendarState{source: src}
	}
	return &Calendar{
		opts:    opts,
		getter:  getter,
		loc:     loc,
		logger:  logger,
		now:     now,
		sources: sources,
	}
}

// Fetch refreshes every due calendar and returns the merged upcoming
// events. It fails only when every calendar it tried this round failed.
func (c *Calendar) Fetch(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var due []*calendarState
	for _, s := range c.sources {
		if s.due(now) {
			due = append(due, s)
		}
	}

	errs := make([]*domain.FetchError, len(due))
	dropped := make([]int, len(due))
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentSources)
	for i, s := range due {
		i, s := i, s
		g.Go(func() error {
			cal, err := c.fetchOne(ctx, s.source)
			if err != nil {
				errs[i] = err
				return nil
			}
			dropped[i] = cal.Dropped
			s.events = cal.Events
			return nil
		})
	}
	_ = g.Wait()

	var firstErr *domain.FetchError
	succeeded, totalDropped := 0, 0
	for i, s := range due {
		totalDropped += dropped[i]
		if errs[i] != nil {
			s.failed = true
			if firstErr == nil {
				firstErr = errs[i]
			}
			c.logger.Warn("calendar fetch failed",
				log.String("calendar", s.source.Name),
				log.String("error_kind", errs[i].Kind.String()),
				log.String("error", errs[i].Message),
			)
			continue
		}
		s.failed = false
		s.fetchedAt = now
		succeeded++
	}

	if len(due) > 0 && succeeded == 0 {
		return domain.Failed(firstErr)
	}

	res := domain.Ok(c.merge(now), now)
	res.Dropped = totalDropped
	return res
}

func (c *Calendar) fetchOne(ctx context.Context, src domain.CalendarSource) (ical.Calendar, *domain.FetchError) {
	body, err := c.getter.Get(ctx, src.URL, nil)
	if err != nil {
		return ical.Calendar{}, domain.ClassifyError(err, c.now())
	}
	cal, err := ical.Parse(body, c.loc)
	if err != nil {
		return ical.Calendar{}, domain.NewFetchError(domain.ErrorParse, c.now(), "%s: %v", src.Name, err)
	}
	for _, p := range cal.Problems {
		c.logger.Debug("calendar event dropped", log.String("calendar", src.Name), log.Err(p))
	}
	return cal, nil
}

// merge expands the cached events of every calendar into items, dropping
// occurrences that ended or start beyond the configured horizon.
func (c *Calendar) merge(now time.Time) []domain.Item {
	var horizon time.Time
	if c.opts.MaximumNumberOfDays > 0 {
		horizon = now.AddDate(0, 0, c.opts.MaximumNumberOfDays)
	}

	var items []domain.Item
	for _, s := range c.sources {
		symbol := s.source.Symbol
		if symbol == "" {
			symbol = c.opts.DefaultSymbol
		}
		for _, event := range s.events {
			for _, ev := range event.Occurrences(now, horizon) {
				item := domain.Item{
					ID:          s.source.Name + "|" + eventKey(ev),
					SortKey:     ev.Start,
					Title:       ev.Summary,
					Description: ev.Description,
					Source:      s.source.Name,
					Start:       ev.Start,
					End:         ev.End,
					FullDay:     ev.FullDay,
					Symbol:      symbol,
				}
				if c.opts.ShowLocation {
					item.Location = ev.Location
				}
				items = append(items, item)
			}
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Start.Before(items[j].Start) })
	return items
}

func eventKey(ev ical.Event) string {
	if ev.UID != "" {
		return ev.UID + "@" + ev.Start.UTC().Format("20060102T150405Z")
	}
	return ev.Summary + "@" + ev.Start.UTC().Format("20060102T150405Z")
}
