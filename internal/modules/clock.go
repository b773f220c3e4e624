package modules

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/ambient/internal/domain"
)

// DefaultDateFormat is used when the clock shows the date without a layout.
const DefaultDateFormat = "Monday, January 2"

// Clock renders the current time as a single item.
type Clock struct {
	opts domain.ClockOptions
	now  func() time.Time
}

// NewClock creates a clock fetcher.
func NewClock(opts domain.ClockOptions, now func() time.Time) *Clock {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.DateFormat == "" {
		opts.DateFormat = DefaultDateFormat
	}
	return &Clock{opts: opts, now: now}
}

// Fetch never fails.
func (c *Clock) Fetch(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
	now := c.now().In(c.opts.Location)
	item := domain.Item{
		ID:      "clock",
		SortKey: now.Truncate(time.Minute),
		Title:   now.Format(c.timeLayout()),
	}
	if c.opts.DisplaySeconds {
		item.SortKey = now.Truncate(time.Second)
	}
	if c.opts.ShowDate {
		item.Description = formatDate(now, c.opts.DateFormat)
	}
	return domain.Ok([]domain.Item{item}, now)
}

func (c *Clock) timeLayout() string {
	layout := "15:04"
	if c.opts.TimeFormat == 12 {
		layout = "3:04"
	}
	if c.opts.DisplaySeconds {
		layout += ":05"
	}
	if c.opts.TimeFormat == 12 && c.opts.ShowPeriod {
		layout += " PM"
	}
	return layout
}

// formatDate formats t with layout, expanding domain.OrdinalDay. The
// pieces around the marker are formatted separately so the digits of the
// ordinal are not read as layout elements.
func formatDate(t time.Time, layout string) string {
	parts := strings.Split(layout, domain.OrdinalDay)
	for i, part := range parts {
		parts[i] = t.Format(part)
	}
	return strings.Join(parts, ordinal(t.Day()))
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 10 {
	case 1:
		suffix = "st"
	case 2:
		suffix = "nd"
	case 3:
		suffix = "rd"
	}
	if n%100 >= 11 && n%100 <= 13 {
		suffix = "th"
	}
	return strconv.Itoa(n) + suffix
}
