package modules

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
)

// Day period boundaries used when none are configured, in local hours.
const (
	DefaultMorningStartHour   = 3
	DefaultMorningEndHour     = 12
	DefaultAfternoonStartHour = 12
	DefaultAfternoonEndHour   = 17
)

// Compliments picks the lines for the current day period, the current
// weather and today's date. The supervisor rotates through them in order.
type Compliments struct {
	opts domain.ComplimentsOptions
	loc  *time.Location
	now  func() time.Time

	mu          sync.Mutex
	weatherType string
	cancel      func()
}

// NewCompliments creates a compliments fetcher. When bus is non-nil it
// follows the current weather type broadcast by weather modules.
func NewCompliments(opts domain.ComplimentsOptions, bus ports.Subscriber, loc *time.Location, now func() time.Time) *Compliments {
	if opts.MorningStartHour == 0 && opts.MorningEndHour == 0 && opts.AfternoonStartHour == 0 && opts.AfternoonEndHour == 0 {
		opts.MorningStartHour = DefaultMorningStartHour
		opts.MorningEndHour = DefaultMorningEndHour
		opts.AfternoonStartHour = DefaultAfternoonStartHour
		opts.AfternoonEndHour = DefaultAfternoonEndHour
	}
	c := &Compliments{opts: opts, loc: loc, now: now}
	if bus != nil {
		c.cancel = bus.Subscribe(c.onWeather, ports.TopicCurrentWeatherType)
	}
	return c
}

func (c *Compliments) onWeather(n ports.Notification) {
	t, ok := n.Payload.(string)
	if !ok {
		return
	}
	c.mu.Lock()
	c.weatherType = t
	c.mu.Unlock()
}

// SetWeatherType overrides the current weather type.
func (c *Compliments) SetWeatherType(t string) {
	c.onWeather(ports.Notification{Payload: t})
}

// Close stops following weather broadcasts.
func (c *Compliments) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Fetch returns the lines that apply right now.
func (c *Compliments) Fetch(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
	now := c.now()
	local := now.In(c.loc)

	c.mu.Lock()
	weather := c.weatherType
	c.mu.Unlock()

	var lines []string
	lines = append(lines, c.opts.Lists["anytime"]...)
	lines = append(lines, c.opts.Lists[c.period(local.Hour())]...)
	if weather != "" {
		lines = append(lines, c.opts.Lists[weather]...)
	}
	lines = append(lines, c.dateLines(local)...)

	items := make([]domain.Item, len(lines))
	for i, line := range lines {
		items[i] = domain.Item{ID: line, Title: line}
	}
	return domain.Ok(items, now)
}

func (c *Compliments) period(hour int) string {
	switch {
	case hour >= c.opts.MorningStartHour && hour < c.opts.MorningEndHour:
		return "morning"
	case hour >= c.opts.AfternoonStartHour && hour < c.opts.AfternoonEndHour:
		return "afternoon"
	default:
		return "evening"
	}
}

// dateLines returns the lists whose key matches today's date. Keys use the
// YYYY-MM-DD form with '.' as a wildcard, so "....-12-25" matches every
// Christmas. Matching keys are taken in sorted order.
func (c *Compliments) dateLines(t time.Time) []string {
	today := t.Format("2006-01-02")
	var keys []string
	for key := range c.opts.Lists {
		if matchDate(key, today) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var lines []string
	for _, key := range keys {
		lines = append(lines, c.opts.Lists[key]...)
	}
	return lines
}

func matchDate(pattern, date string) bool {
	if len(pattern) != len(date) || pattern[4] != '-' || pattern[7] != '-' {
		return false
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '.' && pattern[i] != date[i] {
			return false
		}
	}
	return true
}
