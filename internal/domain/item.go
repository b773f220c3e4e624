package domain

import "time"

// Item is a single displayable record. Which fields are set depends on the
// module kind; SortKey and ID are always set by the fetcher.
type Item struct {
	// ID is a stable identity (guid, url, uid, or a derived key).
	ID string
	// SortKey orders items of one kind (publish date, start date, forecast day).
	SortKey time.Time

	Title       string
	Description string
	URL         string
	// Source names the feed or calendar the item came from.
	Source string

	// Calendar fields.
	Start    time.Time
	End      time.Time
	FullDay  bool
	Location string
	Symbol   string

	// Weather is set for weather items.
	Weather *Weather
}

// Weather holds current conditions or one forecast day.
type Weather struct {
	Date          time.Time
	Condition     string
	Description   string
	Temperature   float64
	FeelsLike     float64
	MinTemp       float64
	MaxTemp       float64
	Humidity      float64
	WindSpeed     float64
	WindDirection float64
	Precipitation float64
	Sunrise       time.Time
	Sunset        time.Time
}

// Equal reports whether two items are identical in identity and content.
func (i Item) Equal(o Item) bool {
	if i.ID != o.ID ||
		i.Title != o.Title ||
		i.Description != o.Description ||
		i.URL != o.URL ||
		i.Source != o.Source ||
		i.FullDay != o.FullDay ||
		i.Location != o.Location ||
		i.Symbol != o.Symbol {
		return false
	}
	if !i.SortKey.Equal(o.SortKey) || !i.Start.Equal(o.Start) || !i.End.Equal(o.End) {
		return false
	}
	switch {
	case i.Weather == nil && o.Weather == nil:
		return true
	case i.Weather == nil || o.Weather == nil:
		return false
	default:
		return i.Weather.equal(*o.Weather)
	}
}

func (w Weather) equal(o Weather) bool {
	return w.Date.Equal(o.Date) &&
		w.Sunrise.Equal(o.Sunrise) &&
		w.Sunset.Equal(o.Sunset) &&
		w.Condition == o.Condition &&
		w.Description == o.Description &&
		w.Temperature == o.Temperature &&
		w.FeelsLike == o.FeelsLike &&
		w.MinTemp == o.MinTemp &&
		w.MaxTemp == o.MaxTemp &&
		w.Humidity == o.Humidity &&
		w.WindSpeed == o.WindSpeed &&
		w.WindDirection == o.WindDirection &&
		w.Precipitation == o.Precipitation
}

// ItemsEqual reports whether two sequences hold equal items in the same order.
func ItemsEqual(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// FetchResult is the outcome of one fetch. It is either Ok (Err == nil) or
// failed; a failed result carries no items.
type FetchResult struct {
	Items     []Item
	FetchedAt time.Time
	// Dropped counts malformed entries skipped by the fetcher.
	Dropped int
	Err     *FetchError
}

// Ok builds a successful result.
func Ok(items []Item, fetchedAt time.Time) FetchResult {
	return FetchResult{Items: items, FetchedAt: fetchedAt}
}

// Failed builds a failed result.
func Failed(err *FetchError) FetchResult {
	return FetchResult{Err: err, FetchedAt: err.OccurredAt}
}

// OK reports whether the fetch succeeded.
func (r FetchResult) OK() bool {
	return r.Err == nil
}
