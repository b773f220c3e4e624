// Package rss parses RSS 2.0, RSS 1.0 and Atom documents into news items.
package rss

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/bft-labs/ambient/internal/domain"
)

// Feed is the parsed content of one document.
type Feed struct {
	Title string
	Items []domain.Item
	// Dropped counts entries that could not be turned into items.
	Dropped int
	// Problems describes each dropped entry.
	Problems []error
}

// Parse decodes data. source names the feed on every item; when empty the
// document title is used. A document that is not a feed at all is an
// error; individual broken entries are only counted.
func Parse(data []byte, source string) (Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return Feed{}, fmt.Errorf("decode feed: %w", err)
	}

	feed := Feed{Title: clean(parsed.Title)}
	if feed.Title == "" && len(parsed.Items) == 0 {
		return Feed{}, fmt.Errorf("%s document without channel", parsed.FeedType)
	}
	if source == "" {
		source = feed.Title
	}
	for _, it := range parsed.Items {
		item, err := build(source, it)
		if err != nil {
			feed.Dropped++
			feed.Problems = append(feed.Problems, err)
			continue
		}
		feed.Items = append(feed.Items, item)
	}
	return feed, nil
}

func build(source string, it *gofeed.Item) (domain.Item, error) {
	title := clean(it.Title)
	description := clean(firstNonEmpty(it.Description, it.Content))
	link := strings.TrimSpace(it.Link)
	if link == "" && len(it.Links) > 0 {
		link = strings.TrimSpace(it.Links[0])
	}
	id := firstNonEmpty(link, strings.TrimSpace(it.GUID))

	if title == "" && description == "" {
		return domain.Item{}, &domain.FilterError{ItemID: id, Reason: "no title or description"}
	}

	published, err := itemDate(it)
	if err != nil {
		return domain.Item{}, &domain.FilterError{ItemID: id, Reason: err.Error()}
	}

	if id == "" {
		id = source + "|" + title
	}
	return domain.Item{
		ID:          id,
		SortKey:     published,
		Title:       title,
		Description: description,
		URL:         link,
		Source:      source,
	}, nil
}

// itemDate returns the publication date of it, falling back to the update
// date. An item without either is undated; one whose date is present but
// unreadable is an error.
func itemDate(it *gofeed.Item) (time.Time, error) {
	switch {
	case it.PublishedParsed != nil:
		return fixZone(*it.PublishedParsed, it.Published), nil
	case it.UpdatedParsed != nil:
		return fixZone(*it.UpdatedParsed, it.Updated), nil
	}
	if raw := strings.TrimSpace(firstNonEmpty(it.Published, it.Updated)); raw != "" {
		return time.Time{}, fmt.Errorf("unparsable date %q", raw)
	}
	return time.Time{}, nil
}

// namedZones are the zone abbreviations RFC 822 allows in dates, in
// seconds east of UTC.
var namedZones = map[string]int{
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"PST": -8 * 3600, "PDT": -7 * 3600,
}

var namedZoneLayouts = []string{
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04 MST",
	"Mon, 2 Jan 2006 15:04 MST",
	"2 Jan 2006 15:04:05 MST",
	"02 Jan 2006 15:04:05 MST",
	time.RFC822,
}

// fixZone corrects t when raw ends in an RFC 822 zone name. The feed parser
// resolves such names against the host zone database and falls back to a
// zero offset, so "08:30 EDT" would otherwise read as 08:30 UTC.
func fixZone(t time.Time, raw string) time.Time {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return t
	}
	offset, ok := namedZones[strings.ToUpper(fields[len(fields)-1])]
	if !ok {
		return t
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range namedZoneLayouts {
		wall, err := time.ParseInLocation(layout, raw, time.UTC)
		if err != nil {
			continue
		}
		if _, off := wall.Zone(); off == offset {
			return wall
		}
		zone := time.FixedZone(strings.ToUpper(fields[len(fields)-1]), offset)
		return time.Date(wall.Year(), wall.Month(), wall.Day(),
			wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), zone)
	}
	return t
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// clean strips markup, unescapes entities and collapses whitespace.
func clean(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
