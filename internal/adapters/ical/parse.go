// Package ical turns iCalendar (RFC 5545) feeds into the events a wall
// display needs: summary, location, description, start/end times and the
// occurrences of recurring events.
package ical

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/bft-labs/ambient/internal/domain"
)

// MaxRecurrenceSpan bounds how far ahead a recurring event is expanded when
// the caller sets no horizon.
const MaxRecurrenceSpan = 366 * 24 * time.Hour

// Event is one parsed VEVENT. A recurring event stands for all of its
// occurrences; use Occurrences to expand it.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	FullDay     bool

	rule         *rrule.Set
	recurrenceID time.Time
}

// Recurring reports whether the event carries a recurrence rule.
func (ev Event) Recurring() bool { return ev.rule != nil }

// Occurrences returns the instances of ev that end after from and start no
// later than to. A zero to means no bound for single events and
// MaxRecurrenceSpan for recurring ones.
func (ev Event) Occurrences(from, to time.Time) []Event {
	if ev.rule == nil {
		if !ev.End.After(from) || (!to.IsZero() && ev.Start.After(to)) {
			return nil
		}
		return []Event{ev}
	}

	if to.IsZero() {
		to = from.Add(MaxRecurrenceSpan)
	}
	length := ev.End.Sub(ev.Start)
	var out []Event
	for _, start := range ev.rule.Between(from.Add(-length), to, true) {
		occ := ev
		occ.rule = nil
		occ.Start, occ.End = start, start.Add(length)
		if !occ.End.After(from) {
			continue
		}
		out = append(out, occ)
	}
	return out
}

// Calendar is the parsed content of one document.
type Calendar struct {
	Name   string
	Events []Event
	// Dropped counts events that could not be parsed.
	Dropped  int
	Problems []error
}

// Parse decodes data. Floating times and times in unknown zones are
// interpreted in loc. Occurrences moved by a RECURRENCE-ID override are
// removed from their recurring event and kept as separate events.
func Parse(data []byte, loc *time.Location) (Calendar, error) {
	if loc == nil {
		loc = time.Local
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	const begin = "BEGIN:VCALENDAR"
	if head := bytes.TrimSpace(data); len(head) < len(begin) || !bytes.EqualFold(head[:len(begin)], []byte(begin)) {
		return Calendar{}, fmt.Errorf("not an iCalendar document")
	}

	parsed, err := ics.ParseCalendarWithOptions(bytes.NewReader(data),
		ics.WithUnknownPropertyHandler(ics.AcceptUnknownPropertyHandler))
	if err != nil {
		return Calendar{}, fmt.Errorf("parse calendar: %w", err)
	}

	var cal Calendar
	for _, p := range parsed.CalendarProperties {
		if strings.EqualFold(p.IANAToken, string(ics.PropertyXWRCalName)) {
			cal.Name = strings.TrimSpace(p.Value)
		}
	}

	moved := make(map[string][]time.Time)
	for _, ve := range parsed.Events() {
		ev, err := buildEvent(ve, loc)
		if err != nil {
			cal.Dropped++
			cal.Problems = append(cal.Problems, err)
			continue
		}
		if !ev.recurrenceID.IsZero() {
			moved[ev.UID] = append(moved[ev.UID], ev.recurrenceID)
		}
		cal.Events = append(cal.Events, ev)
	}
	for i := range cal.Events {
		ev := &cal.Events[i]
		if ev.rule == nil || !ev.recurrenceID.IsZero() {
			continue
		}
		for _, t := range moved[ev.UID] {
			ev.rule.ExDate(t)
		}
	}
	return cal, nil
}

func buildEvent(ve *ics.VEvent, loc *time.Location) (Event, error) {
	ev := Event{
		UID:         strings.TrimSpace(ve.Id()),
		Summary:     text(ve, ics.ComponentPropertySummary),
		Description: text(ve, ics.ComponentPropertyDescription),
		Location:    text(ve, ics.ComponentPropertyLocation),
	}
	fail := func(format string, args ...any) (Event, error) {
		return Event{}, &domain.FilterError{ItemID: ev.UID, Reason: fmt.Sprintf(format, args...)}
	}

	start := ve.GetProperty(ics.ComponentPropertyDtStart)
	if start == nil {
		return fail("missing DTSTART")
	}
	var err error
	if ev.Start, ev.FullDay, err = parseTime(start.Value, start.ICalParameters, loc); err != nil {
		return fail("DTSTART: %v", err)
	}

	switch end, dur := ve.GetProperty(ics.ComponentPropertyDtEnd), ve.GetProperty(ics.ComponentPropertyDuration); {
	case end != nil:
		if ev.End, _, err = parseTime(end.Value, end.ICalParameters, loc); err != nil {
			return fail("DTEND: %v", err)
		}
	case dur != nil:
		d, err := parseDuration(dur.Value)
		if err != nil {
			return fail("DURATION: %v", err)
		}
		ev.End = ev.Start.Add(d)
	case ev.FullDay:
		ev.End = ev.Start.AddDate(0, 0, 1)
	default:
		ev.End = ev.Start
	}
	if ev.End.Before(ev.Start) {
		return fail("ends before it starts")
	}

	if rid := ve.GetProperty(ics.ComponentPropertyRecurrenceId); rid != nil {
		if ev.recurrenceID, _, err = parseTime(rid.Value, rid.ICalParameters, loc); err != nil {
			return fail("RECURRENCE-ID: %v", err)
		}
	}
	if rule := ve.GetProperty(ics.ComponentPropertyRrule); rule != nil {
		if ev.rule, err = recurrence(ve, rule.Value, ev.Start, loc); err != nil {
			return fail("RRULE: %v", err)
		}
	}
	return ev, nil
}

// recurrence builds the occurrence set of an event from its RRULE, RDATE
// and EXDATE properties.
func recurrence(ve *ics.VEvent, rule string, start time.Time, loc *time.Location) (*rrule.Set, error) {
	opt, err := rrule.StrToROptionInLocation(rule, start.Location())
	if err != nil {
		return nil, err
	}
	opt.Dtstart = start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, err
	}

	set := &rrule.Set{}
	set.RRule(r)
	for _, p := range ve.GetProperties(ics.ComponentPropertyRdate) {
		times, err := parseTimes(p, loc)
		if err != nil {
			return nil, fmt.Errorf("RDATE: %w", err)
		}
		for _, t := range times {
			set.RDate(t)
		}
	}
	for _, p := range ve.GetProperties(ics.ComponentPropertyExdate) {
		times, err := parseTimes(p, loc)
		if err != nil {
			return nil, fmt.Errorf("EXDATE: %w", err)
		}
		for _, t := range times {
			set.ExDate(t)
		}
	}
	return set, nil
}

func text(ve *ics.VEvent, prop ics.ComponentProperty) string {
	p := ve.GetProperty(prop)
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Value)
}

// param returns the first value of a property parameter, ignoring case.
func param(params map[string][]string, name string) string {
	for k, v := range params {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// parseTimes parses a comma separated list of date or date-time values.
func parseTimes(p *ics.IANAProperty, loc *time.Location) ([]time.Time, error) {
	var out []time.Time
	for _, v := range strings.Split(p.Value, ",") {
		if strings.TrimSpace(v) == "" {
			continue
		}
		t, _, err := parseTime(v, p.ICalParameters, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// parseTime reads a DATE or DATE-TIME value. Times without a zone, and
// times whose TZID is unknown, are read in loc.
func parseTime(value string, params map[string][]string, loc *time.Location) (time.Time, bool, error) {
	v := strings.TrimSpace(value)
	if strings.EqualFold(param(params, "VALUE"), "DATE") || len(v) == 8 {
		t, err := time.ParseInLocation("20060102", v, loc)
		return t, true, err
	}
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}
	zone := loc
	if tzid := param(params, "TZID"); tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			zone = l
		}
	}
	t, err := time.ParseInLocation("20060102T150405", v, zone)
	return t, false, err
}

// parseDuration handles the dur-value grammar: [+-]P[nW][nD][T[nH][nM][nS]].
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var total time.Duration
	n := 0
	inTime := false
	digits := false
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
			n = n*10 + int(r-'0')
			digits = true
			continue
		case r == 'T':
			inTime = true
			continue
		}
		if !digits {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		unit, ok := durationUnit(r, inTime)
		if !ok {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		total += time.Duration(n) * unit
		n, digits = 0, false
	}
	if digits {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return sign * total, nil
}

func durationUnit(r rune, inTime bool) (time.Duration, bool) {
	switch {
	case r == 'W' && !inTime:
		return 7 * 24 * time.Hour, true
	case r == 'D' && !inTime:
		return 24 * time.Hour, true
	case r == 'H' && inTime:
		return time.Hour, true
	case r == 'M' && inTime:
		return time.Minute, true
	case r == 'S' && inTime:
		return time.Second, true
	}
	return 0, false
}
