package config

import (
	"strings"

	"github.com/bft-labs/ambient/internal/domain"
)

// momentTokens maps moment.js date tokens to Go layout elements, longest
// token first so "dddd" wins over "ddd".
var momentTokens = []struct{ moment, layout string }{
	{"dddd", "Monday"},
	{"ddd", "Mon"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"Do", domain.OrdinalDay},
	{"DD", "02"},
	{"D", "2"},
	{"YYYY", "2006"},
	{"YY", "06"},
	{"HH", "15"},
	{"hh", "03"},
	{"h", "3"},
	{"mm", "04"},
	{"ss", "05"},
	{"A", "PM"},
	{"a", "pm"},
}

// momentMarkers are tokens that never appear in a Go layout.
var momentMarkers = []string{"dddd", "ddd", "MMM", "Do", "DD", "YYYY", "YY", "HH", "hh", "mm", "ss"}

// dateLayout returns format as a Go time layout. Formats written with
// moment.js tokens, as in "dddd, MMMM Do", are translated; Go layouts are
// returned unchanged. Text inside [brackets] is kept literally.
func dateLayout(format string) string {
	if !isMomentFormat(format) {
		return format
	}
	var b strings.Builder
	for i := 0; i < len(format); {
		if format[i] == '[' {
			if end := strings.IndexByte(format[i:], ']'); end > 0 {
				b.WriteString(format[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		matched := false
		for _, tok := range momentTokens {
			if strings.HasPrefix(format[i:], tok.moment) {
				b.WriteString(tok.layout)
				i += len(tok.moment)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String()
}

func isMomentFormat(format string) bool {
	for _, m := range momentMarkers {
		if strings.Contains(format, m) {
			return true
		}
	}
	return false
}
