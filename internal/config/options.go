package config

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/bft-labs/ambient/internal/domain"
)

// Module config tables decode into these structs. Fields hold their
// defaults before decoding; keys absent from the table leave them as is.
// Slices and maps that have a default are filled in after decoding, since
// the decoder merges into non-nil values.

type moduleOptions struct {
	ShowErrors          bool          `mapstructure:"showErrors"`
	SuppressErrorsAfter int           `mapstructure:"suppressErrorsAfter"`
	FetchTimeout        time.Duration `mapstructure:"fetchTimeout"`
}

type clockOptions struct {
	DisplaySeconds bool   `mapstructure:"displaySeconds"`
	ShowPeriod     bool   `mapstructure:"showPeriod"`
	ShowDate       bool   `mapstructure:"showDate"`
	DateFormat     string `mapstructure:"dateFormat"`
	TimeFormat     int    `mapstructure:"timeFormat"`
	Timezone       string `mapstructure:"timezone"`
}

type calendarOptions struct {
	Calendars           []calendarSource `mapstructure:"calendars"`
	FetchInterval       time.Duration    `mapstructure:"fetchInterval"`
	MaximumEntries      int              `mapstructure:"maximumEntries"`
	MaximumNumberOfDays int              `mapstructure:"maximumNumberOfDays"`
	DisplaySymbol       bool             `mapstructure:"displaySymbol"`
	DefaultSymbol       string           `mapstructure:"defaultSymbol"`
	ShowLocation        bool             `mapstructure:"showLocation"`
}

type calendarSource struct {
	Name          string        `mapstructure:"name"`
	URL           string        `mapstructure:"url"`
	Symbol        string        `mapstructure:"symbol"`
	FetchInterval time.Duration `mapstructure:"fetchInterval"`
}

type weatherOptions struct {
	Type            string        `mapstructure:"type"`
	Provider        string        `mapstructure:"weatherProvider"`
	Location        string        `mapstructure:"location"`
	LocationID      string        `mapstructure:"locationID"`
	APIKey          string        `mapstructure:"apiKey"`
	APIBase         string        `mapstructure:"apiBase"`
	Units           string        `mapstructure:"units"`
	Lang            string        `mapstructure:"lang"`
	MaxNumberOfDays int           `mapstructure:"maxNumberOfDays"`
	UpdateInterval  time.Duration `mapstructure:"updateInterval"`
}

type newsfeedOptions struct {
	Feeds                []feedSource    `mapstructure:"feeds"`
	ShowSourceTitle      bool            `mapstructure:"showSourceTitle"`
	ShowDescription      bool            `mapstructure:"showDescription"`
	BroadcastNewsFeeds   bool            `mapstructure:"broadcastNewsFeeds"`
	BroadcastNewsUpdates bool            `mapstructure:"broadcastNewsUpdates"`
	LogFeedWarnings      bool            `mapstructure:"logFeedWarnings"`
	ReloadInterval       time.Duration   `mapstructure:"reloadInterval"`
	UpdateInterval       time.Duration   `mapstructure:"updateInterval"`
	TruncDescription     bool            `mapstructure:"truncDescription"`
	LengthDescription    int             `mapstructure:"lengthDescription"`
	MaxNewsItems         int             `mapstructure:"maxNewsItems"`
	IgnoreOldItems       bool            `mapstructure:"ignoreOldItems"`
	IgnoreOlderThan      time.Duration   `mapstructure:"ignoreOlderThan"`
	StartTags            []string        `mapstructure:"startTags"`
	EndTags              []string        `mapstructure:"endTags"`
	RemoveStartTags      domain.TagScope `mapstructure:"removeStartTags"`
	RemoveEndTags        domain.TagScope `mapstructure:"removeEndTags"`
	ProhibitedWords      []string        `mapstructure:"prohibitedWords"`
}

type feedSource struct {
	Title string `mapstructure:"title"`
	URL   string `mapstructure:"url"`
}

type complimentsOptions struct {
	Compliments        map[string][]string `mapstructure:"compliments"`
	MorningStartTime   int                 `mapstructure:"morningStartTime"`
	MorningEndTime     int                 `mapstructure:"morningEndTime"`
	AfternoonStartTime int                 `mapstructure:"afternoonStartTime"`
	AfternoonEndTime   int                 `mapstructure:"afternoonEndTime"`
	UpdateInterval     time.Duration       `mapstructure:"updateInterval"`
	ReloadInterval     time.Duration       `mapstructure:"reloadInterval"`
}

type notificationOptions struct {
	Topics      []string      `mapstructure:"topics"`
	DisplayTime time.Duration `mapstructure:"displayTime"`
	MaxItems    int           `mapstructure:"maxItems"`
}

type staticOptions struct {
	Text  string   `mapstructure:"text"`
	Lines []string `mapstructure:"lines"`
}

// problem keeps the first error found while building one module.
type problem struct {
	module string
	index  int
	err    *domain.ConfigError
}

func (p *problem) fail(kind domain.ConfigErrorKind, field, format string, args ...any) {
	if p.err != nil {
		return
	}
	p.err = &domain.ConfigError{
		Module:  p.module,
		Index:   p.index,
		Kind:    kind,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// decode fills target from a module config table, recording the first
// value that does not fit against its key.
func (p *problem) decode(values map[string]any, target any) {
	err := decodeOptions(values, target)
	if err == nil {
		return
	}
	var decodeErr *mapstructure.DecodeError
	if errors.As(err, &decodeErr) {
		p.fail(domain.ConfigInvalidValue, decodeErr.Name(), "%v", decodeErr.Unwrap())
		return
	}
	p.fail(domain.ConfigInvalidValue, "config", "%v", err)
}

// nonNegative records a failure when n is below zero.
func (p *problem) nonNegative(field string, n int) {
	if n < 0 {
		p.fail(domain.ConfigInvalidValue, field, "must not be negative, got %d", n)
	}
}

// required records a failure when s is blank.
func (p *problem) required(field, s string) {
	if s == "" {
		p.fail(domain.ConfigMissingRequiredField, field, "is required")
	}
}

func (p *problem) scope(field string, s domain.TagScope) {
	switch s {
	case domain.TagScopeNone, domain.TagScopeTitle, domain.TagScopeDescription, domain.TagScopeBoth:
	default:
		p.fail(domain.ConfigInvalidValue, field, "must be title, description or both, got %q", s)
	}
}

// decodeOptions decodes a TOML or YAML table into target. Values are
// weakly typed, so "30" fills an int and 5099133 fills a string.
func decodeOptions(values map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(durationHook),
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return dec.Decode(values)
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook reads a time.Duration from a Go duration string or from a
// whole number of milliseconds.
func durationHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	v := reflect.ValueOf(data)
	var ms int64
	switch from.Kind() {
	case reflect.String:
		return parseDuration(v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		ms = v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() > math.MaxInt64/uint64(time.Millisecond) {
			return nil, fmt.Errorf("duration %d out of range", v.Uint())
		}
		ms = int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected whole milliseconds, got %v", f)
		}
		ms = int64(f)
	default:
		return data, nil
	}
	if ms < 0 {
		return nil, fmt.Errorf("negative duration %d", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
