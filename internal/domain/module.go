package domain

import "time"

// Kind identifies one variant of the closed set of module kinds.
type Kind string

const (
	KindClock           Kind = "clock"
	KindCalendar        Kind = "calendar"
	KindWeatherCurrent  Kind = "weather-current"
	KindWeatherForecast Kind = "weather-forecast"
	KindNewsfeed        Kind = "newsfeed"
	KindCompliments     Kind = "compliments"
	KindNotification    Kind = "notification"
	KindOther           Kind = "other"
)

// Position is a fixed named screen region. Several modules may share a
// region; they stack in declaration order.
type Position string

const (
	PositionNone            Position = ""
	PositionTopBar          Position = "top_bar"
	PositionTopLeft         Position = "top_left"
	PositionTopCenter       Position = "top_center"
	PositionTopRight        Position = "top_right"
	PositionUpperThird      Position = "upper_third"
	PositionMiddleCenter    Position = "middle_center"
	PositionLowerThird      Position = "lower_third"
	PositionBottomLeft      Position = "bottom_left"
	PositionBottomCenter    Position = "bottom_center"
	PositionBottomRight     Position = "bottom_right"
	PositionBottomBar       Position = "bottom_bar"
	PositionFullscreenAbove Position = "fullscreen_above"
	PositionFullscreenBelow Position = "fullscreen_below"
)

// Positions lists every region in screen order, top to bottom.
var Positions = []Position{
	PositionTopBar,
	PositionTopLeft,
	PositionTopCenter,
	PositionTopRight,
	PositionUpperThird,
	PositionMiddleCenter,
	PositionLowerThird,
	PositionBottomLeft,
	PositionBottomCenter,
	PositionBottomRight,
	PositionBottomBar,
	PositionFullscreenAbove,
	PositionFullscreenBelow,
}

// Valid reports whether p is a known region or PositionNone.
func (p Position) Valid() bool {
	if p == PositionNone {
		return true
	}
	for _, known := range Positions {
		if p == known {
			return true
		}
	}
	return false
}

// Rank returns the screen order of p. PositionNone sorts last.
func (p Position) Rank() int {
	for i, known := range Positions {
		if p == known {
			return i
		}
	}
	return len(Positions)
}

// Order is the canonical order of a module's buffer.
type Order int

const (
	// OrderFetch keeps items in the order the fetcher returned them.
	OrderFetch Order = iota
	// OrderNewestFirst sorts by SortKey descending (news).
	OrderNewestFirst
	// OrderOldestFirst sorts by SortKey ascending (calendar, forecast days).
	OrderOldestFirst
)

// TagScope selects which text fields tag stripping applies to.
type TagScope string

const (
	TagScopeNone        TagScope = ""
	TagScopeTitle       TagScope = "title"
	TagScopeDescription TagScope = "description"
	TagScopeBoth        TagScope = "both"
)

// Title reports whether the scope covers titles.
func (s TagScope) Title() bool { return s == TagScopeTitle || s == TagScopeBoth }

// Description reports whether the scope covers descriptions.
func (s TagScope) Description() bool { return s == TagScopeDescription || s == TagScopeBoth }

// BufferPolicy is the filtering and trimming policy of a content buffer.
type BufferPolicy struct {
	// MaxItems bounds the buffer. 0 means unlimited.
	MaxItems int

	// IgnoreOldItems drops items whose SortKey is older than IgnoreOlderThan.
	IgnoreOldItems  bool
	IgnoreOlderThan time.Duration

	// StartTags and EndTags are stripped from the beginning and end of the
	// fields selected by RemoveStartTags and RemoveEndTags.
	StartTags       []string
	EndTags         []string
	RemoveStartTags TagScope
	RemoveEndTags   TagScope

	// ProhibitedWords drops any item whose title or description contains
	// one of the words, compared case-insensitively.
	ProhibitedWords []string

	Order Order

	// Dedupe drops later items whose ID was already seen.
	Dedupe bool
}

// ModuleSpec is the immutable description of one configured module.
type ModuleSpec struct {
	// ID is the instance id, unique within one configuration.
	ID string
	// Name is the module name as declared ("weather", "alert", "MMM-Foo").
	Name string
	Kind Kind
	// Index is the declaration order, used for stacking within a region.
	Index    int
	Position Position
	Header   string

	// UpdateInterval is the rotation cadence. 0 disables rotation.
	UpdateInterval time.Duration
	// ReloadInterval is the fetch cadence.
	ReloadInterval time.Duration
	// FetchTimeout bounds one fetch.
	FetchTimeout time.Duration

	Policy BufferPolicy

	// PageSize is the number of items visible at once. 0 shows the whole buffer.
	PageSize int

	// LengthDescription truncates descriptions at render preparation. 0 keeps them whole.
	LengthDescription int

	// ShowErrors annotates snapshots with the last fetch error.
	ShowErrors bool

	// SuppressErrorsAfter stops re-publishing an identical error after that
	// many consecutive failures. 0 never suppresses.
	SuppressErrorsAfter int

	Options Options
}

// Options is the kind-specific configuration of a module. The set of
// implementations is closed to this package.
type Options interface {
	kind() Kind
}

// ClockOptions configures the clock module.
type ClockOptions struct {
	DisplaySeconds bool
	ShowPeriod     bool
	ShowDate       bool
	// DateFormat is a Go time layout. OrdinalDay in it stands for the day
	// of the month with its English suffix.
	DateFormat string
	Location   *time.Location
	// TimeFormat is 12 or 24.
	TimeFormat int
}

func (ClockOptions) kind() Kind { return KindClock }

// OrdinalDay marks the ordinal day of the month ("1st", "22nd") in a clock
// date layout. Go layouts have no element for it.
const OrdinalDay = "{Do}"

// CalendarSource is one iCalendar feed.
type CalendarSource struct {
	Name          string
	URL           string
	Symbol        string
	FetchInterval time.Duration
}

// CalendarOptions configures the calendar module.
type CalendarOptions struct {
	Calendars           []CalendarSource
	MaximumNumberOfDays int
	DefaultSymbol       string
	ShowLocation        bool
}

func (CalendarOptions) kind() Kind { return KindCalendar }

// WeatherOptions configures both weather kinds.
type WeatherOptions struct {
	// Forecast selects the daily forecast instead of current conditions.
	Forecast        bool
	Provider        string
	Location        string
	LocationID      string
	APIKey          string
	Units           string
	Lang            string
	MaxNumberOfDays int
	BaseURL         string
}

func (o WeatherOptions) kind() Kind {
	if o.Forecast {
		return KindWeatherForecast
	}
	return KindWeatherCurrent
}

// Feed is one RSS or Atom source.
type Feed struct {
	Title string
	URL   string
}

// NewsfeedOptions configures the newsfeed module.
type NewsfeedOptions struct {
	Feeds                []Feed
	ShowSourceTitle      bool
	ShowDescription      bool
	BroadcastNewsFeeds   bool
	BroadcastNewsUpdates bool
	LogFeedWarnings      bool
}

func (NewsfeedOptions) kind() Kind { return KindNewsfeed }

// ComplimentsOptions configures the compliments module. Lists maps a
// category ("anytime", "morning", "afternoon", "evening" or a weather
// condition type such as "rain") to its lines.
type ComplimentsOptions struct {
	Lists map[string][]string
	// MorningStartHour and friends bound the day periods, in local hours.
	MorningStartHour   int
	MorningEndHour     int
	AfternoonStartHour int
	AfternoonEndHour   int
}

func (ComplimentsOptions) kind() Kind { return KindCompliments }

// NotificationOptions configures alert-like modules fed from the bus.
type NotificationOptions struct {
	// Topics are the bus topics whose events are displayed.
	Topics      []string
	DisplayTime time.Duration
}

func (NotificationOptions) kind() Kind { return KindNotification }

// StaticOptions configures modules without a data source.
type StaticOptions struct {
	Lines []string
}

func (StaticOptions) kind() Kind { return KindOther }

// OptionsKind reports which kind an Options value belongs to.
func OptionsKind(o Options) Kind {
	if o == nil {
		return ""
	}
	return o.kind()
}
