package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
)

func loadSample(t *testing.T, data, ext string) Config {
	t.Helper()
	fc, err := DecodeFileConfig([]byte(data), ext)
	require.NoError(t, err)
	cfg := DefaultConfig()
	require.NoError(t, ApplyFileConfig(&cfg, fc, map[string]bool{}))
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildSpecs_TOML(t *testing.T) {
	specs, errs := BuildSpecs(loadSample(t, sampleTOML, ".toml"))
	require.Empty(t, errs)
	require.Len(t, specs, 5)

	alert := specs[0]
	assert.Equal(t, "module_0_alert", alert.ID)
	assert.Equal(t, domain.KindNotification, alert.Kind)
	assert.Equal(t, domain.PositionNone, alert.Position)
	assert.Equal(t, domain.NotificationOptions{Topics: []string{ports.TopicShowAlert}, DisplayTime: 3500 * time.Millisecond}, alert.Options)

	clock := specs[1]
	assert.Equal(t, domain.KindClock, clock.Kind)
	assert.Equal(t, domain.PositionTopLeft, clock.Position)
	assert.Equal(t, time.Second, clock.ReloadInterval)
	clockOpts := clock.Options.(domain.ClockOptions)
	assert.False(t, clockOpts.DisplaySeconds)
	assert.True(t, clockOpts.ShowDate)
	assert.Equal(t, 12, clockOpts.TimeFormat, "global time format")
	assert.Equal(t, "America/New_York", clockOpts.Location.String())

	cal := specs[2]
	assert.Equal(t, "module_2_calendar", cal.ID)
	assert.Equal(t, "Family", cal.Header)
	assert.Equal(t, 2, cal.Index)
	assert.Equal(t, 5*time.Minute, cal.ReloadInterval, "fastest calendar drives the timer")
	assert.Equal(t, 10, cal.Policy.MaxItems)
	assert.Equal(t, domain.OrderOldestFirst, cal.Policy.Order)
	calOpts := cal.Options.(domain.CalendarOptions)
	require.Len(t, calOpts.Calendars, 2)
	assert.Equal(t, domain.CalendarSource{Name: "Home", URL: "https://example.org/home.ics", FetchInterval: 5 * time.Minute}, calOpts.Calendars[0])
	assert.Equal(t, 24*time.Hour, calOpts.Calendars[1].FetchInterval)
	assert.Equal(t, "flag-usa", calOpts.Calendars[1].Symbol)
	assert.Equal(t, DefaultCalendarSymbol, calOpts.DefaultSymbol)

	weather := specs[3]
	assert.Equal(t, domain.KindWeatherForecast, weather.Kind)
	assert.Equal(t, 10*time.Minute, weather.ReloadInterval)
	assert.Equal(t, 20*time.Second, weather.FetchTimeout, "capped by the global fetch timeout")
	wOpts := weather.Options.(domain.WeatherOptions)
	assert.True(t, wOpts.Forecast)
	assert.Equal(t, "5099133", wOpts.LocationID)
	assert.Equal(t, "imperial", wOpts.Units)
	assert.Equal(t, "en", wOpts.Lang)
	assert.Equal(t, 5, wOpts.MaxNumberOfDays)
	assert.Equal(t, domain.KindWeatherForecast, domain.OptionsKind(weather.Options))

	news := specs[4]
	assert.Equal(t, domain.KindNewsfeed, news.Kind)
	assert.Equal(t, 10*time.Second, news.UpdateInterval)
	assert.Equal(t, 5*time.Minute, news.ReloadInterval)
	assert.Equal(t, 1, news.PageSize)
	assert.Equal(t, 400, news.LengthDescription)
	assert.Equal(t, []string{"sports"}, news.Policy.ProhibitedWords)
	assert.Equal(t, domain.OrderNewestFirst, news.Policy.Order)
	assert.True(t, news.Policy.Dedupe)
	newsOpts := news.Options.(domain.NewsfeedOptions)
	assert.Equal(t, []domain.Feed{{Title: "NPR", URL: "https://feeds.npr.org/1001/rss.xml"}}, newsOpts.Feeds)
	assert.True(t, newsOpts.ShowSourceTitle)
	assert.True(t, newsOpts.BroadcastNewsFeeds)

	for _, s := range specs {
		assert.Equal(t, DefaultSuppressErrorsAfter, s.SuppressErrorsAfter)
		assert.True(t, s.ShowErrors)
		assert.Equal(t, domain.OptionsKind(s.Options), s.Kind, s.ID)
	}
}

func TestBuildSpecs_YAML(t *testing.T) {
	specs, errs := BuildSpecs(loadSample(t, sampleYAML, ".yaml"))
	require.Empty(t, errs)
	require.Len(t, specs, 2)

	calOpts := specs[0].Options.(domain.CalendarOptions)
	assert.Equal(t, "calendar 1", calOpts.Calendars[0].Name)
	assert.Equal(t, 5*time.Minute, calOpts.Calendars[0].FetchInterval)

	c := specs[1]
	assert.Equal(t, domain.KindCompliments, c.Kind)
	assert.Equal(t, 30*time.Second, c.UpdateInterval)
	assert.Equal(t, 1, c.PageSize)
	opts := c.Options.(domain.ComplimentsOptions)
	assert.Equal(t, map[string][]string{
		"anytime": {"You've got this!"},
		"rain":    {"Umbrella!"},
	}, opts.Lists)
	assert.Equal(t, 3, opts.MorningStartHour)
	assert.Equal(t, 17, opts.AfternoonEndHour)
}

func TestBuildSpecs_DefaultsAndOtherKinds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Modules = []ModuleDecl{
		{Module: "compliments"},
		{Module: "updatenotification", Position: "top_bar"},
		{Module: "MMM-SmartTouch", Position: "bottom_center", Config: map[string]any{"text": "touch me"}},
		{Module: "clock", Disabled: true},
	}

	specs, errs := BuildSpecs(cfg)
	require.Empty(t, errs)
	require.Len(t, specs, 3)

	assert.Contains(t, specs[0].Options.(domain.ComplimentsOptions).Lists, "morning")

	update := specs[1].Options.(domain.NotificationOptions)
	assert.Equal(t, []string{ports.TopicModuleError}, update.Topics)
	assert.Zero(t, update.DisplayTime)

	other := specs[2]
	assert.Equal(t, domain.KindOther, other.Kind)
	assert.Equal(t, "module_2_MMM-SmartTouch", other.ID)
	assert.Equal(t, domain.StaticOptions{Lines: []string{"touch me"}}, other.Options)
	assert.Equal(t, DefaultFetchTimeoutCap, other.FetchTimeout)
}

func TestBuildSpecs_ConfigErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Modules = []ModuleDecl{
		{Module: "clock", Config: map[string]any{"timeFormat": 13}},
		{Module: "newsfeed"},
		{Module: "calendar", Config: map[string]any{"calendars": []any{map[string]any{"name": "no url"}}}},
		{Module: "compliments", Position: "middle"},
		{Module: "weather", Config: map[string]any{"type": "hourly"}},
		{Module: ""},
		{Module: "newsfeed", Config: map[string]any{
			"feeds":           []any{map[string]any{"url": "https://x"}},
			"removeStartTags": "start",
		}},
		{Module: "calendar", Config: map[string]any{
			"calendars":      []any{map[string]any{"url": "https://x"}},
			"maximumEntries": "ten",
		}},
		{Module: "clock", Config: map[string]any{"displaySeconds": "maybe"}},
		{Module: "clock", Config: map[string]any{"updateInterval": "whenever", "fetchTimeout": "soon"}},
		{Module: "clock", Position: "top_right"},
	}

	specs, errs := BuildSpecs(cfg)
	require.Len(t, specs, 1, "only the valid module survives")
	assert.Equal(t, "module_10_clock", specs[0].ID)

	want := []struct {
		index int
		kind  domain.ConfigErrorKind
		field string
	}{
		{0, domain.ConfigInvalidValue, "timeFormat"},
		{1, domain.ConfigMissingRequiredField, "feeds"},
		{2, domain.ConfigMissingRequiredField, "calendars[0].url"},
		{3, domain.ConfigInvalidValue, "position"},
		{4, domain.ConfigInvalidValue, "type"},
		{5, domain.ConfigMissingRequiredField, "module"},
		{6, domain.ConfigInvalidValue, "removeStartTags"},
		{7, domain.ConfigInvalidValue, "maximumEntries"},
		{8, domain.ConfigInvalidValue, "displaySeconds"},
		{9, domain.ConfigInvalidValue, "fetchTimeout"},
	}
	require.Len(t, errs, len(want))
	for i, w := range want {
		var cfgErr *domain.ConfigError
		require.True(t, errors.As(errs[i], &cfgErr), "error %d", i)
		assert.Equal(t, w.index, cfgErr.Index, "error %d", i)
		assert.Equal(t, w.kind, cfgErr.Kind, "error %d", i)
		assert.Equal(t, w.field, cfgErr.Field, "error %d", i)
		assert.ErrorIs(t, errs[i], domain.ErrInvalidConfig)
	}
}

func TestFetchTimeout(t *testing.T) {
	tests := []struct {
		name     string
		explicit time.Duration
		reload   time.Duration
		limit    time.Duration
		want     time.Duration
	}{
		{"explicit", 5 * time.Second, time.Minute, 30 * time.Second, 5 * time.Second},
		{"explicit capped", time.Minute, time.Minute, 30 * time.Second, 30 * time.Second},
		{"short reload", 0, time.Second, 30 * time.Second, time.Second},
		{"long reload", 0, time.Hour, 30 * time.Second, 30 * time.Second},
		{"no reload", 0, 0, 30 * time.Second, 30 * time.Second},
		{"no limit", 0, 0, 0, DefaultFetchTimeoutCap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fetchTimeout(tt.explicit, tt.reload, tt.limit))
		})
	}
}

func TestBuildSpecs_MomentDateFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Modules = []ModuleDecl{{
		Module:   "clock",
		Position: "top_left",
		Config:   map[string]any{"dateFormat": "dddd, MMMM Do"},
	}}

	specs, errs := BuildSpecs(cfg)
	require.Empty(t, errs)
	require.Len(t, specs, 1)
	opts := specs[0].Options.(domain.ClockOptions)
	assert.Equal(t, "Monday, January "+domain.OrdinalDay, opts.DateFormat)
}

func TestDateLayout(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dddd, MMMM Do", "Monday, January " + domain.OrdinalDay},
		{"ddd D MMM YYYY", "Mon 2 Jan 2006"},
		{"YYYY-MM-DD", "2006-01-02"},
		{"dddd [at] HH:mm", "Monday at 15:04"},
		{"Monday, January 2", "Monday, January 2"},
		{"2006-01-02", "2006-01-02"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, dateLayout(tt.in))
		})
	}
}

func TestDecodeOptions_Durations(t *testing.T) {
	var got struct {
		Str    time.Duration `mapstructure:"str"`
		Int    time.Duration `mapstructure:"int"`
		YAML   time.Duration `mapstructure:"yaml"`
		Float  time.Duration `mapstructure:"float"`
		Digits time.Duration `mapstructure:"digits"`
		Absent time.Duration `mapstructure:"absent"`
		Unset  time.Duration `mapstructure:"unset"`
	}
	got.Absent = time.Minute
	got.Unset = time.Minute

	err := decodeOptions(map[string]any{
		"str":    "90s",
		"int":    int64(1500),
		"yaml":   2000,
		"float":  float64(250),
		"digits": "300000",
		"absent": nil,
	}, &got)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, got.Str)
	assert.Equal(t, 1500*time.Millisecond, got.Int)
	assert.Equal(t, 2*time.Second, got.YAML)
	assert.Equal(t, 250*time.Millisecond, got.Float)
	assert.Equal(t, 5*time.Minute, got.Digits)
	assert.Equal(t, time.Minute, got.Absent)
	assert.Equal(t, time.Minute, got.Unset)
}

func TestProblem_DecodeErrorsNameTheField(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		field  string
	}{
		{"fractional milliseconds", map[string]any{"fetchInterval": 1.5}, "fetchInterval"},
		{"negative milliseconds", map[string]any{"fetchInterval": -10}, "fetchInterval"},
		{"bad duration string", map[string]any{"fetchInterval": "soon"}, "fetchInterval"},
		{"not a number", map[string]any{"maximumEntries": "ten"}, "maximumEntries"},
		{"nested", map[string]any{"calendars": []any{
			map[string]any{"url": "https://x"},
			map[string]any{"url": "https://y", "fetchInterval": "often"},
		}}, "calendars[1].fetchInterval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &problem{module: "calendar", index: 4}
			var raw calendarOptions
			p.decode(tt.values, &raw)

			require.NotNil(t, p.err)
			assert.Equal(t, tt.field, p.err.Field)
			assert.Equal(t, domain.ConfigInvalidValue, p.err.Kind)
			assert.Equal(t, 4, p.err.Index)
			assert.ErrorIs(t, p.err, domain.ErrInvalidConfig)
		})
	}
}
