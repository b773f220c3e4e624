package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
)

// Per-kind defaults.
const (
	DefaultSuppressErrorsAfter = 3

	DefaultClockInterval = time.Second

	DefaultCalendarFetchInterval = 5 * time.Minute
	DefaultCalendarMaxEntries    = 10
	DefaultCalendarMaxDays       = 365
	DefaultCalendarSymbol        = "calendar"

	DefaultWeatherInterval = 10 * time.Minute
	DefaultForecastDays    = 5

	DefaultNewsReloadInterval  = 5 * time.Minute
	DefaultNewsUpdateInterval  = 10 * time.Second
	DefaultNewsIgnoreOlderThan = 24 * time.Hour
	DefaultNewsDescription     = 400

	DefaultComplimentsUpdateInterval = 30 * time.Second
	DefaultComplimentsReloadInterval = time.Minute

	DefaultAlertDisplayTime     = 3500 * time.Millisecond
	DefaultNotificationInterval = time.Second
)

var defaultCompliments = map[string][]string{
	"anytime":   {"Hey there sexy!"},
	"morning":   {"Good morning, handsome!", "Enjoy your day!", "How was your sleep?"},
	"afternoon": {"Hello, beauty!", "You look sexy!", "Looking good today!"},
	"evening":   {"Wow, you look hot!", "You look nice!", "Hi, sexy!"},
}

// BuildSpecs turns the module declarations into specs, in declaration
// order. Disabled modules are left out. A declaration that cannot be built
// yields one *domain.ConfigError and is left out; the others are still
// returned.
func BuildSpecs(cfg Config) ([]domain.ModuleSpec, []error) {
	var (
		specs []domain.ModuleSpec
		errs  []error
	)
	for i, decl := range cfg.Modules {
		if decl.Disabled {
			continue
		}
		spec, err := buildSpec(cfg, i, decl)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		specs = append(specs, spec)
	}
	return specs, errs
}

func buildSpec(cfg Config, index int, decl ModuleDecl) (domain.ModuleSpec, error) {
	name := strings.TrimSpace(decl.Module)
	p := &problem{module: name, index: index}
	if name == "" {
		p.fail(domain.ConfigMissingRequiredField, "module", "module name is required")
		return domain.ModuleSpec{}, p.err
	}

	spec := domain.ModuleSpec{
		ID:       fmt.Sprintf("module_%d_%s", index, name),
		Name:     name,
		Index:    index,
		Position: domain.Position(strings.TrimSpace(decl.Position)),
		Header:   decl.Header,
	}
	if !spec.Position.Valid() {
		p.fail(domain.ConfigInvalidValue, "position", "unknown position %q", decl.Position)
	}

	common := moduleOptions{ShowErrors: true, SuppressErrorsAfter: DefaultSuppressErrorsAfter}
	p.decode(decl.Config, &common)
	p.nonNegative("suppressErrorsAfter", common.SuppressErrorsAfter)
	spec.ShowErrors = common.ShowErrors
	spec.SuppressErrorsAfter = common.SuppressErrorsAfter

	switch name {
	case "clock":
		clockSpec(&spec, p, decl.Config, cfg)
	case "calendar":
		calendarSpec(&spec, p, decl.Config)
	case "weather":
		weatherSpec(&spec, p, decl.Config, cfg)
	case "newsfeed":
		newsfeedSpec(&spec, p, decl.Config)
	case "compliments":
		complimentsSpec(&spec, p, decl.Config)
	case "alert", "updatenotification":
		notificationSpec(&spec, p, decl.Config)
	default:
		staticSpec(&spec, p, decl.Config)
	}

	spec.FetchTimeout = fetchTimeout(common.FetchTimeout, spec.ReloadInterval, cfg.FetchTimeoutCap)

	if p.err != nil {
		return domain.ModuleSpec{}, p.err
	}
	return spec, nil
}

// fetchTimeout bounds a fetch by the explicit timeout, or else by the
// reload interval, never exceeding limit.
func fetchTimeout(explicit, reload, limit time.Duration) time.Duration {
	if limit <= 0 {
		limit = DefaultFetchTimeoutCap
	}
	switch {
	case explicit > 0:
		return min(explicit, limit)
	case reload > 0:
		return min(reload, limit)
	default:
		return limit
	}
}

func clockSpec(spec *domain.ModuleSpec, p *problem, values map[string]any, cfg Config) {
	raw := clockOptions{
		DisplaySeconds: true,
		ShowPeriod:     true,
		ShowDate:       true,
		TimeFormat:     cfg.TimeFormat,
		Timezone:       cfg.Timezone,
	}
	p.decode(values, &raw)
	if raw.TimeFormat != 12 && raw.TimeFormat != 24 {
		p.fail(domain.ConfigInvalidValue, "timeFormat", "must be 12 or 24, got %d", raw.TimeFormat)
	}
	loc, err := loadLocation(raw.Timezone)
	if err != nil {
		p.fail(domain.ConfigInvalidValue, "timezone", "%v", err)
	}

	spec.Kind = domain.KindClock
	spec.ReloadInterval = DefaultClockInterval
	spec.Options = domain.ClockOptions{
		DisplaySeconds: raw.DisplaySeconds,
		ShowPeriod:     raw.ShowPeriod,
		ShowDate:       raw.ShowDate,
		DateFormat:     dateLayout(raw.DateFormat),
		TimeFormat:     raw.TimeFormat,
		Location:       loc,
	}
}

func calendarSpec(spec *domain.ModuleSpec, p *problem, values map[string]any) {
	raw := calendarOptions{
		FetchInterval:       DefaultCalendarFetchInterval,
		MaximumEntries:      DefaultCalendarMaxEntries,
		MaximumNumberOfDays: DefaultCalendarMaxDays,
		DisplaySymbol:       true,
		DefaultSymbol:       DefaultCalendarSymbol,
	}
	p.decode(values, &raw)
	p.nonNegative("maximumEntries", raw.MaximumEntries)
	p.nonNegative("maximumNumberOfDays", raw.MaximumNumberOfDays)

	opts := domain.CalendarOptions{
		MaximumNumberOfDays: raw.MaximumNumberOfDays,
		DefaultSymbol:       raw.DefaultSymbol,
		ShowLocation:        raw.ShowLocation,
	}
	if !raw.DisplaySymbol {
		opts.DefaultSymbol = ""
	}

	reload := time.Duration(0)
	for i, c := range raw.Calendars {
		src := domain.CalendarSource{
			Name:          c.Name,
			URL:           strings.TrimSpace(c.URL),
			Symbol:        c.Symbol,
			FetchInterval: c.FetchInterval,
		}
		p.required(fmt.Sprintf("calendars[%d].url", i), src.URL)
		if src.Name == "" {
			src.Name = fmt.Sprintf("calendar %d", i+1)
		}
		if src.FetchInterval == 0 {
			src.FetchInterval = raw.FetchInterval
		}
		if !raw.DisplaySymbol {
			src.Symbol = ""
		}
		if reload == 0 || (src.FetchInterval > 0 && src.FetchInterval < reload) {
			reload = src.FetchInterval
		}
		opts.Calendars = append(opts.Calendars, src)
	}
	if len(opts.Calendars) == 0 {
		p.fail(domain.ConfigMissingRequiredField, "calendars", "at least one calendar is required")
	}
	if reload == 0 {
		reload = raw.FetchInterval
	}

	spec.Kind = domain.KindCalendar
	spec.ReloadInterval = reload
	spec.Policy = domain.BufferPolicy{
		MaxItems: raw.MaximumEntries,
		Order:    domain.OrderOldestFirst,
		Dedupe:   true,
	}
	spec.Options = opts
}

func weatherSpec(spec *domain.ModuleSpec, p *problem, values map[string]any, cfg Config) {
	raw := weatherOptions{
		Type:            "current",
		Provider:        "openweathermap",
		Units:           cfg.Units,
		Lang:            cfg.Language,
		MaxNumberOfDays: DefaultForecastDays,
		UpdateInterval:  DefaultWeatherInterval,
	}
	p.decode(values, &raw)
	p.nonNegative("maxNumberOfDays", raw.MaxNumberOfDays)

	opts := domain.WeatherOptions{
		Provider:        raw.Provider,
		Location:        raw.Location,
		LocationID:      raw.LocationID,
		APIKey:          raw.APIKey,
		Units:           raw.Units,
		Lang:            raw.Lang,
		MaxNumberOfDays: raw.MaxNumberOfDays,
		BaseURL:         raw.APIBase,
	}
	switch raw.Type {
	case "current":
		spec.Kind = domain.KindWeatherCurrent
	case "forecast", "daily":
		opts.Forecast = true
		spec.Kind = domain.KindWeatherForecast
		spec.Policy.Order = domain.OrderOldestFirst
	default:
		p.fail(domain.ConfigInvalidValue, "type", "must be current or forecast, got %q", raw.Type)
	}

	spec.ReloadInterval = raw.UpdateInterval
	spec.Options = opts
}

func newsfeedSpec(spec *domain.ModuleSpec, p *problem, values map[string]any) {
	raw := newsfeedOptions{
		ShowSourceTitle:      true,
		BroadcastNewsFeeds:   true,
		BroadcastNewsUpdates: true,
		ReloadInterval:       DefaultNewsReloadInterval,
		UpdateInterval:       DefaultNewsUpdateInterval,
		TruncDescription:     true,
		LengthDescription:    DefaultNewsDescription,
		IgnoreOlderThan:      DefaultNewsIgnoreOlderThan,
	}
	p.decode(values, &raw)
	p.nonNegative("lengthDescription", raw.LengthDescription)
	p.nonNegative("maxNewsItems", raw.MaxNewsItems)
	p.scope("removeStartTags", raw.RemoveStartTags)
	p.scope("removeEndTags", raw.RemoveEndTags)

	opts := domain.NewsfeedOptions{
		ShowSourceTitle:      raw.ShowSourceTitle,
		ShowDescription:      raw.ShowDescription,
		BroadcastNewsFeeds:   raw.BroadcastNewsFeeds,
		BroadcastNewsUpdates: raw.BroadcastNewsUpdates,
		LogFeedWarnings:      raw.LogFeedWarnings,
	}
	for i, f := range raw.Feeds {
		url := strings.TrimSpace(f.URL)
		p.required(fmt.Sprintf("feeds[%d].url", i), url)
		opts.Feeds = append(opts.Feeds, domain.Feed{Title: f.Title, URL: url})
	}
	if len(opts.Feeds) == 0 {
		p.fail(domain.ConfigMissingRequiredField, "feeds", "at least one feed is required")
	}

	spec.Kind = domain.KindNewsfeed
	spec.ReloadInterval = raw.ReloadInterval
	spec.UpdateInterval = raw.UpdateInterval
	spec.PageSize = 1
	if raw.TruncDescription {
		spec.LengthDescription = raw.LengthDescription
	}
	spec.Policy = domain.BufferPolicy{
		MaxItems:        raw.MaxNewsItems,
		IgnoreOldItems:  raw.IgnoreOldItems,
		IgnoreOlderThan: raw.IgnoreOlderThan,
		StartTags:       raw.StartTags,
		EndTags:         raw.EndTags,
		RemoveStartTags: raw.RemoveStartTags,
		RemoveEndTags:   raw.RemoveEndTags,
		ProhibitedWords: raw.ProhibitedWords,
		Order:           domain.OrderNewestFirst,
		Dedupe:          true,
	}
	spec.Options = opts
}

func complimentsSpec(spec *domain.ModuleSpec, p *problem, values map[string]any) {
	raw := complimentsOptions{
		MorningStartTime:   3,
		MorningEndTime:     12,
		AfternoonStartTime: 12,
		AfternoonEndTime:   17,
		UpdateInterval:     DefaultComplimentsUpdateInterval,
		ReloadInterval:     DefaultComplimentsReloadInterval,
	}
	p.decode(values, &raw)
	if raw.Compliments == nil {
		raw.Compliments = defaultCompliments
	}

	spec.Kind = domain.KindCompliments
	spec.UpdateInterval = raw.UpdateInterval
	spec.ReloadInterval = raw.ReloadInterval
	spec.PageSize = 1
	spec.Options = domain.ComplimentsOptions{
		Lists:              raw.Compliments,
		MorningStartHour:   raw.MorningStartTime,
		MorningEndHour:     raw.MorningEndTime,
		AfternoonStartHour: raw.AfternoonStartTime,
		AfternoonEndHour:   raw.AfternoonEndTime,
	}
}

func notificationSpec(spec *domain.ModuleSpec, p *problem, values map[string]any) {
	var raw notificationOptions
	if spec.Name == "alert" {
		raw.DisplayTime = DefaultAlertDisplayTime
	}
	p.decode(values, &raw)
	p.nonNegative("maxItems", raw.MaxItems)
	if len(raw.Topics) == 0 {
		raw.Topics = []string{ports.TopicModuleError}
		if spec.Name == "alert" {
			raw.Topics = []string{ports.TopicShowAlert}
		}
	}

	spec.Kind = domain.KindNotification
	spec.ReloadInterval = DefaultNotificationInterval
	spec.Policy.MaxItems = raw.MaxItems
	spec.Options = domain.NotificationOptions{Topics: raw.Topics, DisplayTime: raw.DisplayTime}
}

func staticSpec(spec *domain.ModuleSpec, p *problem, values map[string]any) {
	var raw staticOptions
	p.decode(values, &raw)
	lines := raw.Lines
	if raw.Text != "" {
		lines = append([]string{raw.Text}, lines...)
	}
	spec.Kind = domain.KindOther
	spec.Options = domain.StaticOptions{Lines: lines}
}
