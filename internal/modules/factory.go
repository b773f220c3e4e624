// Package modules implements the fetcher of every module kind.
//
// Each kind turns its slice of configuration into a ports.Fetcher. Kinds
// that listen on the notification bus also implement io.Closer; the
// orchestrator closes them when their module stops.
package modules

import (
	"time"

	"github.com/bft-labs/ambient/internal/adapters/httpget"
	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
	"github.com/bft-labs/ambient/pkg/log"
)

// Deps are the shared collaborators handed to every fetcher.
type Deps struct {
	Getter *httpget.Getter
	Bus    ports.Bus
	Logger log.Logger
	// Location is used for floating calendar times and day periods.
	Location *time.Location
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = log.NewNoopLogger()
	}
	if d.Getter == nil {
		d.Getter = httpget.NewGetter(nil, d.Logger)
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// New builds the fetcher for spec. It returns a *domain.ConfigError when
// the options do not match the kind or cannot be served.
func New(spec domain.ModuleSpec, deps Deps) (ports.Fetcher, error) {
	deps = deps.withDefaults()
	logger := deps.Logger.With(log.String("module", spec.ID))

	if got := domain.OptionsKind(spec.Options); got != spec.Kind {
		return nil, configError(spec, domain.ConfigInvalidValue, "config",
			"options of kind %q do not match module kind %q", got, spec.Kind)
	}

	switch opts := spec.Options.(type) {
	case domain.ClockOptions:
		return NewClock(opts, deps.Now), nil
	case domain.CalendarOptions:
		if len(opts.Calendars) == 0 {
			return nil, configError(spec, domain.ConfigMissingRequiredField, "calendars", "at least one calendar is required")
		}
		return NewCalendar(opts, deps.Getter, deps.Location, logger, deps.Now), nil
	case domain.WeatherOptions:
		return newWeatherFetcher(spec, opts, deps, logger)
	case domain.NewsfeedOptions:
		if len(opts.Feeds) == 0 {
			return nil, configError(spec, domain.ConfigMissingRequiredField, "feeds", "at least one feed is required")
		}
		return NewNewsfeed(spec, opts, deps.Getter, deps.Bus, logger, deps.Now), nil
	case domain.ComplimentsOptions:
		return NewCompliments(opts, deps.Bus, deps.Location, deps.Now), nil
	case domain.NotificationOptions:
		if deps.Bus == nil {
			return nil, configError(spec, domain.ConfigInvalidValue, "topics", "no notification bus available")
		}
		return NewNotification(opts, spec.Policy.MaxItems, deps.Bus, deps.Now), nil
	case domain.StaticOptions:
		return NewStatic(opts, deps.Now), nil
	default:
		return nil, configError(spec, domain.ConfigMissingRequiredField, "config", "no options for kind %q", spec.Kind)
	}
}

func newWeatherFetcher(spec domain.ModuleSpec, opts domain.WeatherOptions, deps Deps, logger log.Logger) (ports.Fetcher, error) {
	if opts.Provider != "" && opts.Provider != "openweathermap" {
		return nil, configError(spec, domain.ConfigInvalidValue, "weatherProvider", "unsupported provider %q", opts.Provider)
	}
	if opts.APIKey == "" {
		return nil, configError(spec, domain.ConfigMissingRequiredField, "apiKey", "an API key is required")
	}
	if opts.LocationID == "" && opts.Location == "" {
		return nil, configError(spec, domain.ConfigMissingRequiredField, "locationID", "locationID or location is required")
	}
	return NewWeather(spec.ID, opts, deps.Getter, deps.Bus, logger, deps.Now), nil
}
