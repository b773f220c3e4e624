package modules

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/ambient/internal/adapters/httpget"
	"github.com/bft-labs/ambient/internal/adapters/owm"
	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
	"github.com/bft-labs/ambient/pkg/log"
)

// Weather fetches current conditions or a daily forecast. The current
// conditions variant broadcasts the condition type on every successful
// fetch so that other modules can react to it.
type Weather struct {
	id     string
	opts   domain.WeatherOptions
	client *owm.Client
	bus    ports.Publisher
	logger log.Logger
	now    func() time.Time
}

// NewWeather creates a weather fetcher. bus may be nil.
func NewWeather(id string, opts domain.WeatherOptions, getter *httpget.Getter, bus ports.Publisher, logger log.Logger, now func() time.Time) *Weather {
	return &Weather{
		id:     id,
		opts:   opts,
		client: owm.NewClient(getter, opts.BaseURL),
		bus:    bus,
		logger: logger,
		now:    now,
	}
}

func (w *Weather) query() owm.Query {
	return owm.Query{
		LocationID: w.opts.LocationID,
		Location:   w.opts.Location,
		APIKey:     w.opts.APIKey,
		Units:      w.opts.Units,
		Lang:       w.opts.Lang,
		Days:       w.opts.MaxNumberOfDays,
	}
}

// Fetch queries the provider.
func (w *Weather) Fetch(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
	if w.opts.Forecast {
		return w.forecast(ctx)
	}
	return w.current(ctx)
}

func (w *Weather) current(ctx context.Context) domain.FetchResult {
	cur, err := w.client.Current(ctx, w.query())
	if err != nil {
		return domain.Failed(domain.ClassifyError(err, w.now()))
	}

	if w.bus != nil && cur.Condition != "" {
		w.bus.Publish(ports.TopicCurrentWeatherType, w.id, cur.Condition)
	}

	item := domain.Item{
		ID:          "current",
		SortKey:     cur.Date,
		Title:       fmt.Sprintf("%.0f°", cur.Temperature),
		Description: cur.Description,
		Source:      w.opts.Location,
		Weather:     &cur,
	}
	return domain.Ok([]domain.Item{item}, w.now())
}

func (w *Weather) forecast(ctx context.Context) domain.FetchResult {
	days, err := w.client.Forecast(ctx, w.query())
	if err != nil {
		return domain.Failed(domain.ClassifyError(err, w.now()))
	}

	items := make([]domain.Item, len(days))
	for i := range days {
		day := days[i]
		items[i] = domain.Item{
			ID:          day.Date.Format("2006-01-02"),
			SortKey:     day.Date,
			Title:       day.Date.Format("Mon"),
			Description: fmt.Sprintf("%.0f° / %.0f° %s", day.MaxTemp, day.MinTemp, day.Description),
			Source:      w.opts.Location,
			Weather:     &day,
		}
	}
	w.logger.Debug("forecast fetched", log.Int("days", len(items)))
	return domain.Ok(items, w.now())
}
