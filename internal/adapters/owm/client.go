// Package owm talks to the OpenWeatherMap 2.5 API.
package owm

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bft-labs/ambient/internal/adapters/httpget"
	"github.com/bft-labs/ambient/internal/domain"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

// Query selects the location and presentation of a request.
type Query struct {
	LocationID string
	Location   string
	APIKey     string
	Units      string
	Lang       string
	// Days bounds the forecast. 0 returns every day the API covers.
	Days int
}

// Client fetches current conditions and forecasts.
type Client struct {
	getter  *httpget.Getter
	baseURL string
	now     func() time.Time
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(getter *httpget.Getter, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{getter: getter, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

type condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type mainBlock struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Humidity  float64 `json:"humidity"`
}

type windBlock struct {
	Speed float64 `json:"speed"`
	Deg   float64 `json:"deg"`
}

type precipitation struct {
	OneHour   float64 `json:"1h"`
	ThreeHour float64 `json:"3h"`
}

func (p *precipitation) amount() float64 {
	if p == nil {
		return 0
	}
	if p.OneHour > 0 {
		return p.OneHour
	}
	return p.ThreeHour
}

type currentResponse struct {
	Weather []condition    `json:"weather"`
	Main    *mainBlock     `json:"main"`
	Wind    windBlock      `json:"wind"`
	Rain    *precipitation `json:"rain"`
	Snow    *precipitation `json:"snow"`
	Dt      int64          `json:"dt"`
	Sys     struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Timezone int `json:"timezone"`
}

type forecastResponse struct {
	List []struct {
		Dt      int64          `json:"dt"`
		Main    mainBlock      `json:"main"`
		Weather []condition    `json:"weather"`
		Wind    windBlock      `json:"wind"`
		Rain    *precipitation `json:"rain"`
		Snow    *precipitation `json:"snow"`
	} `json:"list"`
	City struct {
		Timezone int   `json:"timezone"`
		Sunrise  int64 `json:"sunrise"`
		Sunset   int64 `json:"sunset"`
	} `json:"city"`
}

// Current returns the current conditions.
func (c *Client) Current(ctx context.Context, q Query) (domain.Weather, error) {
	body, err := c.getter.Get(ctx, c.endpoint("weather", q), nil)
	if err != nil {
		return domain.Weather{}, err
	}

	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Weather{}, domain.NewFetchError(domain.ErrorParse, c.now(), "decode current weather: %v", err)
	}
	if resp.Main == nil || len(resp.Weather) == 0 {
		return domain.Weather{}, domain.NewFetchError(domain.ErrorParse, c.now(), "current weather response without conditions")
	}

	zone := time.FixedZone("", resp.Timezone)
	w := resp.Weather[0]
	return domain.Weather{
		Date:          time.Unix(resp.Dt, 0).In(zone),
		Condition:     WeatherType(w.Icon),
		Description:   w.Description,
		Temperature:   resp.Main.Temp,
		FeelsLike:     resp.Main.FeelsLike,
		MinTemp:       resp.Main.TempMin,
		MaxTemp:       resp.Main.TempMax,
		Humidity:      resp.Main.Humidity,
		WindSpeed:     resp.Wind.Speed,
		WindDirection: resp.Wind.Deg,
		Precipitation: resp.Rain.amount() + resp.Snow.amount(),
		Sunrise:       time.Unix(resp.Sys.Sunrise, 0).In(zone),
		Sunset:        time.Unix(resp.Sys.Sunset, 0).In(zone),
	}, nil
}

// Forecast returns one entry per local day, folded from the 3-hourly
// forecast. Each day takes the lowest minimum, the highest maximum, the
// summed precipitation and the condition reported closest to noon.
func (c *Client) Forecast(ctx context.Context, q Query) ([]domain.Weather, error) {
	body, err := c.getter.Get(ctx, c.endpoint("forecast", q), nil)
	if err != nil {
		return nil, err
	}

	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewFetchError(domain.ErrorParse, c.now(), "decode forecast: %v", err)
	}

	zone := time.FixedZone("", resp.City.Timezone)
	type day struct {
		w        domain.Weather
		noonDist time.Duration
	}
	days := make(map[string]*day)
	var order []string

	for _, e := range resp.List {
		if len(e.Weather) == 0 {
			continue
		}
		at := time.Unix(e.Dt, 0).In(zone)
		key := at.Format("2006-01-02")
		noon := time.Date(at.Year(), at.Month(), at.Day(), 12, 0, 0, 0, zone)
		dist := at.Sub(noon)
		if dist < 0 {
			dist = -dist
		}

		d, ok := days[key]
		if !ok {
			d = &day{
				w: domain.Weather{
					Date:    time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, zone),
					MinTemp: e.Main.TempMin,
					MaxTemp: e.Main.TempMax,
				},
				noonDist: -1,
			}
			days[key] = d
			order = append(order, key)
		}

		d.w.MinTemp = min(d.w.MinTemp, e.Main.TempMin)
		d.w.MaxTemp = max(d.w.MaxTemp, e.Main.TempMax)
		d.w.Precipitation += e.Rain.amount() + e.Snow.amount()

		if d.noonDist < 0 || dist < d.noonDist {
			d.noonDist = dist
			d.w.Condition = WeatherType(e.Weather[0].Icon)
			d.w.Description = e.Weather[0].Description
			d.w.Temperature = e.Main.Temp
			d.w.FeelsLike = e.Main.FeelsLike
			d.w.Humidity = e.Main.Humidity
			d.w.WindSpeed = e.Wind.Speed
			d.w.WindDirection = e.Wind.Deg
		}
	}

	sort.Strings(order)
	out := make([]domain.Weather, 0, len(order))
	for _, key := range order {
		out = append(out, days[key].w)
	}
	if q.Days > 0 && len(out) > q.Days {
		out = out[:q.Days]
	}
	return out, nil
}

func (c *Client) endpoint(path string, q Query) string {
	v := url.Values{}
	if q.LocationID != "" {
		v.Set("id", q.LocationID)
	} else if q.Location != "" {
		v.Set("q", q.Location)
	}
	if q.Units != "" {
		v.Set("units", q.Units)
	}
	if q.Lang != "" {
		v.Set("lang", q.Lang)
	}
	v.Set("appid", q.APIKey)
	return c.baseURL + "/" + path + "?" + v.Encode()
}

var iconTypes = map[string]string{
	"01d": "day_sunny",
	"02d": "day_cloudy",
	"03d": "cloudy",
	"04d": "cloudy_windy",
	"09d": "showers",
	"10d": "rain",
	"11d": "thunderstorm",
	"13d": "snow",
	"50d": "fog",
	"01n": "night_clear",
	"02n": "night_cloudy",
	"03n": "night_cloudy",
	"04n": "night_cloudy",
	"09n": "night_showers",
	"10n": "night_rain",
	"11n": "night_thunderstorm",
	"13n": "night_snow",
	"50n": "night_alt_cloudy_windy",
}

// WeatherType maps an OpenWeatherMap icon code to the condition type
// broadcast to other modules, e.g. "10d" to "rain".
func WeatherType(icon string) string {
	if t, ok := iconTypes[icon]; ok {
		return t
	}
	return ""
}
