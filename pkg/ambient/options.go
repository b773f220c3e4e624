package ambient

import (
	"net/http"
	"time"
)

// Option configures optional behavior of Ambient.
type Option func(*options)

// Loader produces a fresh configuration. It is called by Reload.
type Loader func() (Config, error)

type options struct {
	httpClient   HTTPClient
	logger       Logger
	eventHandler EventHandler
	plugins      []Plugin
	fetchers     map[string]Fetcher
	loader       Loader
	configPath   string
	now          func() time.Time
}

func defaultOptions(client *http.Client) options {
	return options{
		httpClient: client,
		fetchers:   make(map[string]Fetcher),
	}
}

// WithHTTPClient sets the HTTP client used by every network module.
// If not provided, a client with Config.HTTPTimeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for lifecycle, update and reload events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when Ambient starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithFetcher serves every module declared under name with f instead of
// the built-in fetcher of its kind. Use it for third-party modules.
func WithFetcher(name string, f Fetcher) Option {
	return func(o *options) {
		o.fetchers[name] = f
	}
}

// WithLoader sets the function Reload uses to obtain a new configuration.
func WithLoader(loader Loader) Option {
	return func(o *options) {
		o.loader = loader
	}
}

// WithConfigFile records the file the configuration was read from. When no
// loader is set, Reload reads it with LoadConfig.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithClock overrides the time source of every module.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
