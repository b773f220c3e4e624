package ambient

import (
	"context"

	"github.com/bft-labs/ambient/internal/config"
	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
	"github.com/bft-labs/ambient/pkg/log"
)

// Re-exported types so embedders never import internal packages.
type (
	// Config is the runtime configuration of an Ambient instance.
	Config = config.Config
	// ModuleDecl is one entry of Config.Modules.
	ModuleDecl = config.ModuleDecl

	// ModuleSpec is a validated module declaration.
	ModuleSpec = domain.ModuleSpec
	// Snapshot is what a renderer sees of one module.
	Snapshot = domain.Snapshot
	// Update is delivered to subscribers when a module's rendered state changes.
	Update = domain.Update
	// Region is one screen position with its modules in stacking order.
	Region = domain.Region
	// Item is a single displayable record.
	Item = domain.Item
	// FetchResult is the outcome of one fetch.
	FetchResult = domain.FetchResult

	// Fetcher produces the items of one module.
	Fetcher = ports.Fetcher
	// FetcherFunc adapts a function to Fetcher.
	FetcherFunc = ports.FetcherFunc
	// HTTPClient is the interface for making HTTP requests.
	HTTPClient = ports.HTTPClient
	// Notification is one event on the notification bus.
	Notification = ports.Notification
	// Alert is the payload of the SHOW_ALERT topic.
	Alert = ports.Alert

	// Logger is the structured logger used by every component.
	Logger = log.Logger
)

// Well-known notification topics.
const (
	TopicModuleError        = ports.TopicModuleError
	TopicNewsFeed           = ports.TopicNewsFeed
	TopicNewsFeedUpdate     = ports.TopicNewsFeedUpdate
	TopicCurrentWeatherType = ports.TopicCurrentWeatherType
	TopicShowAlert          = ports.TopicShowAlert
)

// DefaultConfig returns a Config with every default applied and no modules.
func DefaultConfig() Config {
	return config.DefaultConfig()
}

// State represents the lifecycle state of an Ambient instance.
type State int

const (
	// StateStopped means the instance is not running.
	StateStopped State = iota
	// StateStarting means plugins and modules are being started.
	StateStarting
	// StateRunning means modules are fetching and rotating.
	StateRunning
	// StateStopping means shutdown is in progress.
	StateStopping
	// StateCrashed means start or shutdown failed.
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ReloadEvent is emitted after the configuration was reloaded.
type ReloadEvent struct {
	// Modules is the number of modules running after the reload.
	Modules int
	// Errors lists the module declarations that were rejected.
	Errors []error
}

// EventHandler receives notifications about an Ambient instance.
// Methods are called from internal goroutines and should return quickly.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnModuleUpdate(Update)
	OnReload(ReloadEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// implement only the events you care about.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnModuleUpdate(Update)          {}
func (BaseEventHandler) OnReload(ReloadEvent)           {}

// Plugin extends an Ambient instance. Plugins are initialized in
// registration order when Start is called and shut down in reverse order
// by Stop.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// PluginConfig is handed to every plugin on Initialize.
type PluginConfig struct {
	// ConfigPath is the configuration file the instance was loaded from.
	// Empty when the configuration did not come from a file.
	ConfigPath string
	Logger     log.Logger
	// Reload re-reads the configuration and restarts the modules.
	Reload func(ctx context.Context) error
	// Publish sends a notification on the instance's bus.
	Publish func(topic, sender string, payload any)
}
