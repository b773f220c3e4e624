package ambient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bft-labs/ambient/internal/adapters/bus"
	"github.com/bft-labs/ambient/internal/adapters/httpget"
	"github.com/bft-labs/ambient/internal/app"
	"github.com/bft-labs/ambient/internal/config"
	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/modules"
	"github.com/bft-labs/ambient/internal/ports"
	"github.com/bft-labs/ambient/pkg/log"
)

// ErrNoLoader is returned by Reload when the instance has neither a loader
// nor a configuration file to reload from.
var ErrNoLoader = errors.New("ambient: no configuration source to reload from")

// Sentinel errors shared with the internal packages.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrNoModules       = domain.ErrNoModules
)

// Ambient runs a set of information modules and publishes their rendered
// state to subscribers. Use New() to create an instance, then Start().
type Ambient struct {
	opts      options
	logger    log.Logger
	lifecycle *app.Lifecycle
	hub       *app.Hub
	bus       *bus.Bus
	getter    *httpget.Getter
	plugins   []Plugin

	// reloadMu serializes Reload against Start and Stop.
	reloadMu sync.Mutex

	mu      sync.RWMutex
	cfg     Config
	specs   []ModuleSpec
	cfgErrs []error
	orch    *app.Orchestrator
	ctx     context.Context
}

// New creates an instance in StateStopped. Module declarations that fail
// validation are logged and reported by ConfigErrors; they do not make New
// fail. An invalid global setting does.
func New(cfg Config, opts ...Option) (*Ambient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions(&http.Client{Timeout: cfg.HTTPTimeout})
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	a := &Ambient{
		opts:      o,
		logger:    logger,
		lifecycle: app.NewLifecycle(logger, emitter),
		hub:       app.NewHub(),
		bus:       bus.New(bus.WithLogger(logger)),
		getter:    httpget.NewGetter(o.httpClient, logger),
		plugins:   o.plugins,
	}
	a.cfg = cfg
	a.specs, a.cfgErrs = a.buildSpecs(cfg)
	return a, nil
}

// LoadConfig reads path on top of the defaults, applies AMBIENT_*
// environment overrides and validates the result. A missing file yields
// the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := config.DefaultConfig()
	if path != "" && config.FileExists(path) {
		fc, err := config.LoadFileConfig(path)
		if err != nil {
			return Config{}, err
		}
		if err := config.ApplyFileConfig(&cfg, fc, nil); err != nil {
			return Config{}, err
		}
	}
	if err := config.ApplyEnvConfig(&cfg, nil); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (a *Ambient) buildSpecs(cfg Config) ([]ModuleSpec, []error) {
	specs, errs := config.BuildSpecs(cfg)
	for _, err := range errs {
		a.logger.Error("invalid module configuration", log.Err(err))
	}
	return specs, errs
}

// Start initializes plugins and starts every valid module. It returns
// immediately; fetching and rotation run in the background until Stop is
// called or ctx is cancelled.
func (a *Ambient) Start(ctx context.Context) error {
	a.reloadMu.Lock()

	if !a.lifecycle.CanStart() {
		a.reloadMu.Unlock()
		return domain.ErrAlreadyRunning
	}
	if err := a.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		a.reloadMu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.ctx = runCtx
	cfg, specs := a.cfg, a.specs
	a.mu.Unlock()
	a.lifecycle.SetCancel(cancel)

	pluginCfg := PluginConfig{
		ConfigPath: a.opts.configPath,
		Logger:     a.logger,
		Reload:     a.Reload,
		Publish:    a.Publish,
	}
	for _, p := range a.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			a.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			cancel()
			_ = a.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			a.reloadMu.Unlock()
			return err
		}
		a.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	orch := a.newOrchestrator(cfg)
	if err := orch.Start(runCtx, specs); err != nil {
		cancel()
		_ = a.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		a.reloadMu.Unlock()
		a.shutdownPlugins()
		return err
	}
	a.mu.Lock()
	a.orch = orch
	a.mu.Unlock()

	if a.opts.eventHandler != nil {
		updates, unsubscribe := a.hub.Subscribe(0)
		a.lifecycle.AddWorker()
		go func() {
			defer a.lifecycle.WorkerDone()
			defer unsubscribe()
			for {
				select {
				case <-runCtx.Done():
					return
				case u, ok := <-updates:
					if !ok {
						return
					}
					a.opts.eventHandler.OnModuleUpdate(u)
				}
			}
		}()
	}

	err := a.lifecycle.TransitionTo(app.StateRunning, "modules started")
	a.reloadMu.Unlock()
	return err
}

// Stop stops every module and shuts plugins down in reverse order.
// Returns ErrShutdownTimeout if workers did not finish in time.
func (a *Ambient) Stop() error {
	a.reloadMu.Lock()
	if !a.lifecycle.CanStop() {
		a.reloadMu.Unlock()
		return domain.ErrNotRunning
	}
	if err := a.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		a.reloadMu.Unlock()
		return err
	}
	a.mu.Lock()
	orch := a.orch
	a.orch = nil
	a.mu.Unlock()
	// Reload does not touch the modules once the state left Running, and
	// plugins may be blocked in Reload until the lock is released.
	a.reloadMu.Unlock()

	var err error
	if orch != nil {
		err = orch.Stop()
	}

	a.lifecycle.Cancel()
	if waitErr := a.lifecycle.WaitWithTimeout(app.ShutdownTimeout); waitErr != nil {
		err = waitErr
	}

	a.shutdownPlugins()

	if err != nil {
		_ = a.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = a.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

func (a *Ambient) shutdownPlugins() {
	ctx := context.Background()
	for i := len(a.plugins) - 1; i >= 0; i-- {
		p := a.plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			a.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			continue
		}
		a.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
	}
}

// Reload obtains a new configuration and replaces the running modules with
// the ones it declares. Subscribers stay attached. When the new
// configuration is unusable the running modules are left untouched.
func (a *Ambient) Reload(ctx context.Context) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	cfg, err := a.load()
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	specs, errs := a.buildSpecs(cfg)
	if len(specs) == 0 {
		return fmt.Errorf("reload: %w", domain.ErrNoModules)
	}

	if a.lifecycle.State() != app.StateRunning {
		a.mu.Lock()
		a.cfg, a.specs, a.cfgErrs = cfg, specs, errs
		a.mu.Unlock()
		return nil
	}

	a.mu.RLock()
	old, runCtx := a.orch, a.ctx
	prevCfg, prevSpecs := a.cfg, a.specs
	a.mu.RUnlock()

	if old != nil {
		if err := old.Stop(); err != nil {
			a.logger.Warn("stop previous modules", log.Err(err))
		}
	}

	next := a.newOrchestrator(cfg)
	if err := next.Start(runCtx, specs); err != nil {
		a.logger.Error("reloaded modules failed to start, restoring previous configuration", log.Err(err))
		prev := a.newOrchestrator(prevCfg)
		if restoreErr := prev.Start(runCtx, prevSpecs); restoreErr != nil {
			a.logger.Error("restore previous modules", log.Err(restoreErr))
		}
		a.mu.Lock()
		a.orch = prev
		a.mu.Unlock()
		return fmt.Errorf("reload: %w", err)
	}

	a.mu.Lock()
	a.cfg, a.specs, a.cfgErrs = cfg, specs, errs
	a.orch = next
	a.mu.Unlock()

	a.logger.Info("configuration reloaded",
		log.Int("modules", len(specs)),
		log.Int("rejected", len(errs)),
	)
	if a.opts.eventHandler != nil {
		a.opts.eventHandler.OnReload(ReloadEvent{Modules: len(specs), Errors: errs})
	}
	return nil
}

func (a *Ambient) load() (Config, error) {
	switch {
	case a.opts.loader != nil:
		cfg, err := a.opts.loader()
		if err != nil {
			return Config{}, err
		}
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
		return cfg, nil
	case a.opts.configPath != "":
		return LoadConfig(a.opts.configPath)
	default:
		return Config{}, ErrNoLoader
	}
}

func (a *Ambient) newOrchestrator(cfg Config) *app.Orchestrator {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	deps := modules.Deps{
		Getter:   a.getter,
		Bus:      a.bus,
		Logger:   a.logger,
		Location: loc,
		Now:      a.opts.now,
	}
	return app.NewOrchestrator(app.OrchestratorConfig{
		Factory: func(spec domain.ModuleSpec) (ports.Fetcher, error) {
			if f, ok := a.opts.fetchers[spec.Name]; ok {
				return f, nil
			}
			return modules.New(spec, deps)
		},
		Logger:    a.logger,
		Publisher: a.bus,
		Hub:       a.hub,
		Now:       a.opts.now,
	})
}

// Status returns the current lifecycle state.
func (a *Ambient) Status() State {
	return convertState(a.lifecycle.State())
}

// Subscribe returns a channel of module updates and a function that
// cancels the subscription. Subscriptions survive Reload. A subscriber
// that falls behind loses its oldest pending update.
func (a *Ambient) Subscribe(buffer int) (<-chan Update, func()) {
	return a.hub.Subscribe(buffer)
}

// Snapshots returns every running module's snapshot in layout order.
func (a *Ambient) Snapshots() []Snapshot {
	if orch := a.current(); orch != nil {
		return orch.Snapshots()
	}
	return nil
}

// Layout groups the running modules by screen region.
func (a *Ambient) Layout() []Region {
	if orch := a.current(); orch != nil {
		return orch.Layout()
	}
	return nil
}

// Refresh triggers an immediate fetch on every idle module and returns the
// number of fetches started.
func (a *Ambient) Refresh(ctx context.Context) int {
	if orch := a.current(); orch != nil {
		return orch.Refresh(ctx)
	}
	return 0
}

// Publish sends a notification on the instance's bus, e.g. an Alert on
// TopicShowAlert.
func (a *Ambient) Publish(topic, sender string, payload any) {
	a.bus.Publish(topic, sender, payload)
}

// Specs returns the validated module specs of the current configuration.
func (a *Ambient) Specs() []ModuleSpec {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]ModuleSpec(nil), a.specs...)
}

// ConfigErrors returns the module declarations rejected by validation and
// the modules whose fetcher could not be built.
func (a *Ambient) ConfigErrors() []error {
	a.mu.RLock()
	errs := append([]error(nil), a.cfgErrs...)
	orch := a.orch
	a.mu.RUnlock()
	if orch != nil {
		errs = append(errs, orch.Skipped()...)
	}
	return errs
}

func (a *Ambient) current() *app.Orchestrator {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.orch
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interface.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
