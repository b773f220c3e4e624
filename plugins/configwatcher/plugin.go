// Package configwatcher reloads an ambient instance when its configuration
// file changes on disk.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/ambient/pkg/ambient"
	"github.com/bft-labs/ambient/pkg/log"
)

// Sender is the sender name of alerts published by the plugin.
const Sender = "configwatcher"

// Plugin watches the configuration file and calls Reload after it settled.
type Plugin struct {
	debounceDelay    time.Duration
	retryInterval    time.Duration
	maxRetryInterval time.Duration
	maxAttempts      int

	path    string
	logger  log.Logger
	reload  func(ctx context.Context) error
	publish func(topic, sender string, payload any)

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// DebounceDelay is how long the file must stay quiet before reloading.
	// Default: 250 milliseconds
	DebounceDelay time.Duration

	// RetryInterval is the first delay between failed reload attempts.
	// It doubles after every failure up to MaxRetryInterval.
	// Default: 1 second
	RetryInterval time.Duration

	// MaxRetryInterval caps the delay between attempts.
	// Default: 30 seconds
	MaxRetryInterval time.Duration

	// MaxAttempts is the number of reload attempts per change. After the
	// last failure an alert is published and the plugin waits for the
	// next change.
	// Default: 3
	MaxAttempts int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay:    250 * time.Millisecond,
		RetryInterval:    time.Second,
		MaxRetryInterval: 30 * time.Second,
		MaxAttempts:      3,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = def.DebounceDelay
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if cfg.MaxRetryInterval < cfg.RetryInterval {
		cfg.MaxRetryInterval = max(def.MaxRetryInterval, cfg.RetryInterval)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	return &Plugin{
		debounceDelay:    cfg.DebounceDelay,
		retryInterval:    cfg.RetryInterval,
		maxRetryInterval: cfg.MaxRetryInterval,
		maxAttempts:      cfg.MaxAttempts,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching cfg.ConfigPath. Without a path, or when the
// file system cannot be watched, the plugin logs a warning and stays idle.
func (p *Plugin) Initialize(ctx context.Context, cfg ambient.PluginConfig) error {
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	p.reload = cfg.Reload
	p.publish = cfg.Publish

	if cfg.ConfigPath == "" || cfg.Reload == nil {
		p.logger.Warn("config watcher disabled: no configuration file")
		return nil
	}
	path, err := filepath.Abs(cfg.ConfigPath)
	if err != nil {
		path = filepath.Clean(cfg.ConfigPath)
	}
	p.path = path

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Warn("config watcher disabled: create watcher", log.Err(err))
		return nil
	}
	// Editors replace files by renaming, so the directory is watched.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		p.logger.Warn("config watcher disabled: watch directory",
			log.String("dir", filepath.Dir(path)),
			log.Err(err))
		return nil
	}
	p.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	p.logger.Info("config watcher started", log.String("path", path))
	return nil
}

// Shutdown stops the watcher and waits for an in-progress reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	if p.watcher != nil {
		err := p.watcher.Close()
		p.watcher = nil
		return err
	}
	return nil
}

func (p *Plugin) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != p.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	debounce := time.NewTimer(p.debounceDelay)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if !p.relevant(event) {
				continue
			}
			p.logger.Debug("config file changed", log.String("op", event.Op.String()))
			debounce.Reset(p.debounceDelay)

		case <-debounce.C:
			if p.reloadWithRetry(ctx) {
				debounce.Reset(p.debounceDelay)
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

// reloadWithRetry reloads until it succeeds, the attempts run out or the
// file changes again. It reports whether a new change interrupted it.
func (p *Plugin) reloadWithRetry(ctx context.Context) bool {
	backoff := newBackoff(p.retryInterval, p.maxRetryInterval)

	for attempt := 1; ; attempt++ {
		err := p.reload(ctx)
		if err == nil {
			if attempt > 1 {
				p.logger.Info("configuration reloaded after retries", log.Int("attempts", attempt))
			} else {
				p.logger.Info("configuration reloaded")
			}
			return false
		}
		if ctx.Err() != nil {
			return false
		}

		p.logger.Error("reload failed",
			log.Int("attempt", attempt),
			log.Err(err))
		if attempt >= p.maxAttempts {
			p.alert(err)
			return false
		}

		wait := time.NewTimer(backoff.next())
		for waiting := true; waiting; {
			select {
			case <-ctx.Done():
				wait.Stop()
				return false
			case <-wait.C:
				waiting = false
			case event, ok := <-p.watcher.Events:
				if !ok {
					wait.Stop()
					return false
				}
				if p.relevant(event) {
					wait.Stop()
					return true
				}
			}
		}
	}
}

func (p *Plugin) alert(err error) {
	if p.publish == nil {
		return
	}
	p.publish(ambient.TopicShowAlert, Sender, ambient.Alert{
		Title:   "Configuration not reloaded",
		Message: err.Error(),
	})
}

var _ ambient.Plugin = (*Plugin)(nil)
