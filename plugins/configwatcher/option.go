package configwatcher

import "github.com/bft-labs/ambient/pkg/ambient"

// WithConfigWatcher returns an ambient Option that reloads the instance
// whenever its configuration file changes. The instance needs a file to
// watch, set with ambient.WithConfigFile.
//
// Usage:
//
//	a, err := ambient.New(cfg,
//	    ambient.WithConfigFile(path),
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        DebounceDelay: 500 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) ambient.Option {
	return ambient.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher returns an ambient Option that enables config
// watching with default settings.
func WithDefaultConfigWatcher() ambient.Option {
	return WithConfigWatcher(DefaultConfig())
}
