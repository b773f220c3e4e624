// Package ambient provides an embeddable runtime for ambient information
// displays.
//
// An Ambient instance owns a set of modules (clock, calendar, weather,
// newsfeed, compliments, alerts and static text). Each module fetches on its
// own schedule, keeps a bounded buffer of items and rotates through them.
// Renderers subscribe to updates and draw whatever they receive; the runtime
// never renders anything itself.
//
// # Basic Usage
//
//	cfg, err := ambient.LoadConfig("/home/pi/.ambient/config.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	a, err := ambient.New(cfg, ambient.WithConfigFile(path))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	updates, cancel := a.Subscribe(32)
//	defer cancel()
//
//	if err := a.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	for u := range updates {
//	    draw(u.Snapshot)
//	}
//
// # Configuration
//
// A [Config] holds global settings and one [ModuleDecl] per module.
// Declarations that fail validation are skipped and reported by
// [Ambient.ConfigErrors]; the remaining modules still run.
//
// # Reloading
//
// [Ambient.Reload] replaces the running modules with a freshly loaded
// configuration. Subscriptions stay attached across a reload. Pass
// [WithLoader] to control where the configuration comes from, or
// [WithConfigFile] to re-read a file with [LoadConfig]. The configwatcher
// plugin calls Reload whenever the file changes:
//
//	import "github.com/bft-labs/ambient/plugins/configwatcher"
//
//	a, err := ambient.New(cfg,
//	    ambient.WithConfigFile(path),
//	    configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()),
//	)
//
// # Custom Modules
//
// A module whose name is not one of the built-in kinds shows its "text" and
// "lines" options. Register a [Fetcher] with [WithFetcher] to give it a
// data source of its own.
//
// # Lifecycle States
//
// An instance is in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping] or [StateCrashed]. Use [Ambient.Status]
// to query the current state.
package ambient
