package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bft-labs/ambient/internal/config"
	"github.com/bft-labs/ambient/pkg/ambient"
	"github.com/bft-labs/ambient/pkg/log"
	"github.com/bft-labs/ambient/plugins/configwatcher"
)

// run starts the daemon and blocks until SIGINT or SIGTERM.
func (c *cli) run(cmd *cobra.Command) error {
	l := c.loader(cmd)
	cfg, err := l.load()
	if err != nil {
		return err
	}

	zl, err := config.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	zl.Info().
		Str("config", l.configPath()).
		Str("units", cfg.Units).
		Str("timezone", cfg.Timezone).
		Int("modules", len(cfg.Modules)).
		Msg("configuration")

	if cfg.LockFile != "" {
		lock, err := acquireLock(cfg.LockFile)
		if err != nil {
			return err
		}
		defer func() { _ = lock.Unlock() }()
	}

	opts := []ambient.Option{
		ambient.WithLogger(log.NewZerologAdapterWithLogger(zl)),
		ambient.WithLoader(l.load),
	}
	if path := l.configPath(); path != "" {
		opts = append(opts,
			ambient.WithConfigFile(path),
			configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()),
		)
	}

	a, err := ambient.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("create ambient: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	updates, unsubscribe := a.Subscribe(64)
	defer unsubscribe()
	go logUpdates(ctx, updates, zl)

	reloadOnHangup(ctx, a, zl)

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start ambient: %w", err)
	}

	<-ctx.Done()
	zl.Info().Msg("received signal, stopping...")

	if err := a.Stop(); err != nil {
		return fmt.Errorf("stop ambient: %w", err)
	}
	return nil
}

func acquireLock(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another ambient instance is already running")
	}
	return lock, nil
}

// reloadOnHangup reloads the configuration on SIGHUP.
func reloadOnHangup(ctx context.Context, a *ambient.Ambient, zl zerolog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := a.Reload(ctx); err != nil {
					zl.Error().Err(err).Msg("reload failed")
				}
			}
		}
	}()
}

// logUpdates writes one log line per module update until ctx is done.
func logUpdates(ctx context.Context, updates <-chan ambient.Update, zl zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			snap := u.Snapshot
			ev := zl.Info().
				Str("module", u.ModuleID).
				Str("position", string(snap.Position)).
				Int("total", snap.Total)
			if snap.Header != "" {
				ev = ev.Str("header", snap.Header)
			}
			if snap.Error != nil {
				ev = ev.Str("error", snap.Error.Message)
			}
			lines := make([]string, 0, len(snap.Visible))
			for _, it := range snap.Visible {
				lines = append(lines, itemLine(it))
			}
			ev.Str("visible", strings.Join(lines, " | ")).Msg("update")
		}
	}
}
