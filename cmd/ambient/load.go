package main

import (
	"fmt"

	"github.com/bft-labs/ambient/internal/config"
)

// fileLoader resolves the configuration with the precedence
// flags > AMBIENT_* environment > file > defaults. It is re-run on reload,
// so flags keep winning over an edited file.
type fileLoader struct {
	// base holds the defaults with flag values applied.
	base     config.Config
	path     string
	explicit bool
	changed  map[string]bool
}

func (l *fileLoader) load() (config.Config, error) {
	cfg := l.base
	cfg.Modules = nil

	switch {
	case l.path != "" && config.FileExists(l.path):
		fc, err := config.LoadFileConfig(l.path)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := config.ApplyFileConfig(&cfg, fc, l.changed); err != nil {
			return config.Config{}, err
		}
	case l.explicit:
		return config.Config{}, fmt.Errorf("load config: %s does not exist", l.path)
	}

	if err := config.ApplyEnvConfig(&cfg, l.changed); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// configPath returns the file to watch for changes, or "" when there is none.
func (l *fileLoader) configPath() string {
	if l.path != "" && config.FileExists(l.path) {
		return l.path
	}
	return ""
}
