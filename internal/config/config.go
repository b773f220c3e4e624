// Package config loads the daemon settings and module declarations and
// turns the declarations into immutable module specs.
//
// Values are resolved with the precedence flags > AMBIENT_* environment >
// config file > defaults.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/ambient/internal/domain"
)

// Defaults applied by DefaultConfig.
const (
	DefaultLogLevel        = "info"
	DefaultUnits           = "metric"
	DefaultLanguage        = "en"
	DefaultLocale          = "en-US"
	DefaultTimeFormat      = 24
	DefaultFetchTimeoutCap = 30 * time.Second
	DefaultHTTPTimeout     = 15 * time.Second
)

// Config holds the daemon configuration.
type Config struct {
	LogLevel   string
	Units      string
	Language   string
	Locale     string
	TimeFormat int
	// Timezone is an IANA zone name. Empty uses the host zone.
	Timezone string

	// FetchTimeoutCap bounds every module fetch.
	FetchTimeoutCap time.Duration
	HTTPTimeout     time.Duration

	// LockFile guards against two daemons driving the same display.
	LockFile string

	Modules []ModuleDecl
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		LogLevel:        DefaultLogLevel,
		Units:           DefaultUnits,
		Language:        DefaultLanguage,
		Locale:          DefaultLocale,
		TimeFormat:      DefaultTimeFormat,
		FetchTimeoutCap: DefaultFetchTimeoutCap,
		HTTPTimeout:     DefaultHTTPTimeout,
	}
}

// Validate checks the daemon settings. Module declarations are checked
// separately by BuildSpecs so that one broken module does not stop the
// others.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Units {
	case "metric", "imperial", "standard":
	default:
		return fmt.Errorf("%w: units must be metric, imperial or standard, got %q", domain.ErrInvalidConfig, c.Units)
	}
	if c.TimeFormat != 12 && c.TimeFormat != 24 {
		return fmt.Errorf("%w: time format must be 12 or 24, got %d", domain.ErrInvalidConfig, c.TimeFormat)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.FetchTimeoutCap <= 0 {
		return fmt.Errorf("%w: fetch timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http timeout must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return loadLocation(c.Timezone)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", domain.ErrInvalidConfig, name, err)
	}
	return loc, nil
}

// ParseLevel parses a log level name case-insensitively. An empty name is
// the default level.
func ParseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		name = DefaultLogLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: log level %q", domain.ErrInvalidConfig, name)
	}
	return lvl, nil
}

// configSetter applies configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := parseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// parseDuration accepts a Go duration ("5m") or a bare number of
// milliseconds ("300000").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
