package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations to keep the
// file format friendly.
type FileConfig struct {
	LogLevel     string       `toml:"log_level" yaml:"log_level"`
	Units        string       `toml:"units" yaml:"units"`
	Language     string       `toml:"language" yaml:"language"`
	Locale       string       `toml:"locale" yaml:"locale"`
	TimeFormat   int          `toml:"time_format" yaml:"time_format"`
	Timezone     string       `toml:"timezone" yaml:"timezone"`
	FetchTimeout string       `toml:"fetch_timeout" yaml:"fetch_timeout"`
	HTTPTimeout  string       `toml:"http_timeout" yaml:"http_timeout"`
	LockFile     string       `toml:"lock_file" yaml:"lock_file"`
	Modules      []ModuleDecl `toml:"modules" yaml:"modules"`
}

// ModuleDecl is one entry of the ordered module list. Config holds the
// kind-specific options with their original camelCase names; unknown keys
// are ignored.
type ModuleDecl struct {
	Module   string         `toml:"module" yaml:"module"`
	Position string         `toml:"position" yaml:"position"`
	Header   string         `toml:"header" yaml:"header"`
	Disabled bool           `toml:"disabled" yaml:"disabled"`
	Config   map[string]any `toml:"config" yaml:"config"`
}

// LoadFileConfig reads a config file. The format is chosen by extension:
// .yaml and .yml are YAML, anything else is TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, err
	}
	fc, err := DecodeFileConfig(b, filepath.Ext(path))
	if err != nil {
		return FileConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return fc, nil
}

// DecodeFileConfig parses data in the format named by ext.
func DecodeFileConfig(data []byte, ext string) (FileConfig, error) {
	var fc FileConfig
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fc, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, &fc); err != nil {
			return fc, fmt.Errorf("decode toml: %w", err)
		}
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.ambient/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".ambient", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("units", fc.Units, &cfg.Units)
	s.setString("language", fc.Language, &cfg.Language)
	s.setString("locale", fc.Locale, &cfg.Locale)
	s.setString("timezone", fc.Timezone, &cfg.Timezone)
	s.setString("lock-file", fc.LockFile, &cfg.LockFile)
	s.setInt("time-format", fc.TimeFormat, &cfg.TimeFormat)

	if err := s.setDuration("fetch-timeout", fc.FetchTimeout, &cfg.FetchTimeoutCap); err != nil {
		return err
	}
	if err := s.setDuration("http-timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	cfg.Modules = fc.Modules
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
