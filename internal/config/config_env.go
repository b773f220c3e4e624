package config

import "os"

// ApplyEnvConfig applies configuration from environment variables (AMBIENT_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("log-level", os.Getenv("AMBIENT_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("units", os.Getenv("AMBIENT_UNITS"), &cfg.Units)
	s.setString("language", os.Getenv("AMBIENT_LANGUAGE"), &cfg.Language)
	s.setString("locale", os.Getenv("AMBIENT_LOCALE"), &cfg.Locale)
	s.setString("timezone", os.Getenv("AMBIENT_TIMEZONE"), &cfg.Timezone)
	s.setString("lock-file", os.Getenv("AMBIENT_LOCK_FILE"), &cfg.LockFile)

	if err := s.setIntFromString("time-format", os.Getenv("AMBIENT_TIME_FORMAT"), &cfg.TimeFormat); err != nil {
		return err
	}
	if err := s.setDuration("fetch-timeout", os.Getenv("AMBIENT_FETCH_TIMEOUT"), &cfg.FetchTimeoutCap); err != nil {
		return err
	}
	if err := s.setDuration("http-timeout", os.Getenv("AMBIENT_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	return nil
}
