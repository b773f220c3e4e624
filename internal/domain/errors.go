package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Domain errors represent error conditions in the ambient domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("ambient: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("ambient: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("ambient: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("ambient: invalid configuration")

	// ErrNoModules is returned when no module survived configuration.
	ErrNoModules = errors.New("ambient: no modules configured")
)

// ErrorKind classifies a fetch failure.
type ErrorKind int

const (
	ErrorNetwork ErrorKind = iota
	ErrorTimeout
	ErrorParse
	ErrorUnauthorized
	ErrorRateLimited
)

// String returns a human-readable representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNetwork:
		return "Network"
	case ErrorTimeout:
		return "Timeout"
	case ErrorParse:
		return "ParseError"
	case ErrorUnauthorized:
		return "Unauthorized"
	case ErrorRateLimited:
		return "RateLimited"
	default:
		return "Unknown"
	}
}

// FetchError is a classified failure of a whole fetch.
type FetchError struct {
	Kind       ErrorKind
	Message    string
	OccurredAt time.Time
	Err        error
}

// NewFetchError creates a FetchError of the given kind.
func NewFetchError(kind ErrorKind, at time.Time, format string, args ...any) *FetchError {
	return &FetchError{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		OccurredAt: at,
	}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Same reports whether two errors describe the same failure, ignoring when
// they occurred.
func (e *FetchError) Same(other *FetchError) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Kind == other.Kind && e.Message == other.Message
}

// ClassifyError maps an arbitrary transport or parse error to a FetchError.
// Errors that already are a *FetchError are returned unchanged.
func ClassifyError(err error, at time.Time) *FetchError {
	if err == nil {
		return nil
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}

	kind := ErrorNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrorTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = ErrorTimeout
	}

	return &FetchError{
		Kind:       kind,
		Message:    err.Error(),
		OccurredAt: at,
		Err:        err,
	}
}

// ConfigErrorKind classifies a configuration failure.
type ConfigErrorKind int

const (
	ConfigMissingRequiredField ConfigErrorKind = iota
	ConfigInvalidValue
)

// String returns a human-readable representation of the config error kind.
func (k ConfigErrorKind) String() string {
	switch k {
	case ConfigMissingRequiredField:
		return "MissingRequiredField"
	case ConfigInvalidValue:
		return "InvalidValue"
	default:
		return "Unknown"
	}
}

// ConfigError reports a configuration problem scoped to one module.
// It is fatal only for that module; other modules still start.
type ConfigError struct {
	Module  string
	Index   int
	Kind    ConfigErrorKind
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("module %s (#%d): %s %s: %s", e.Module, e.Index, e.Kind, e.Field, e.Message)
}

// Unwrap lets callers match any ConfigError with errors.Is(err, ErrInvalidConfig).
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// FilterError describes a single item that could not be parsed or filtered.
// It is always recovered locally by dropping the item.
type FilterError struct {
	ItemID string
	Reason string
}

func (e *FilterError) Error() string {
	if e.ItemID == "" {
		return "drop item: " + e.Reason
	}
	return fmt.Sprintf("drop item %s: %s", e.ItemID, e.Reason)
}
