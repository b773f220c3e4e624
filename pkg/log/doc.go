// Package log provides the logging abstraction used across ambient.
//
// Components log through the [Logger] interface with structured fields.
// A zerolog-backed implementation is provided for the daemon and a no-op
// logger for tests and embedding.
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	logger.Info("module updated", log.String("module", id), log.Int("items", n))
//
// Implement [Logger] to route ambient's logs into your own logging stack.
package log
