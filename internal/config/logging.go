package config

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/bft-labs/ambient/pkg/log"
)

// NewLogger builds the daemon logger at the given level.
func NewLogger(out io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	return log.NewZerolog(out).Level(lvl), nil
}
