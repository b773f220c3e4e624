package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), buf.String())
	buf.Reset()
	return line
}

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithLogger(zerolog.New(&buf))

	l.Warn("fetch failed",
		String("module", "module_2_weather"),
		Int("failures", 3),
		Bool("suppressed", false),
		Duration("after", 1500*time.Millisecond),
		Strings("topics", []string{"SHOW_ALERT"}),
		Err(errors.New("server returned 401")),
	)

	line := decodeLine(t, &buf)
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "fetch failed", line["message"])
	assert.Equal(t, "module_2_weather", line["module"])
	assert.EqualValues(t, 3, line["failures"])
	assert.Equal(t, false, line["suppressed"])
	assert.EqualValues(t, 1500, line["after"])
	assert.Equal(t, []any{"SHOW_ALERT"}, line["topics"])
	assert.Equal(t, "server returned 401", line["error"])
}

func TestZerologAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithLogger(zerolog.New(&buf)).With(String("module", "module_0_clock"))

	l.Info("fetched", Int("items", 1))
	line := decodeLine(t, &buf)
	assert.Equal(t, "module_0_clock", line["module"])
	assert.EqualValues(t, 1, line["items"])
}

func TestZerologAdapter_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.Error("shown")
	assert.Equal(t, "error", decodeLine(t, &buf)["level"])
}

func TestNewZerolog_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))

	zl := NewZerolog(&buf)
	zl.Info().Msg("hello")
	line := decodeLine(t, &buf)
	assert.Equal(t, "hello", line["message"])
	assert.Contains(t, line, "time")
}

func TestNoopLogger(t *testing.T) {
	l := NewNoopLogger()
	l.Info("ignored", String("k", "v"))
	assert.NotNil(t, l.With(Int("n", 1)))
}
