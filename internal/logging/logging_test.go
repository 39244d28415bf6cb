package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestBuildWriter(t *testing.T) {
	assert.Equal(t, io.Discard, buildWriter(LogConfig{}, &bytes.Buffer{}))

	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "signalbot.log")
	w := buildWriter(LogConfig{Console: true, JSON: true, File: true, FilePath: path, MaxSize: 1}, &console)

	logger := zerolog.New(w)
	logger.Error().Str("pair", "BTC/USD").Msg("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(console.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "BTC/USD", line["pair"])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"message":"hello"`)
}

func TestConsoleWriterLevels(t *testing.T) {
	var out bytes.Buffer
	cw := newConsoleWriter(&out)
	cw.NoColor = true
	logger := zerolog.New(cw)
	logger.Warn().Msg("careful")
	assert.Contains(t, out.String(), "WRN")
	assert.Contains(t, out.String(), "careful")
}

func TestLoggerFromContext(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.New(&out)

	ctx := WithLogger(context.Background(), WithRequestID(logger, "req-1"))
	ctxLogger := FromContext(ctx)
	ctxLogger.Error().Msg("in handler")
	assert.Contains(t, out.String(), `"request_id":"req-1"`)

	// Without a logger nothing is written and nothing panics.
	bgLogger := FromContext(context.Background())
	bgLogger.Error().Msg("dropped")
}

func TestLogAPICallRedactsErrors(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.New(&out).Level(zerolog.DebugLevel)

	LogAPICall(logger, "POST", "chat", 10*time.Millisecond, errors.New("bad key: api_key=sk-abcdefghijklmnopqrstuv"))
	assert.Contains(t, out.String(), "API call failed")
	assert.NotContains(t, out.String(), "abcdefghijklmnop")
}
