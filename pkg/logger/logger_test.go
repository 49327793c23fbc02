package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: zerolog.InfoLevel, Output: &buf})

	l.Info().Str("request_id", "abc").Msg("request processed")

	out := buf.String()
	assert.Contains(t, out, `"message":"request processed"`)
	assert.Contains(t, out, `"request_id":"abc"`)
	assert.Contains(t, out, `"time":`)
}

func TestNewFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: zerolog.WarnLevel, Output: &buf})

	l.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	l.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}
