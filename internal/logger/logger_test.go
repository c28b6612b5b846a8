package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewWithWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, false)
	log.Debug("hidden")
	log.Info("shown", "collection", "orders")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "orders")

	buf.Reset()
	NewWithWriter(&buf, true).Debug("debug line")
	assert.Contains(t, buf.String(), "debug line")
}

func TestNewWithWriterDropsEmptyStrings(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, false).Info("msg", "empty", "", "kept", "x")
	assert.NotContains(t, buf.String(), "empty")
	assert.Contains(t, buf.String(), "kept")
}

func TestFormatRFC3339Millis(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 678_900_000, time.FixedZone("x", 3600))
	assert.Equal(t, "2024-01-02T02:04:05.678Z", formatRFC3339Millis(ts))
}
