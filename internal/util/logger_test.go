package util

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func plain(buf *bytes.Buffer) string {
	return ansiEscape.ReplaceAllString(buf.String(), "")
}

// not parallel: swaps the package logger
func TestWith(t *testing.T) {
	prevLogger, prevDebug := Logger, IsDebug
	defer func() { Logger, IsDebug = prevLogger, prevDebug }()

	Logger = nil
	assert.NotPanics(t, func() { With("run", "x").Info("dropped") })

	var buf bytes.Buffer
	IsDebug = false
	InitLoggerTo(&buf)

	runLog := With("run", "1a2b3c4d")
	runLog.Info("Searching covers", "query", "Frieren")
	runLog.Debug("hidden outside debug mode")

	out := plain(&buf)
	assert.Contains(t, out, "Searching covers")
	assert.Contains(t, out, "run=1a2b3c4d")
	assert.Contains(t, out, "query=Frieren")
	assert.NotContains(t, out, "hidden outside debug mode")

	buf.Reset()
	IsDebug = true
	InitLoggerTo(&buf)
	With("source", "anidb").Debug("Pacing before source")
	assert.Contains(t, plain(&buf), "source=anidb")
}
