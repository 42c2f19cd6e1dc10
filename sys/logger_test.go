package sys

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotLogHandler(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	var buf bytes.Buffer
	log := slog.New(&botLogHandler{w: &buf, level: slog.LevelInfo, mu: &sync.Mutex{}})

	log.Info("queued", slog.String("component", "player"))
	log.Warn("slow", slog.String("component", "resolver"))
	log.Info("[DEV] tagged")
	log.Error("broken")
	log.Debug("hidden")
	log.With("component", "voice").Info("joined")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	wants := []string{
		" [PLAYER] queued",
		" [WARN] [RESOLVER] slow",
		" [DEV] tagged",
		" [ERROR] broken",
		" [VOICE] joined",
	}
	for i, want := range wants {
		assert.True(t, strings.HasSuffix(lines[i], want), "line %d: %q", i, lines[i])
	}
}

func TestBotLogHandlerDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	h := &botLogHandler{w: &buf, level: slog.LevelDebug, mu: &sync.Mutex{}}
	slog.New(h).Debug("tracing")
	assert.Contains(t, buf.String(), "[DEBUG] tracing")

	silent := &botLogHandler{w: &buf, silent: true, level: slog.LevelDebug, mu: &sync.Mutex{}}
	assert.False(t, silent.Enabled(t.Context(), slog.LevelError))
}

func TestColorizeWithResets(t *testing.T) {
	red := color.New(color.FgRed)
	red.EnableColor()
	assert.Equal(t, "\x1b[31ma\x1b[0m\x1b[31mb\x1b[0m", colorizeWithResets(red, "a\x1b[0mb"))
	assert.Equal(t, "\x1b[31mplain\x1b[0m", colorizeWithResets(red, "plain"))
}

func TestStripANSIWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &stripANSIWriter{w: &buf}
	in := []byte("\x1b[31m[ERROR] boom\x1b[0m\n")
	n, err := w.Write(in)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	assert.Equal(t, "[ERROR] boom\n", buf.String())
}
