package sys

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level above slog.LevelError used by LogFatal.
const levelFatal = slog.LevelError + 4

var (
	levelStyles = map[slog.Level]struct {
		name  string
		color *color.Color
	}{
		slog.LevelDebug: {"DEBUG", color.New(color.FgHiBlack)},
		slog.LevelInfo:  {"INFO", color.New()},
		slog.LevelWarn:  {"WARN", color.New(color.FgYellow)},
		slog.LevelError: {"ERROR", color.New(color.FgRed)},
		levelFatal:      {"FATAL", color.New(color.FgRed, color.Bold)},
	}

	componentColors = map[string]*color.Color{
		"DATABASE":     color.New(),
		"LOADER":       color.New(color.FgBlue),
		"VOICE":        color.New(color.FgMagenta),
		"PLAYER":       color.New(color.FgGreen),
		"PLAYLIST":     color.New(color.FgCyan),
		"RESOLVER":     color.New(color.FgHiBlue),
		"AUTOPLAYLIST": color.New(color.FgHiMagenta),
	}

	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	DefaultTimeFormat = "15:04:05"
	IsSilent          = false
	LogToFile         = false
	Logger            *slog.Logger

	logFile *os.File
	logMu   sync.Mutex
)

func init() {
	InitLogger(false, false)
}

// InitLogger installs the colored handler as the default slog logger. DEBUG=true
// in the environment enables debug tracing of the player and resolver.
func InitLogger(silent bool, saveToFile bool) {
	logMu.Lock()
	defer logMu.Unlock()

	IsSilent = silent
	LogToFile = saveToFile
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("DEBUG"), "true") {
		level = slog.LevelDebug
	}

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var w io.Writer = os.Stdout
	if LogToFile {
		name := GetProjectName() + ".log"
		if exe, err := os.Executable(); err == nil {
			name = filepath.Base(exe) + ".log"
		}
		f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", name, err)
		} else {
			logFile = f
			w = io.MultiWriter(os.Stdout, &stripANSIWriter{w: f})
		}
	}

	Logger = slog.New(&botLogHandler{w: w, silent: silent, level: level, mu: &sync.Mutex{}})
	slog.SetDefault(Logger)
}

func SetSilentMode(silent bool) {
	InitLogger(silent, LogToFile)
}

// GetLogPath is the file the logger mirrors to, empty when it only writes to
// stdout.
func GetLogPath() string {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile == nil {
		return ""
	}
	return logFile.Name()
}

// --- Public Logging API ---

func logf(level slog.Level, component, format string, v ...any) {
	ctx := context.Background()
	if !slog.Default().Enabled(ctx, level) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	if component == "" {
		slog.Log(ctx, level, msg)
		return
	}
	slog.Log(ctx, level, msg, slog.String("component", component))
}

func LogInfo(format string, v ...any)  { logf(slog.LevelInfo, "", format, v...) }
func LogWarn(format string, v ...any)  { logf(slog.LevelWarn, "", format, v...) }
func LogError(format string, v ...any) { logf(slog.LevelError, "", format, v...) }
func LogDebug(format string, v ...any) { logf(slog.LevelDebug, "", format, v...) }

// LogFatal logs and panics; main recovers the panic after deferred cleanup.
func LogFatal(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	slog.Log(context.Background(), levelFatal, msg)
	panic(msg)
}

// Component Loggers

func LogDatabase(format string, v ...any)     { logf(slog.LevelInfo, "database", format, v...) }
func LogLoader(format string, v ...any)       { logf(slog.LevelInfo, "loader", format, v...) }
func LogVoice(format string, v ...any)        { logf(slog.LevelInfo, "voice", format, v...) }
func LogPlayer(format string, v ...any)       { logf(slog.LevelInfo, "player", format, v...) }
func LogPlaylist(format string, v ...any)     { logf(slog.LevelInfo, "playlist", format, v...) }
func LogResolver(format string, v ...any)     { logf(slog.LevelInfo, "resolver", format, v...) }
func LogAutoPlaylist(format string, v ...any) { logf(slog.LevelInfo, "autoplaylist", format, v...) }

// --- Log Handler ---

// botLogHandler prints "time [LEVEL] message", or "time [COMPONENT] message"
// in the component's color. INFO is not labeled on component lines.
type botLogHandler struct {
	w         io.Writer
	silent    bool
	level     slog.Level
	component string
	mu        *sync.Mutex
}

func (h *botLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return !h.silent && level >= h.level
}

func (h *botLogHandler) Handle(_ context.Context, r slog.Record) error {
	if h.silent {
		return nil
	}

	style := levelStyles[slog.LevelDebug]
	for _, lvl := range []slog.Level{levelFatal, slog.LevelError, slog.LevelWarn, slog.LevelInfo} {
		if r.Level >= lvl {
			style = levelStyles[lvl]
			break
		}
	}

	component := h.component
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = strings.ToUpper(a.Value.String())
			return false
		}
		return true
	})

	var b strings.Builder
	b.WriteString(time.Now().Format(DefaultTimeFormat))
	if component != "" {
		if r.Level != slog.LevelInfo {
			b.WriteString(" " + style.color.Sprintf("[%s]", style.name))
		}
		c, ok := componentColors[component]
		if !ok {
			c = color.New(color.FgCyan)
		}
		b.WriteString(" " + colorizeWithResets(c, "["+component+"] "+r.Message))
	} else {
		msg := "[" + style.name + "] " + r.Message
		// Messages that carry their own tag, like "[DEV] ...", print as is.
		if r.Level == slog.LevelInfo && strings.HasPrefix(r.Message, "[") {
			if i := strings.Index(r.Message, "]"); i > 0 && i < 20 {
				msg = r.Message
			}
		}
		b.WriteString(" " + colorizeWithResets(style.color, msg))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *botLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	for _, a := range attrs {
		if a.Key == "component" {
			next.component = strings.ToUpper(a.Value.String())
		}
	}
	return &next
}

func (h *botLogHandler) WithGroup(string) slog.Handler { return h }

// colorizeWithResets colors text that may already contain reset sequences by
// restarting the color after each of them.
func colorizeWithResets(c *color.Color, text string) string {
	const reset = "\x1b[0m"
	if !strings.Contains(text, reset) {
		return c.Sprint(text)
	}
	const marker = "\x00"
	wrapped := c.Sprint(marker)
	i := strings.Index(wrapped, marker)
	if i <= 0 {
		return text
	}
	return c.Sprint(strings.ReplaceAll(text, reset, reset+wrapped[:i]))
}

type stripANSIWriter struct {
	w io.Writer
}

func (s *stripANSIWriter) Write(p []byte) (int, error) {
	if _, err := s.w.Write(ansiPattern.ReplaceAll(p, nil)); err != nil {
		return 0, err
	}
	return len(p), nil
}
