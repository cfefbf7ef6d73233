package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the logging surface used across thingvault. Key-value
// arguments follow log/slog conventions.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// Config selects the level, encoding and destination of log output.
type Config struct {
	Level     string    // debug, info, warn or error; info when empty
	Format    string    // json or text; json when empty
	Output    io.Writer // os.Stderr when nil
	AddSource bool
}

var levelNames = []struct {
	name  string
	level slog.Level
}{
	{"debug", slog.LevelDebug},
	{"info", slog.LevelInfo},
	{"warn", slog.LevelWarn},
	{"warning", slog.LevelWarn},
	{"error", slog.LevelError},
}

func lookupLevel(name string) (slog.Level, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, l := range levelNames {
		if l.name == name {
			return l.level, true
		}
	}
	return 0, false
}

// level is shared by every logger New builds, so a config reload changes
// them all at once.
var level = new(slog.LevelVar)

// New builds a logger. Session tokens and secrets are redacted from its
// output, and records logged with a request context carry request_id.
func New(cfg Config) (Logger, error) {
	lvl := slog.LevelInfo
	if cfg.Level != "" {
		var ok bool
		if lvl, ok = lookupLevel(cfg.Level); !ok {
			return nil, fmt.Errorf("logger: unknown level %q", cfg.Level)
		}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactAttr,
	}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(out, opts)
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}

	level.Set(lvl)
	return &slogLogger{s: slog.New(requestIDHandler{h}), ctx: context.Background()}, nil
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &slogLogger{s: slog.New(slog.DiscardHandler), ctx: context.Background()}
}

// Slog returns the *slog.Logger behind l, for badger and net/http.
// Loggers not built by this package get slog.Default().
func Slog(l Logger) *slog.Logger {
	if sl, ok := l.(*slogLogger); ok {
		return sl.s
	}
	return slog.Default()
}

// SetDefault installs l as the process-wide slog default.
func SetDefault(l Logger) {
	slog.SetDefault(Slog(l))
}

// SetLevel changes the level of every logger New built. Unknown names
// are ignored.
func SetLevel(name string) {
	if lvl, ok := lookupLevel(name); ok {
		level.Set(lvl)
	}
}

// GetLevel returns the name of the current level.
func GetLevel() string {
	cur := level.Level()
	for _, l := range levelNames {
		if l.level == cur {
			return l.name
		}
	}
	return cur.String()
}

// ValidLevel reports whether name is a level New accepts.
func ValidLevel(name string) bool {
	_, ok := lookupLevel(name)
	return ok
}

type slogLogger struct {
	s   *slog.Logger
	ctx context.Context
}

func (l *slogLogger) Debug(msg string, args ...any) { l.s.DebugContext(l.ctx, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.s.InfoContext(l.ctx, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.s.WarnContext(l.ctx, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.s.ErrorContext(l.ctx, msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{s: l.s.With(args...), ctx: l.ctx}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	return &slogLogger{s: l.s, ctx: ctx}
}
