package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"aw-watcher-mpv/internal/config"
)

// LevelFatal marks errors after which the heartbeat loop gives up.
const LevelFatal = slog.LevelError + 4

// levelOff is above every level the watcher emits.
const levelOff = LevelFatal + 4

var levels = map[string]slog.Level{
	"no":    levelOff,
	"fatal": LevelFatal,
	"error": slog.LevelError,
	"warn":  slog.LevelWarn,
	"info":  slog.LevelInfo,
	"debug": slog.LevelDebug,
}

// ParseLevel maps a config level name to a slog level. Unknown names fall
// back to error and report ok=false.
func ParseLevel(name string) (slog.Level, bool) {
	l, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return slog.LevelError, false
	}
	return l, true
}

// Build returns the watcher's logger and a closer for its output. Every record
// carries the agent name so lines are attributable inside mpv's own output.
func Build(cfg config.Config, name string) (*slog.Logger, io.Closer) {
	level, known := ParseLevel(cfg.LogLevel)

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if cfg.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		out = lj
		closer = lj
	}

	logger := NewWithWriter(out, level, cfg.LogJSON).With("agent", name)
	if !known {
		logger.Error("unknown log level, using error instead", "log_level", cfg.LogLevel)
	} else {
		logger.Info("log level set", "log_level", cfg.LogLevel)
	}
	return logger, closer
}

func NewWithWriter(w io.Writer, level slog.Level, json bool) *slog.Logger {
	hOpts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevel}
	if json {
		return slog.New(slog.NewJSONHandler(w, hOpts))
	}
	return slog.New(slog.NewTextHandler(w, hOpts))
}

// Discard is used by tests and by callers that have no logger yet.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: levelOff}))
}

func Fatal(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelFatal, msg, args...)
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	if l, ok := a.Value.Any().(slog.Level); ok && l >= LevelFatal {
		a.Value = slog.StringValue("FATAL")
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
