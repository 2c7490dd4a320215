package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// SlogLogger implements livechat.Logger on top of log/slog.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger creates a JSON logger writing to stderr at the given level
// (debug, info, warn, error).
func NewSlogLogger(level string) *SlogLogger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return &SlogLogger{l: slog.New(handler)}
}

func (s *SlogLogger) Debugf(format string, args ...interface{}) {
	s.l.Debug(fmt.Sprintf(format, args...))
}

func (s *SlogLogger) Infof(format string, args ...interface{}) {
	s.l.Info(fmt.Sprintf(format, args...))
}

func (s *SlogLogger) Warnf(format string, args ...interface{}) {
	s.l.Warn(fmt.Sprintf(format, args...))
}

func (s *SlogLogger) Errorf(format string, args ...interface{}) {
	s.l.Error(fmt.Sprintf(format, args...))
}

func (s *SlogLogger) Info(message string) {
	s.l.Info(message)
}
