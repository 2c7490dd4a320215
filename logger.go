package livechat

// Logger is the logging surface used by every livechat component.
// Adapt slog, zap or logrus to it; cmd/chat-server ships a slog adapter.
//
// Components tag their lines with WithComponent, so an adapter only needs
// to forward the formatted text:
//
//	type stdLogger struct{}
//
//	func (stdLogger) Infof(format string, args ...interface{}) {
//	    log.Printf("INFO "+format, args...)
//	}
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// Info logs a message as is, without format verbs.
	Info(message string)
}

// NoopLogger discards everything. It is the default for every component.
type NoopLogger struct{}

func (l *NoopLogger) Debugf(_ string, _ ...interface{}) {}
func (l *NoopLogger) Infof(_ string, _ ...interface{})  {}
func (l *NoopLogger) Warnf(_ string, _ ...interface{})  {}
func (l *NoopLogger) Errorf(_ string, _ ...interface{}) {}
func (l *NoopLogger) Info(_ string)                     {}

// componentLogger tags every line with the component that produced it.
type componentLogger struct {
	next   Logger
	prefix string
}

// WithComponent returns a Logger that prefixes every message with "[name] ".
// A nil logger yields a NoopLogger.
func WithComponent(logger Logger, name string) Logger {
	if logger == nil {
		return &NoopLogger{}
	}
	if _, ok := logger.(*NoopLogger); ok {
		return logger
	}
	return &componentLogger{next: logger, prefix: "[" + name + "] "}
}

func (l *componentLogger) Debugf(format string, args ...interface{}) {
	l.next.Debugf(l.prefix+format, args...)
}

func (l *componentLogger) Infof(format string, args ...interface{}) {
	l.next.Infof(l.prefix+format, args...)
}

func (l *componentLogger) Warnf(format string, args ...interface{}) {
	l.next.Warnf(l.prefix+format, args...)
}

func (l *componentLogger) Errorf(format string, args ...interface{}) {
	l.next.Errorf(l.prefix+format, args...)
}

func (l *componentLogger) Info(message string) {
	l.next.Info(l.prefix + message)
}
