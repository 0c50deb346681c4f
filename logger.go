package cms

import "github.com/sirupsen/logrus"

// logrusLogger adapts *logrus.Entry to the engine's Logger interface,
// grounded in the field-and-level conventions of evalgo-org-eve's
// common/logger.go (service-scoped structured logger, json or text
// formatter, WithFields-style contextual loggers).
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps a *logrus.Logger as a Logger, tagging every record
// with service/version fields the way evalgo-org-eve's LoggerConfig does.
func NewLogrusLogger(l *logrus.Logger, service, version string) Logger {
	fields := logrus.Fields{}
	if service != "" {
		fields["service"] = service
	}
	if version != "" {
		fields["version"] = version
	}
	return &logrusLogger{entry: l.WithFields(fields)}
}

func (l *logrusLogger) Debug(msg string, fields map[string]any) {
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, fields map[string]any) {
	l.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, fields map[string]any) {
	l.entry.WithFields(logrus.Fields(fields)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, fields map[string]any) {
	l.entry.WithFields(logrus.Fields(fields)).Error(msg)
}

func (l *logrusLogger) With(fields map[string]any) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// NewTestLogger returns a Logger backed by a fresh logrus.Logger (writing
// to stderr), handy for unit tests that need a non-nil Logger.
func NewTestLogger() Logger {
	l := logrus.New()
	return NewLogrusLogger(l, "", "")
}
