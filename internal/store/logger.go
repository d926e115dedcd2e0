package store

import (
	"fmt"
	"log/slog"
	"strings"
)

// badgerLogger forwards badger's printf-style logging to slog. Badger's info
// chatter goes to debug so a normal run only shows its warnings.
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(l *slog.Logger) *badgerLogger {
	return &badgerLogger{logger: l.With("component", "badger")}
}

func (b *badgerLogger) Errorf(format string, args ...any) {
	b.logger.Error(line(format, args))
}

func (b *badgerLogger) Warningf(format string, args ...any) {
	b.logger.Warn(line(format, args))
}

func (b *badgerLogger) Infof(format string, args ...any) {
	b.logger.Debug(line(format, args))
}

func (b *badgerLogger) Debugf(format string, args ...any) {
	b.logger.Debug(line(format, args))
}

func line(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
