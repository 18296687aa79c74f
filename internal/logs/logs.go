// Package logs provides test-log sinks for the driver.
//
// Test-log messages are the driver's report of what each record did. They
// are separate from diagnostic slog output, although Slog forwards them to a
// slog.Logger so a console run shows both in one stream.
package logs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/record"
)

// Slog writes test-log messages to a slog.Logger.
type Slog struct {
	logger *slog.Logger
}

// NewSlog creates a sink over logger. A nil logger uses slog.Default().
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

// LogMessage logs message at the level matching kind.
func (s *Slog) LogMessage(ctx context.Context, logID, message, detail string, kind record.MessageType) error {
	attrs := []any{"log", logID, "type", string(kind)}
	if detail != "" {
		attrs = append(attrs, "detail", detail)
	}
	s.logger.Log(ctx, Level(kind), message, attrs...)
	return nil
}

// Level maps a message type onto a slog level.
func Level(kind record.MessageType) slog.Level {
	switch kind {
	case record.MessageFailed:
		return slog.LevelError
	case record.MessageWarning:
		return slog.LevelWarn
	case record.MessageDebug:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Multi fans each message out to every sink. All sinks are called even when
// one fails; the errors are joined.
type Multi []driver.LogService

// LogMessage implements driver.LogService.
func (m Multi) LogMessage(ctx context.Context, logID, message, detail string, kind record.MessageType) error {
	var errs []error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.LogMessage(ctx, logID, message, detail, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every message.
type Discard struct{}

// LogMessage implements driver.LogService.
func (Discard) LogMessage(context.Context, string, string, string, record.MessageType) error {
	return nil
}
