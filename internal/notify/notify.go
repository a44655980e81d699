// Package notify delivers operator alerts.
package notify

import (
	"fmt"
	"log/slog"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Log writes alerts to the process log. Used when Telegram is not configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Send(msg string) {
	l.logger.Info("🔔 Notification", slog.String("message", msg))
}

func (l *Log) Sendf(format string, args ...any) { l.Send(fmt.Sprintf(format, args...)) }
