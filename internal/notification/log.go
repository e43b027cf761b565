package notification

import (
	"context"
	"log/slog"
)

// LogSink writes messages to the logger instead of sending them.
// Used when SMTP is not configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, to, subject, html string) error {
	s.logger.InfoContext(ctx, "email not sent, smtp disabled", "to", to, "subject", subject)
	s.logger.DebugContext(ctx, "email body", "to", to, "html", html)
	return nil
}
