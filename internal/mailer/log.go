package mailer

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/authsvc"
)

// LogMailer writes every message to the logger instead of sending it.
// Bodies carry one-time codes, so it must not be used outside local setups.
type LogMailer struct {
	log *slog.Logger
}

// NewLog returns a LogMailer writing at info level.
func NewLog(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log.With("component", "mailer", "driver", "log")}
}

// Send implements authsvc.Mailer.
func (m *LogMailer) Send(ctx context.Context, msg authsvc.Message) error {
	m.log.InfoContext(ctx, "mail",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
