package provider

import (
	"context"

	"github.com/rs/zerolog"
)

// Console writes messages to the log instead of delivering them. Used for local runs.
type Console struct {
	channel string
	log     zerolog.Logger
}

func NewConsole(channel string, log zerolog.Logger) *Console {
	return &Console{channel: channel, log: log.With().Str("component", "console_provider").Logger()}
}

func (c *Console) Send(_ context.Context, address, subject, body string) error {
	c.log.Info().
		Str("channel", c.channel).
		Str("to", address).
		Str("subject", subject).
		Int("body_len", len(body)).
		Msg("message delivered to console")
	return nil
}
