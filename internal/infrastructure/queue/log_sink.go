package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// LogSink writes audit events to a zerolog logger. It is the sink used when no
// database is configured.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("stream", "audit").Logger()}
}

func (s *LogSink) Write(_ context.Context, e domain.AuditEvent) error {
	s.log.Info().
		Str("event_id", e.ID).
		Str("action", string(e.Action)).
		Str("actor", e.Actor).
		Str("target", e.Target).
		Str("outcome", string(e.Outcome)).
		Str("reason", e.Reason).
		Time("occurred_at", e.OccurredAt).
		Msg("audit")
	return nil
}
