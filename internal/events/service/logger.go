package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/corvusHold/courier/internal/events/domain"
)

// Logger is a Publisher that writes events to the structured log.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(l zerolog.Logger) *Logger {
	return &Logger{log: l.With().Str("component", "events").Logger()}
}

func (l *Logger) Publish(ctx context.Context, e domain.Event) error {
	ev := l.log.Info()
	if e.Type == "" {
		ev = l.log.Warn()
	}
	ev.Str("type", e.Type).
		Str("tenant_id", e.TenantID.String()).
		Str("user_id", e.UserID.String()).
		Fields(map[string]any{"meta": e.Meta}).
		Time("ts", e.Time).
		Msg("event")
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	Events []domain.Event
}

func (r *Recorder) Publish(_ context.Context, e domain.Event) error {
	r.Events = append(r.Events, e)
	return nil
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []string {
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}
