package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/corvusHold/courier/internal/dispatch/domain"
	"github.com/corvusHold/courier/internal/metrics"
)

// Sweeper delivers deferred units once their expected send date has passed. It behaves
// like a scheduled caller: failures are recorded on the unit and never stop the batch.
type Sweeper struct {
	tracker    *Tracker
	dispatcher *Dispatcher
	channels   []domain.ChannelType
	batch      int
	log        zerolog.Logger
}

func NewSweeper(tracker *Tracker, dispatcher *Dispatcher, batch int, log zerolog.Logger) *Sweeper {
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{
		tracker:    tracker,
		dispatcher: dispatcher,
		channels:   []domain.ChannelType{domain.ChannelEmail, domain.ChannelSMS},
		batch:      batch,
		log:        log.With().Str("component", "sweeper").Logger(),
	}
}

// RunOnce processes at most one batch of due units per channel.
func (s *Sweeper) RunOnce(ctx context.Context) domain.Report {
	var report domain.Report
	for _, ch := range s.channels {
		due, err := s.tracker.Due(ctx, ch, s.batch)
		if err != nil {
			s.log.Error().Err(err).Str("channel", string(ch)).Msg("claim due messages")
			continue
		}
		for _, m := range due {
			if ctx.Err() != nil {
				return report
			}
			f, err := s.dispatcher.Deliver(ctx, m)
			if err != nil {
				metrics.IncSwept(string(ch), "error")
				s.log.Error().Err(err).Str("message_id", m.ID.String()).Msg("sweep message")
				continue
			}
			report.Record(m, f)
			metrics.IncSwept(string(ch), strings.ToLower(string(m.Status)))
		}
	}
	if n := len(report.MessageIDs); n > 0 {
		s.log.Info().Int("processed", n).Int("sent", report.Sent).Int("failed", report.Failed).Msg("sweep done")
	}
	return report
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Start runs Run in its own goroutine. The returned channel is closed once
// Run has returned, so callers can wait for an in-flight sweep before
// releasing the resources it uses.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx, interval)
	}()
	return done
}
