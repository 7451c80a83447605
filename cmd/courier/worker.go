package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corvusHold/courier/internal/dispatch"
	"github.com/corvusHold/courier/internal/dispatch/domain"
)

func newWorkerCmd() *cobra.Command {
	var purgeEvery time.Duration
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Deliver deferred messages and apply the retention policy until stopped",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			mod := dispatch.New(a.dispatchDeps())

			if a.cfg.SweepEnabled {
				stopSweep := startSweeper(ctx, mod.Sweeper, a.cfg.SweepInterval)
				defer stopSweep()
			}
			a.log.Info().Dur("sweep_interval", a.cfg.SweepInterval).Int("retention_days", a.cfg.RetentionDays).Msg("worker started")

			if purgeEvery <= 0 {
				purgeEvery = 24 * time.Hour
			}
			t := time.NewTicker(purgeEvery)
			defer t.Stop()
			for {
				if a.cfg.RetentionDays > 0 {
					if _, err := purge(ctx, a, mod, a.cfg.RetentionDays); err != nil {
						a.log.Error().Err(err).Msg("retention purge")
					}
				}
				select {
				case <-ctx.Done():
					a.log.Info().Msg("worker stopped")
					return nil
				case <-t.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&purgeEvery, "purge-every", 24*time.Hour, "interval between retention purges")
	return cmd
}

type backgroundSweeper interface {
	Start(ctx context.Context, interval time.Duration) <-chan struct{}
}

// startSweeper runs s in the background. The returned func cancels it and
// blocks until the current sweep returns, so it must run before the app's
// pool and cache are closed.
func startSweeper(ctx context.Context, s backgroundSweeper, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := s.Start(ctx, interval)
	return func() {
		cancel()
		<-done
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Deliver due deferred messages once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			report := dispatch.New(a.dispatchDeps()).Sweeper.RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "processed=%d sent=%d failed=%d\n", len(report.MessageIDs), report.Sent, report.Failed)
			return nil
		},
	}
}

func newPurgeCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete email and SMS units older than --days, whatever their status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				return withCode(exitUsage, fmt.Errorf("--days must be positive"))
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := purge(cmd.Context(), a, dispatch.New(a.dispatchDeps()), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted=%d\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 90, "delete units created more than this many days ago")
	return cmd
}

func purge(ctx context.Context, a *app, mod *dispatch.Module, days int) (int64, error) {
	var total int64
	for _, ch := range []domain.ChannelType{domain.ChannelEmail, domain.ChannelSMS} {
		n, err := mod.Tracker.PurgeBefore(ctx, ch, days)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", ch, err)
		}
		a.log.Info().Str("channel", string(ch)).Int("days", days).Int64("deleted", n).Msg("messages purged")
		total += n
	}
	return total, nil
}
