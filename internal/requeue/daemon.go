package requeue

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// RunDaemon runs passes on the cron schedule until ctx is cancelled. Each
// fire runs at most one pass; because Run skips when a previous pass is
// still in flight, a slow pass is never doubled.
func (s *Scheduler) RunDaemon(ctx context.Context, schedule string, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("requeue: parse schedule %q: %w", schedule, err)
	}

	fmt.Fprintf(out, "Requeue daemon starting (schedule %q, staleness %s)...\n", schedule, s.threshold)

	for {
		next := sched.Next(time.Now())
		if !sleepUntil(ctx, next) {
			fmt.Fprintf(out, "Requeue daemon stopped.\n")
			return nil
		}

		n, err := s.Run(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("requeue pass failed")
			fmt.Fprintf(out, "Requeue pass failed: %v\n", err)
			continue
		}
		if n > 0 {
			fmt.Fprintf(out, "Requeued %d ticket(s)\n", n)
		}
	}
}

// sleepUntil sleeps until t, returning false if ctx is cancelled first.
func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
