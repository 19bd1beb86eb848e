// Package delivery executes the paced post-payment message sequence.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/replybot/core/logger"
)

// DefaultStepDelay separates consecutive delivery messages.
const DefaultStepDelay = 2 * time.Second

// Notifier delivers a plain text message to a user's chat.
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) error
}

// Runner sends count paced progress notices followed by one completion
// notice. Individual send failures are logged and the run continues.
type Runner struct {
	StepDelay time.Duration
}

// Run blocks until the sequence finishes or ctx is cancelled, then invokes
// done (also on cancellation, so session state is never left dangling).
// Callers start it on its own goroutine.
func (r *Runner) Run(ctx context.Context, notify Notifier, userID int64, count int, done func()) {
	if done != nil {
		defer done()
	}
	delay := r.StepDelay
	if delay <= 0 {
		delay = DefaultStepDelay
	}

	start := time.Now()
	for i := 1; i <= count; i++ {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn(ctx, "service.delivery", "run.cancelled",
				slog.Int64("user_id", userID),
				slog.Int("count", i-1),
			)
			return
		case <-timer.C:
		}
		r.send(ctx, notify, userID, fmt.Sprintf("🗣 Message %d of %d sent!", i, count))
	}

	r.send(ctx, notify, userID, "🎉 All done! Every message has been sent.")
	logger.Info(ctx, "service.delivery", "run.completed",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.Int("count", count),
		slog.Duration("duration", logger.Took(start)),
	)
}

func (r *Runner) send(ctx context.Context, notify Notifier, userID int64, text string) {
	if notify == nil {
		logger.Warn(ctx, "service.delivery", "send.skipped",
			slog.Int64("user_id", userID),
		)
		return
	}
	if err := notify.Send(ctx, userID, text); err != nil {
		logger.Warn(ctx, "service.delivery", "send.failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}
