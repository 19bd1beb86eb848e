package helpers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/replybot/core/logger"
	"github.com/m3rciful/replybot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// NotifyUser sends plain text to a user outside of an update context, e.g.
// from timers or background workers. Delivery goes through the async sender
// dispatcher when one is wired, falling back to a direct send otherwise.
func NotifyUser(ctx context.Context, bot *tele.Bot, userID int64, text string) error {
	if bot == nil {
		return errors.New("helpers: nil bot")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	run := func() error {
		_, err := bot.Send(&tele.User{ID: userID}, text)
		return err
	}

	disp := currentDispatcher()
	if disp == nil {
		return run()
	}
	if err := disp.Enqueue(ctx, "notify.text", "sendMessage", run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", "notify.text"),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}
