// Package payments holds the payment verification and payment-window
// supervision logic.
package payments

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/replybot/bot/ledger"
	"github.com/m3rciful/replybot/core/logger"
)

const (
	// DefaultAttempts is the ledger polling budget per verification run.
	DefaultAttempts = 3
	// DefaultFetchLimit caps how many recent transactions one attempt inspects.
	DefaultFetchLimit = 10
)

// Verifier confirms that a transfer of the required amount from a sender
// reached the destination wallet. One call polls the ledger up to Attempts
// times; ledger errors are absorbed and count as "no match this attempt".
type Verifier struct {
	Ledger      ledger.Client
	Destination string
	Attempts    int
	FetchLimit  int
	// Tolerance is the accepted deviation in lamports between the observed
	// and the required amount. Zero keeps exact matching.
	Tolerance int64
	// Backoff is an optional pause between attempts.
	Backoff time.Duration
}

// Verify reports whether some recent transfer from senderAddr moved the
// required lamport amount to the destination wallet, returning the matching
// transfer. A malformed sender address fails immediately.
func (v *Verifier) Verify(ctx context.Context, senderAddr string, requiredLamports int64) (ledger.Transfer, bool) {
	if !ledger.ValidAddress(senderAddr) {
		logger.Warn(ctx, "service.verify", "sender.invalid",
			slog.String("sender_addr", logger.SanitizeLimit(senderAddr, 64)),
		)
		return ledger.Transfer{}, false
	}

	attempts := v.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	limit := v.FetchLimit
	if limit <= 0 {
		limit = DefaultFetchLimit
	}

	start := time.Now()
	for attempt := 1; attempt <= attempts; attempt++ {
		transfers, err := v.Ledger.RecentTransfers(ctx, senderAddr, limit)
		if err != nil {
			logger.Warn(ctx, "service.verify", "attempt.failed",
				slog.Int("attempt", attempt),
				slog.String("err", err.Error()),
			)
		}
		for _, t := range transfers {
			if v.matches(t, requiredLamports) {
				logger.Info(ctx, "service.verify", "payment.verified",
					slog.String("status", "ok"),
					slog.String("signature", t.Signature),
					slog.Int64("amount_lamports", t.Lamports()),
					slog.Int("attempt", attempt),
					slog.Duration("duration", logger.Took(start)),
				)
				return t, true
			}
		}
		if attempt < attempts && v.Backoff > 0 {
			timer := time.NewTimer(v.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ledger.Transfer{}, false
			case <-timer.C:
			}
		}
	}

	logger.Info(ctx, "service.verify", "payment.not_found",
		slog.String("status", "fail"),
		slog.Int64("amount_lamports", requiredLamports),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.Took(start)),
	)
	return ledger.Transfer{}, false
}

func (v *Verifier) matches(t ledger.Transfer, required int64) bool {
	if t.Receiver != v.Destination {
		return false
	}
	diff := t.Lamports() - required
	if diff < 0 {
		diff = -diff
	}
	return diff <= v.Tolerance
}
