// Package flow drives the purchase conversation: token address, tier
// selection, payment verification and the follow-up delivery run. It talks to
// the chat transport only through the Notifier interface, so the state
// machine is testable without Telegram.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/replybot/bot/delivery"
	"github.com/m3rciful/replybot/bot/ledger"
	"github.com/m3rciful/replybot/bot/payments"
	"github.com/m3rciful/replybot/bot/pricing"
	"github.com/m3rciful/replybot/bot/session"
	"github.com/m3rciful/replybot/bot/storage"
	"github.com/m3rciful/replybot/core/logger"
)

// DefaultPaymentWindow bounds how long a session may sit in the
// awaiting-payment state.
const DefaultPaymentWindow = 600 * time.Second

var (
	// ErrInvalidAddress flags input that is not a 44-character Base58 address.
	ErrInvalidAddress = errors.New("flow: invalid address")
	// ErrUnknownTier flags a tier selection outside the price table.
	ErrUnknownTier = errors.New("flow: unknown tier")
	// ErrBadState flags an event that does not apply to the session's state.
	ErrBadState = errors.New("flow: unexpected state")
)

// VerifyStatus is the outcome of a payment submission.
type VerifyStatus int

const (
	// StatusVerified means the payment was found and delivery started.
	StatusVerified VerifyStatus = iota
	// StatusNotVerified means no matching transfer was found; the session
	// stays in awaiting-payment.
	StatusNotVerified
	// StatusBusy means a verification run is already in flight.
	StatusBusy
	// StatusExpired means the payment window lapsed; the session was reset.
	StatusExpired
)

// Notifier delivers plain text to a user's chat outside a handler context.
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) error
}

// Recorder persists the payment audit trail. A nil Recorder disables it.
type Recorder interface {
	RecordVerified(ctx context.Context, p storage.Payment) (int64, error)
	MarkDelivered(ctx context.Context, id int64) error
	RecentByUser(ctx context.Context, userID int64, limit int) ([]storage.Payment, error)
}

// Options wires an Engine.
type Options struct {
	Sessions *session.Manager
	Verifier *payments.Verifier
	Timers   *payments.Supervisor
	Runner   *delivery.Runner
	Store    Recorder
	// Wallet is the destination account shown to users.
	Wallet        string
	PaymentWindow time.Duration
}

// Engine is the per-user conversation state machine.
type Engine struct {
	sessions *session.Manager
	verifier *payments.Verifier
	timers   *payments.Supervisor
	runner   *delivery.Runner
	store    Recorder
	wallet   string
	window   time.Duration

	notify Notifier
}

// New builds an Engine. The Notifier is wired later via SetNotifier once the
// transport exists.
func New(opts Options) *Engine {
	window := opts.PaymentWindow
	if window <= 0 {
		window = DefaultPaymentWindow
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewManager()
	}
	if opts.Timers == nil {
		opts.Timers = payments.NewSupervisor()
	}
	if opts.Runner == nil {
		opts.Runner = &delivery.Runner{}
	}
	return &Engine{
		sessions: opts.Sessions,
		verifier: opts.Verifier,
		timers:   opts.Timers,
		runner:   opts.Runner,
		store:    opts.Store,
		wallet:   opts.Wallet,
		window:   window,
	}
}

// SetNotifier wires the chat transport used for off-update notices. Call it
// before the first update is processed.
func (e *Engine) SetNotifier(n Notifier) {
	e.notify = n
}

// Sessions exposes the session store to transport-side routing.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Wallet returns the destination account shown to users.
func (e *Engine) Wallet() string {
	return e.wallet
}

// ExpiryNotice is the text sent when the payment window lapses.
func (e *Engine) ExpiryNotice() string {
	return fmt.Sprintf("⏳ No payment detected. Please send the required amount of SOL to %s and try again.", e.wallet)
}

// Reset returns the session to idle, cancelling any pending payment timer.
func (e *Engine) Reset(ctx context.Context, userID int64) {
	e.timers.Disarm(userID)
	e.sessions.Update(userID, func(s *session.Session) {
		s.ResetFlow()
	})
	logger.Debug(ctx, "service.sessions", "session.reset",
		slog.Int64("user_id", userID),
	)
}

// Begin starts a fresh flow: the session moves to awaiting-token regardless
// of its previous state.
func (e *Engine) Begin(ctx context.Context, userID int64) {
	e.timers.Disarm(userID)
	e.sessions.Update(userID, func(s *session.Session) {
		s.ResetFlow()
		s.State = session.StateAwaitingToken
	})
	logger.Info(ctx, "service.sessions", "flow.started",
		slog.Int64("user_id", userID),
		slog.String("state", string(session.StateAwaitingToken)),
	)
}

// SubmitToken validates and stores the token address. An invalid address is
// a retryable rejection: the session stays in awaiting-token.
func (e *Engine) SubmitToken(ctx context.Context, userID int64, text string) error {
	text = strings.TrimSpace(text)

	var err error
	e.sessions.Update(userID, func(s *session.Session) {
		if s.State != session.StateAwaitingToken {
			err = ErrBadState
			return
		}
		if !ledger.ValidAddress(text) {
			err = ErrInvalidAddress
			return
		}
		s.TokenAddress = text
		s.State = session.StateAwaitingTier
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "service.sessions", "token.accepted",
		slog.Int64("user_id", userID),
		slog.String("token_addr", text),
	)
	return nil
}

// SelectTier records the chosen tier, opens the payment window and arms the
// expiry timer. It returns the tier and the payment deadline.
func (e *Engine) SelectTier(ctx context.Context, userID int64, messages int) (pricing.Tier, time.Time, error) {
	tier, ok := pricing.Lookup(messages)
	if !ok {
		return pricing.Tier{}, time.Time{}, ErrUnknownTier
	}

	var (
		err      error
		deadline time.Time
	)
	e.sessions.Update(userID, func(s *session.Session) {
		if s.State != session.StateAwaitingTier {
			err = ErrBadState
			return
		}
		t := tier
		deadline = time.Now().Add(e.window)
		s.Tier = &t
		s.PaymentDeadline = deadline
		s.State = session.StateAwaitingPayment
	})
	if err != nil {
		return pricing.Tier{}, time.Time{}, err
	}

	e.timers.Arm(userID, e.window, func() {
		e.expire(userID)
	})
	logger.Info(ctx, "service.sessions", "tier.selected",
		slog.Int64("user_id", userID),
		slog.Int("tier", tier.Messages),
		slog.Int64("amount_lamports", tier.Lamports),
		slog.Time("deadline", deadline),
	)
	return tier, deadline, nil
}

// SubmitPayment runs one verification for the sender address. The per-session
// lock is released while the ledger is polled; only this user's conversation
// waits for the result.
func (e *Engine) SubmitPayment(ctx context.Context, userID int64, senderAddr string) (VerifyStatus, error) {
	senderAddr = strings.TrimSpace(senderAddr)

	var (
		err      error
		busy     bool
		required int64
		count    int
		token    string
		deadline time.Time
		epoch    uint64
	)
	e.sessions.Update(userID, func(s *session.Session) {
		if s.State != session.StateAwaitingPayment || s.Tier == nil {
			err = ErrBadState
			return
		}
		if s.VerifyInFlight {
			busy = true
			return
		}
		s.VerifyInFlight = true
		epoch = s.Epoch
		required = s.Tier.Lamports
		count = s.Tier.Messages
		token = s.TokenAddress
		deadline = s.PaymentDeadline
	})
	if err != nil {
		return StatusNotVerified, err
	}
	if busy {
		return StatusBusy, nil
	}

	transfer, verified := e.verifier.Verify(ctx, senderAddr, required)

	status := StatusNotVerified
	e.sessions.Update(userID, func(s *session.Session) {
		if s.Epoch != epoch {
			// The flow was cancelled or restarted while we were polling the
			// ledger. The outcome was matched against the old tier's amount,
			// so it must not touch the new flow.
			err = ErrBadState
			return
		}
		s.VerifyInFlight = false
		if s.State != session.StateAwaitingPayment {
			err = ErrBadState
			return
		}
		switch {
		case verified:
			s.State = session.StateRunning
			status = StatusVerified
		case time.Now().After(deadline):
			s.ResetFlow()
			status = StatusExpired
		}
	})
	if err != nil {
		return StatusNotVerified, err
	}

	switch status {
	case StatusVerified:
		e.timers.Disarm(userID)
		auditID := e.recordVerified(ctx, storage.Payment{
			UserID:         userID,
			TokenAddress:   token,
			MessageCount:   count,
			AmountLamports: required,
			SenderAddress:  senderAddr,
			TxSignature:    transfer.Signature,
		})
		go e.runner.Run(ctx, e.notify, userID, count, func() {
			e.finishRun(ctx, userID, auditID)
		})
	case StatusExpired:
		logger.Info(ctx, "service.sessions", "payment.window_expired",
			slog.Int64("user_id", userID),
		)
	}
	return status, nil
}

// History lists the user's recent verified payments, or nil when auditing is
// disabled.
func (e *Engine) History(ctx context.Context, userID int64, limit int) ([]storage.Payment, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.RecentByUser(ctx, userID, limit)
}

// expire fires from the payment-window timer. It only acts when the session
// is still awaiting payment; a session that moved on (or is mid-verification,
// which resolves expiry itself) is left untouched.
func (e *Engine) expire(userID int64) {
	expired := false
	e.sessions.Update(userID, func(s *session.Session) {
		if s.State != session.StateAwaitingPayment || s.VerifyInFlight {
			return
		}
		s.ResetFlow()
		expired = true
	})
	if !expired {
		return
	}

	ctx := context.Background()
	logger.Info(ctx, "service.sessions", "payment.window_expired",
		slog.Int64("user_id", userID),
	)
	if e.notify != nil {
		if err := e.notify.Send(ctx, userID, e.ExpiryNotice()); err != nil {
			logger.Warn(ctx, "service.sessions", "expiry.notice_failed",
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
	}
}

func (e *Engine) finishRun(ctx context.Context, userID int64, auditID int64) {
	e.sessions.Update(userID, func(s *session.Session) {
		if s.State == session.StateRunning {
			s.State = session.StateCompleted
		}
	})
	logger.Info(ctx, "service.sessions", "flow.completed",
		slog.Int64("user_id", userID),
	)
	if e.store != nil && auditID > 0 {
		if err := e.store.MarkDelivered(ctx, auditID); err != nil {
			logger.Warn(ctx, "service.payments", "delivered.mark_failed",
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
	}
}

func (e *Engine) recordVerified(ctx context.Context, p storage.Payment) int64 {
	if e.store == nil {
		return 0
	}
	id, err := e.store.RecordVerified(ctx, p)
	if err != nil {
		logger.Warn(ctx, "service.payments", "payment.record_failed",
			slog.Int64("user_id", p.UserID),
			slog.String("err", err.Error()),
		)
		return 0
	}
	return id
}
