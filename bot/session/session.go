// Package session keeps one in-memory conversation record per user. Records
// do not survive a restart; that is deliberate.
package session

import (
	"time"

	"github.com/m3rciful/replybot/bot/pricing"
)

// State identifies a step in the purchase conversation.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
	// StateAwaitingToken means the user was asked for a token address.
	StateAwaitingToken State = "awaiting_token"
	// StateAwaitingTier means the user is choosing a message tier.
	StateAwaitingTier State = "awaiting_tier"
	// StateAwaitingPayment means the payment prompt is out and a timer runs.
	StateAwaitingPayment State = "awaiting_payment"
	// StateRunning means payment is verified and delivery is in progress.
	StateRunning State = "running"
	// StateCompleted means the delivery run finished.
	StateCompleted State = "completed"
)

// Session stores the conversation state for one user. Fields are only
// mutated inside Manager.Update closures.
type Session struct {
	UserID          int64
	State           State
	TokenAddress    string
	Tier            *pricing.Tier
	PaymentDeadline time.Time
	// VerifyInFlight guards against concurrent verification runs for the
	// same session.
	VerifyInFlight bool
	// Epoch counts flow restarts. Async work captures it when it starts and
	// must discard its outcome once the session has moved to a newer epoch.
	Epoch uint64
}

// ResetFlow clears everything except the user identity and invalidates any
// in-flight async work by advancing the epoch.
func (s *Session) ResetFlow() {
	s.State = StateIdle
	s.TokenAddress = ""
	s.Tier = nil
	s.PaymentDeadline = time.Time{}
	s.VerifyInFlight = false
	s.Epoch++
}
