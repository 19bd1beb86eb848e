// Package ledger exposes a minimal read-only view of the payment ledger:
// recent transfers touching an account, most recent first.
package ledger

import (
	"context"
	"regexp"
)

// Transfer is a single historical transaction as seen from the sending
// account. Balances are in lamports.
type Transfer struct {
	Signature    string
	Sender       string
	Receiver     string
	PreLamports  int64
	PostLamports int64
}

// Lamports returns the amount the sending account lost in this transfer.
func (t Transfer) Lamports() int64 {
	return t.PreLamports - t.PostLamports
}

// Client fetches recent transfer records for an account, most recent first.
// Implementations may fail with transport errors; callers decide how to
// degrade.
type Client interface {
	RecentTransfers(ctx context.Context, account string, limit int) ([]Transfer, error)
}

var addressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{44}$`)

// ValidAddress reports whether s is a well-formed account address:
// exactly 44 Base58 characters (no 0, O, I or l).
func ValidAddress(s string) bool {
	return addressRe.MatchString(s)
}
