package payments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/replybot/bot/ledger"
)

var (
	senderAddr = strings.Repeat("A", 44)
	walletAddr = strings.Repeat("W", 44)
)

// fakeLedger serves one pre-baked batch (or error) per RecentTransfers call.
// The last batch repeats once the script runs out.
type fakeLedger struct {
	mu      sync.Mutex
	batches [][]ledger.Transfer
	errs    []error
	calls   int
}

func (f *fakeLedger) RecentTransfers(_ context.Context, _ string, _ int) ([]ledger.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	if i >= len(f.batches) {
		i = len(f.batches) - 1
	}
	return f.batches[i], nil
}

func (f *fakeLedger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func paid(sig string, amount int64) ledger.Transfer {
	return ledger.Transfer{
		Signature:    sig,
		Sender:       senderAddr,
		Receiver:     walletAddr,
		PreLamports:  1_000_000_000,
		PostLamports: 1_000_000_000 - amount,
	}
}

func newVerifier(l ledger.Client) *Verifier {
	return &Verifier{Ledger: l, Destination: walletAddr, Attempts: 3, FetchLimit: 10}
}

func TestVerifyMatchOnFirstAttempt(t *testing.T) {
	fake := &fakeLedger{batches: [][]ledger.Transfer{
		{paid("old", 5_000_000), paid("match", 100_000_000)},
	}}
	v := newVerifier(fake)

	tr, ok := v.Verify(context.Background(), senderAddr, 100_000_000)
	require.True(t, ok)
	assert.Equal(t, "match", tr.Signature)
	assert.Equal(t, 1, fake.callCount())
}

func TestVerifyMatchOnLaterAttempt(t *testing.T) {
	fake := &fakeLedger{batches: [][]ledger.Transfer{
		nil,
		{paid("small", 1)},
		{paid("small", 1), paid("match", 25_000_000)},
	}}
	v := newVerifier(fake)

	tr, ok := v.Verify(context.Background(), senderAddr, 25_000_000)
	require.True(t, ok)
	assert.Equal(t, "match", tr.Signature)
	assert.Equal(t, 3, fake.callCount())
}

func TestVerifyExhaustsAttempts(t *testing.T) {
	fake := &fakeLedger{batches: [][]ledger.Transfer{
		{paid("wrong", 10_000_000)},
	}}
	v := newVerifier(fake)

	_, ok := v.Verify(context.Background(), senderAddr, 25_000_000)
	assert.False(t, ok)
	assert.Equal(t, 3, fake.callCount())
}

func TestVerifyInvalidSenderSkipsLedger(t *testing.T) {
	fake := &fakeLedger{}
	v := newVerifier(fake)

	for _, bad := range []string{"", "not-an-address", strings.Repeat("0", 44)} {
		_, ok := v.Verify(context.Background(), bad, 10_000_000)
		assert.False(t, ok, "address %q", bad)
	}
	assert.Equal(t, 0, fake.callCount())
}

func TestVerifyAbsorbsLedgerErrors(t *testing.T) {
	fake := &fakeLedger{
		errs:    []error{errors.New("node is behind"), nil},
		batches: [][]ledger.Transfer{nil, {paid("match", 50_000_000)}},
	}
	v := newVerifier(fake)

	tr, ok := v.Verify(context.Background(), senderAddr, 50_000_000)
	require.True(t, ok)
	assert.Equal(t, "match", tr.Signature)
	assert.Equal(t, 2, fake.callCount())
}

func TestVerifyRejectsWrongReceiver(t *testing.T) {
	elsewhere := paid("match", 50_000_000)
	elsewhere.Receiver = strings.Repeat("X", 44)
	fake := &fakeLedger{batches: [][]ledger.Transfer{{elsewhere}}}
	v := newVerifier(fake)

	_, ok := v.Verify(context.Background(), senderAddr, 50_000_000)
	assert.False(t, ok)
}

func TestVerifyTolerance(t *testing.T) {
	fake := &fakeLedger{batches: [][]ledger.Transfer{
		{paid("near", 50_000_001)},
	}}

	exact := newVerifier(fake)
	exact.Attempts = 1
	_, ok := exact.Verify(context.Background(), senderAddr, 50_000_000)
	assert.False(t, ok, "tolerance 0 must require an exact amount")

	loose := newVerifier(fake)
	loose.Attempts = 1
	loose.Tolerance = 1
	tr, ok := loose.Verify(context.Background(), senderAddr, 50_000_000)
	require.True(t, ok)
	assert.Equal(t, "near", tr.Signature)
}
