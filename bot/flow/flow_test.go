package flow

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/replybot/bot/delivery"
	"github.com/m3rciful/replybot/bot/ledger"
	"github.com/m3rciful/replybot/bot/payments"
	"github.com/m3rciful/replybot/bot/session"
	"github.com/m3rciful/replybot/bot/storage"
)

var (
	tokenAddr  = strings.Repeat("T", 44)
	senderAddr = strings.Repeat("A", 44)
	walletAddr = strings.Repeat("W", 44)
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *fakeNotifier) Send(_ context.Context, _ int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return nil
}

func (n *fakeNotifier) count(substr string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if strings.Contains(m, substr) {
			c++
		}
	}
	return c
}

// scriptedLedger returns the same batch on every call. When gate is set,
// each call blocks until the gate channel is closed and signals entered.
type scriptedLedger struct {
	batch   []ledger.Transfer
	gate    chan struct{}
	entered chan struct{}
}

func (l *scriptedLedger) RecentTransfers(ctx context.Context, _ string, _ int) ([]ledger.Transfer, error) {
	if l.gate != nil {
		l.entered <- struct{}{}
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return l.batch, nil
}

type fakeRecorder struct {
	mu        sync.Mutex
	recorded  []storage.Payment
	delivered []int64
}

func (r *fakeRecorder) RecordVerified(_ context.Context, p storage.Payment) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, p)
	return int64(len(r.recorded)), nil
}

func (r *fakeRecorder) MarkDelivered(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, id)
	return nil
}

func (r *fakeRecorder) RecentByUser(_ context.Context, _ int64, _ int) ([]storage.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]storage.Payment(nil), r.recorded...), nil
}

func goodTransfer(amount int64) ledger.Transfer {
	return ledger.Transfer{
		Signature:    "sig-good",
		Sender:       senderAddr,
		Receiver:     walletAddr,
		PreLamports:  2_000_000_000,
		PostLamports: 2_000_000_000 - amount,
	}
}

type engineOpts struct {
	ledger ledger.Client
	store  Recorder
	window time.Duration
}

func newEngine(t *testing.T, o engineOpts) (*Engine, *fakeNotifier) {
	t.Helper()
	if o.window <= 0 {
		o.window = time.Second
	}
	e := New(Options{
		Verifier: &payments.Verifier{
			Ledger:      o.ledger,
			Destination: walletAddr,
			Attempts:    1,
			FetchLimit:  10,
		},
		Runner:        &delivery.Runner{StepDelay: time.Millisecond},
		Store:         o.store,
		Wallet:        walletAddr,
		PaymentWindow: o.window,
	})
	n := &fakeNotifier{}
	e.SetNotifier(n)
	return e, n
}

func advanceToAwaitingPayment(t *testing.T, e *Engine, userID int64, messages int) {
	t.Helper()
	ctx := context.Background()
	e.Begin(ctx, userID)
	require.NoError(t, e.SubmitToken(ctx, userID, tokenAddr))
	_, _, err := e.SelectTier(ctx, userID, messages)
	require.NoError(t, err)
}

func TestHappyPathToCompleted(t *testing.T) {
	store := &fakeRecorder{}
	e, notify := newEngine(t, engineOpts{
		ledger: &scriptedLedger{batch: []ledger.Transfer{goodTransfer(10_000_000)}},
		store:  store,
	})
	ctx := context.Background()
	userID := int64(101)

	e.Begin(ctx, userID)
	assert.Equal(t, session.StateAwaitingToken, e.Sessions().StateOf(userID))

	require.NoError(t, e.SubmitToken(ctx, userID, tokenAddr))
	assert.Equal(t, session.StateAwaitingTier, e.Sessions().StateOf(userID))

	tier, deadline, err := e.SelectTier(ctx, userID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), tier.Lamports)
	assert.True(t, deadline.After(time.Now()))
	assert.Equal(t, session.StateAwaitingPayment, e.Sessions().StateOf(userID))

	status, err := e.SubmitPayment(ctx, userID, senderAddr)
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, status)
	assert.Equal(t, session.StateRunning, e.Sessions().StateOf(userID))

	require.Eventually(t, func() bool {
		return e.Sessions().StateOf(userID) == session.StateCompleted
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, 10, notify.count("of 10 sent"))
	assert.Equal(t, 1, notify.count("All done"))
	assert.Equal(t, 0, notify.count("No payment detected"))

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.recorded, 1)
	p := store.recorded[0]
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, tokenAddr, p.TokenAddress)
	assert.Equal(t, 10, p.MessageCount)
	assert.Equal(t, int64(10_000_000), p.AmountLamports)
	assert.Equal(t, senderAddr, p.SenderAddress)
	assert.Equal(t, "sig-good", p.TxSignature)
	assert.Equal(t, []int64{1}, store.delivered)
}

func TestSubmitTokenRejectsInvalidAddress(t *testing.T) {
	e, _ := newEngine(t, engineOpts{ledger: &scriptedLedger{}})
	ctx := context.Background()

	e.Begin(ctx, 1)
	err := e.SubmitToken(ctx, 1, "definitely not base58")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Equal(t, session.StateAwaitingToken, e.Sessions().StateOf(1))

	// Retry with a valid address succeeds.
	require.NoError(t, e.SubmitToken(ctx, 1, tokenAddr))
}

func TestSubmitTokenOutOfOrder(t *testing.T) {
	e, _ := newEngine(t, engineOpts{ledger: &scriptedLedger{}})
	err := e.SubmitToken(context.Background(), 1, tokenAddr)
	assert.ErrorIs(t, err, ErrBadState)
}

func TestSelectTierRejections(t *testing.T) {
	e, _ := newEngine(t, engineOpts{ledger: &scriptedLedger{}})
	ctx := context.Background()

	_, _, err := e.SelectTier(ctx, 1, 10)
	assert.ErrorIs(t, err, ErrBadState)

	e.Begin(ctx, 1)
	require.NoError(t, e.SubmitToken(ctx, 1, tokenAddr))
	_, _, err = e.SelectTier(ctx, 1, 33)
	assert.ErrorIs(t, err, ErrUnknownTier)
	assert.Equal(t, session.StateAwaitingTier, e.Sessions().StateOf(1))
}

func TestFailedVerificationKeepsWaiting(t *testing.T) {
	e, _ := newEngine(t, engineOpts{ledger: &scriptedLedger{}})
	ctx := context.Background()
	advanceToAwaitingPayment(t, e, 1, 25)

	status, err := e.SubmitPayment(ctx, 1, senderAddr)
	require.NoError(t, err)
	assert.Equal(t, StatusNotVerified, status)
	assert.Equal(t, session.StateAwaitingPayment, e.Sessions().StateOf(1))

	// A later retry with the payment in place succeeds.
	e2, _ := newEngine(t, engineOpts{
		ledger: &scriptedLedger{batch: []ledger.Transfer{goodTransfer(25_000_000)}},
	})
	advanceToAwaitingPayment(t, e2, 1, 25)
	status, err = e2.SubmitPayment(ctx, 1, senderAddr)
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, status)
}

func TestPaymentWindowExpiry(t *testing.T) {
	e, notify := newEngine(t, engineOpts{
		ledger: &scriptedLedger{},
		window: 20 * time.Millisecond,
	})
	advanceToAwaitingPayment(t, e, 1, 10)

	require.Eventually(t, func() bool {
		return e.Sessions().StateOf(1) == session.StateIdle
	}, 5*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, notify.count("No payment detected"))
}

func TestResetDisarmsExpiryTimer(t *testing.T) {
	e, notify := newEngine(t, engineOpts{
		ledger: &scriptedLedger{},
		window: 20 * time.Millisecond,
	})
	advanceToAwaitingPayment(t, e, 1, 10)
	e.Reset(context.Background(), 1)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, session.StateIdle, e.Sessions().StateOf(1))
	assert.Equal(t, 0, notify.count("No payment detected"))
}

func TestConcurrentVerificationIsBusy(t *testing.T) {
	gated := &scriptedLedger{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	e, _ := newEngine(t, engineOpts{ledger: gated})
	ctx := context.Background()
	advanceToAwaitingPayment(t, e, 1, 10)

	first := make(chan VerifyStatus, 1)
	go func() {
		status, _ := e.SubmitPayment(ctx, 1, senderAddr)
		first <- status
	}()
	<-gated.entered

	status, err := e.SubmitPayment(ctx, 1, senderAddr)
	require.NoError(t, err)
	assert.Equal(t, StatusBusy, status)

	close(gated.gate)
	select {
	case got := <-first:
		assert.Equal(t, StatusNotVerified, got)
	case <-time.After(5 * time.Second):
		t.Fatal("first verification never returned")
	}
	assert.Equal(t, session.StateAwaitingPayment, e.Sessions().StateOf(1))
}

func TestExpiryResolvedByInFlightVerification(t *testing.T) {
	gated := &scriptedLedger{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	e, notify := newEngine(t, engineOpts{
		ledger: gated,
		window: 20 * time.Millisecond,
	})
	ctx := context.Background()
	advanceToAwaitingPayment(t, e, 1, 10)

	result := make(chan VerifyStatus, 1)
	go func() {
		status, _ := e.SubmitPayment(ctx, 1, senderAddr)
		result <- status
	}()
	<-gated.entered

	// Let the window timer fire while verification is still polling. The
	// timer must leave the session alone; the verification outcome settles it.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, session.StateAwaitingPayment, e.Sessions().StateOf(1))

	close(gated.gate)
	select {
	case got := <-result:
		assert.Equal(t, StatusExpired, got)
	case <-time.After(5 * time.Second):
		t.Fatal("verification never returned")
	}
	assert.Equal(t, session.StateIdle, e.Sessions().StateOf(1))
	// The timer path stays silent here; the caller announces the expiry.
	assert.Equal(t, 0, notify.count("No payment detected"))
}

func TestRestartDuringVerificationDiscardsStaleResult(t *testing.T) {
	// The gated ledger holds a transfer that pays for the cheap tier only.
	gated := &scriptedLedger{
		batch:   []ledger.Transfer{goodTransfer(10_000_000)},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	e, _ := newEngine(t, engineOpts{ledger: gated})
	ctx := context.Background()
	advanceToAwaitingPayment(t, e, 1, 10)

	result := make(chan error, 1)
	var staleStatus VerifyStatus
	go func() {
		status, err := e.SubmitPayment(ctx, 1, senderAddr)
		staleStatus = status
		result <- err
	}()
	<-gated.entered

	// The user cancels and starts over on the expensive tier while the old
	// verification is still polling the ledger.
	e.Reset(ctx, 1)
	e.Begin(ctx, 1)
	require.NoError(t, e.SubmitToken(ctx, 1, tokenAddr))
	_, _, err := e.SelectTier(ctx, 1, 1000)
	require.NoError(t, err)

	close(gated.gate)
	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrBadState)
		assert.NotEqual(t, StatusVerified, staleStatus)
	case <-time.After(5 * time.Second):
		t.Fatal("stale verification never returned")
	}

	// The old run's 0.01 SOL match must not have unlocked the 1 SOL flow.
	assert.Equal(t, session.StateAwaitingPayment, e.Sessions().StateOf(1))

	// The new flow can verify on its own; the guard is not left set by the
	// stale run, and the ledger's transfer is short of the new amount.
	status, err := e.SubmitPayment(ctx, 1, senderAddr)
	require.NoError(t, err)
	assert.Equal(t, StatusNotVerified, status)
	assert.Equal(t, session.StateAwaitingPayment, e.Sessions().StateOf(1))
}

func TestBeginRestartsAnActiveFlow(t *testing.T) {
	e, notify := newEngine(t, engineOpts{
		ledger: &scriptedLedger{},
		window: 20 * time.Millisecond,
	})
	ctx := context.Background()
	advanceToAwaitingPayment(t, e, 1, 10)

	e.Begin(ctx, 1)
	assert.Equal(t, session.StateAwaitingToken, e.Sessions().StateOf(1))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, notify.count("No payment detected"))
	assert.Equal(t, session.StateAwaitingToken, e.Sessions().StateOf(1))
}

func TestHistoryWithoutStore(t *testing.T) {
	e, _ := newEngine(t, engineOpts{ledger: &scriptedLedger{}})
	got, err := e.History(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Nil(t, got)
}
