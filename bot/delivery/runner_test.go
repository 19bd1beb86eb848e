package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, _ int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return n.err
}

func (n *recordingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

func TestRunSendsSequenceInOrder(t *testing.T) {
	notify := &recordingNotifier{}
	r := &Runner{StepDelay: time.Millisecond}
	doneCalled := false

	r.Run(context.Background(), notify, 42, 3, func() { doneCalled = true })

	require.True(t, doneCalled)
	got := notify.messages()
	require.Len(t, got, 4)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, fmt.Sprintf("🗣 Message %d of %d sent!", i, 3), got[i-1])
	}
	assert.Equal(t, "🎉 All done! Every message has been sent.", got[3])
}

func TestRunZeroCountSendsOnlyCompletion(t *testing.T) {
	notify := &recordingNotifier{}
	r := &Runner{StepDelay: time.Millisecond}

	r.Run(context.Background(), notify, 42, 0, nil)

	got := notify.messages()
	require.Len(t, got, 1)
	assert.Equal(t, "🎉 All done! Every message has been sent.", got[0])
}

func TestRunContinuesPastSendFailures(t *testing.T) {
	notify := &recordingNotifier{err: errors.New("chat blocked")}
	r := &Runner{StepDelay: time.Millisecond}

	r.Run(context.Background(), notify, 42, 2, nil)

	assert.Len(t, notify.messages(), 3)
}

func TestRunCancellationStopsEarly(t *testing.T) {
	notify := &recordingNotifier{}
	r := &Runner{StepDelay: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go r.Run(ctx, notify, 42, 100, func() { close(done) })

	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done was not invoked after cancellation")
	}

	got := notify.messages()
	assert.Less(t, len(got), 101)
	for _, m := range got {
		assert.NotEqual(t, "🎉 All done! Every message has been sent.", m)
	}
}

func TestRunNilNotifierDoesNotPanic(t *testing.T) {
	r := &Runner{StepDelay: time.Millisecond}
	assert.NotPanics(t, func() {
		r.Run(context.Background(), nil, 42, 2, nil)
	})
}
