package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateOfUnknownUser(t *testing.T) {
	m := NewManager()
	assert.Equal(t, StateIdle, m.StateOf(1))
	assert.False(t, m.InProgress(1))
}

func TestUpdateCreatesAndMutates(t *testing.T) {
	m := NewManager()
	m.Update(7, func(s *Session) {
		s.State = StateAwaitingToken
	})
	assert.Equal(t, StateAwaitingToken, m.StateOf(7))

	snap := m.Snapshot(7)
	assert.Equal(t, int64(7), snap.UserID)
	assert.Equal(t, StateAwaitingToken, snap.State)
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewManager()
	m.Update(7, func(s *Session) {
		s.TokenAddress = "abc"
	})
	snap := m.Snapshot(7)
	snap.TokenAddress = "mutated"
	assert.Equal(t, "abc", m.Snapshot(7).TokenAddress)
}

func TestInProgress(t *testing.T) {
	cases := []struct {
		state State
		want  bool
	}{
		{StateIdle, false},
		{StateAwaitingToken, true},
		{StateAwaitingTier, true},
		{StateAwaitingPayment, true},
		{StateRunning, true},
		{StateCompleted, false},
	}
	m := NewManager()
	for _, tc := range cases {
		m.Update(1, func(s *Session) { s.State = tc.state })
		assert.Equal(t, tc.want, m.InProgress(1), "state %s", tc.state)
	}
}

func TestResetFlow(t *testing.T) {
	m := NewManager()
	m.Update(1, func(s *Session) {
		s.State = StateAwaitingPayment
		s.TokenAddress = "abc"
		s.VerifyInFlight = true
	})
	m.Update(1, func(s *Session) { s.ResetFlow() })

	snap := m.Snapshot(1)
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.TokenAddress)
	assert.Nil(t, snap.Tier)
	assert.False(t, snap.VerifyInFlight)
	assert.True(t, snap.PaymentDeadline.IsZero())
	assert.Equal(t, uint64(1), snap.Epoch)

	m.Update(1, func(s *Session) { s.ResetFlow() })
	assert.Equal(t, uint64(2), m.Snapshot(1).Epoch, "every reset advances the epoch")
}

func TestConcurrentUsersDoNotInterfere(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for id := int64(1); id <= 20; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.Update(id, func(s *Session) { s.State = StateAwaitingToken })
				m.Update(id, func(s *Session) { s.ResetFlow() })
			}
		}(id)
	}
	wg.Wait()
	for id := int64(1); id <= 20; id++ {
		assert.Equal(t, StateIdle, m.StateOf(id))
	}
}
