package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorFires(t *testing.T) {
	s := NewSupervisor()
	fired := make(chan struct{}, 1)
	s.Arm(1, 10*time.Millisecond, func() { fired <- struct{}{} })
	assert.True(t, s.Armed(1))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	require.Eventually(t, func() bool { return !s.Armed(1) }, time.Second, 5*time.Millisecond)
}

func TestSupervisorDisarm(t *testing.T) {
	s := NewSupervisor()
	fired := make(chan struct{}, 1)
	s.Arm(1, 20*time.Millisecond, func() { fired <- struct{}{} })
	s.Disarm(1)
	assert.False(t, s.Armed(1))

	select {
	case <-fired:
		t.Fatal("disarmed timer fired")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestSupervisorRearmReplaces(t *testing.T) {
	s := NewSupervisor()
	fired := make(chan string, 2)
	s.Arm(7, 15*time.Millisecond, func() { fired <- "first" })
	s.Arm(7, 30*time.Millisecond, func() { fired <- "second" })

	select {
	case got := <-fired:
		assert.Equal(t, "second", got)
	case <-time.After(time.Second):
		t.Fatal("replacement timer did not fire")
	}
	select {
	case got := <-fired:
		t.Fatalf("extra fire: %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSupervisorIndependentUsers(t *testing.T) {
	s := NewSupervisor()
	fired := make(chan int64, 2)
	s.Arm(1, 10*time.Millisecond, func() { fired <- 1 })
	s.Arm(2, 20*time.Millisecond, func() { fired <- 2 })
	s.Disarm(1)

	select {
	case id := <-fired:
		assert.Equal(t, int64(2), id)
	case <-time.After(time.Second):
		t.Fatal("timer for user 2 did not fire")
	}
}
