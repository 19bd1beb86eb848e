package payments

import (
	"sync"
	"time"
)

// Supervisor arms at most one payment-window timer per user. The fire
// callback runs on the timer goroutine and is expected to re-check session
// state before acting, so a timer that lost the race to a verified payment
// becomes a no-op.
type Supervisor struct {
	mu     sync.Mutex
	timers map[int64]*time.Timer
}

// NewSupervisor constructs an empty supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{timers: make(map[int64]*time.Timer)}
}

// Arm schedules fire after window, replacing any pending timer for the user.
func (s *Supervisor) Arm(userID int64, window time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[userID]; ok {
		t.Stop()
	}
	s.timers[userID] = time.AfterFunc(window, func() {
		s.mu.Lock()
		delete(s.timers, userID)
		s.mu.Unlock()
		fire()
	})
}

// Disarm cancels a pending timer for the user, if any.
func (s *Supervisor) Disarm(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[userID]; ok {
		t.Stop()
		delete(s.timers, userID)
	}
}

// Armed reports whether a timer is currently pending for the user.
func (s *Supervisor) Armed(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[userID]
	return ok
}
