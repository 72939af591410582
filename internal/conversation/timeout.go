package conversation

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultIdleTimeout is how long a session may wait for the user's next message.
const DefaultIdleTimeout = 5 * time.Minute

type armedTimer struct {
	timer clockwork.Timer
	token uint64
}

// Supervisor owns one idle timer per user. Arming replaces the previous timer;
// a timer that is never replaced or disarmed fires exactly once.
type Supervisor struct {
	clock  clockwork.Clock
	window time.Duration
	fire   func(userID int64, token uint64)

	mu      sync.Mutex
	timers  map[int64]armedTimer
	seq     uint64
	stopped bool
}

// NewSupervisor creates a Supervisor calling fire when a user's window elapses.
func NewSupervisor(clock clockwork.Clock, window time.Duration, fire func(userID int64, token uint64)) *Supervisor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = DefaultIdleTimeout
	}
	return &Supervisor{
		clock:  clock,
		window: window,
		fire:   fire,
		timers: make(map[int64]armedTimer),
	}
}

// Window returns the idle window.
func (s *Supervisor) Window() time.Duration {
	return s.window
}

// Arm (re)starts the user's idle timer and returns the token identifying it.
// The token is 0 after Stop.
func (s *Supervisor) Arm(userID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0
	}
	if prev, ok := s.timers[userID]; ok {
		prev.timer.Stop()
	}
	s.seq++
	token := s.seq
	t := s.clock.AfterFunc(s.window, func() { s.expire(userID, token) })
	s.timers[userID] = armedTimer{timer: t, token: token}
	return token
}

// Disarm cancels the user's idle timer, if any.
func (s *Supervisor) Disarm(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if armed, ok := s.timers[userID]; ok {
		armed.timer.Stop()
		delete(s.timers, userID)
	}
}

// Armed reports whether the user has a pending idle timer.
func (s *Supervisor) Armed(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[userID]
	return ok
}

// Pending returns the number of armed timers.
func (s *Supervisor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every timer; later Arm calls are ignored.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, armed := range s.timers {
		armed.timer.Stop()
		delete(s.timers, id)
	}
}

func (s *Supervisor) expire(userID int64, token uint64) {
	s.mu.Lock()
	armed, ok := s.timers[userID]
	if !ok || armed.token != token || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, userID)
	s.mu.Unlock()

	if s.fire != nil {
		s.fire(userID, token)
	}
}
