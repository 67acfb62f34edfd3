// Package session tracks which device is bound to each role and owns the
// subscriptions opened for it.
package session

import (
	"sync"

	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/subscription"
)

// State is the per-role session state
type State string

const (
	StateNoDevice State = "NO_DEVICE"
	StateAttached State = "ATTACHED"
)

// Session is the live association with one identified device. A session is
// never mutated into another device's session: an identity change closes it
// and builds a new one.
type Session struct {
	Role       domain.DeviceRole
	Identity   domain.DeviceIdentity
	Generation uint64

	mu     sync.Mutex
	subs   []subscription.Closer
	closed bool
}

// New creates a live session for id. Managers build their own sessions;
// New serves code that drives components directly.
func New(role domain.DeviceRole, id domain.DeviceIdentity, gen uint64) *Session {
	return &Session{Role: role, Identity: id, Generation: gen}
}

// Track adds c to the set closed on teardown. If the session is already
// closed, c is closed immediately and Track returns false.
func (s *Session) Track(c subscription.Closer) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		c.Close()
		return false
	}
	s.subs = append(s.subs, c)
	s.mu.Unlock()
	return true
}

// Live reports whether the session has not been torn down
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Close closes every tracked subscription, most recent first. Closing twice
// is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].Close()
	}
}

// Component is attached to every session a Manager builds and detached when
// that session is torn down. Detach runs after the session's subscriptions
// are closed and before the reset state is published.
type Component interface {
	Attach(sess *Session)
	Detach(sess *Session)
}
