package session

import (
	"log/slog"
	"sync"

	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/hub"
	"github.com/mmcdole/groundlink/internal/subscription"
)

// Manager runs the NO_DEVICE / ATTACHED state machine for one device role.
//
// Every identity change is handled as teardown then attach:
//  1. close every subscription of the old session
//  2. detach every component (transfers fail, fan-outs are abandoned)
//  3. publish the reset state
//  4. build the new session and open its subscriptions
//
// Deliveries are published only while their session is current, so nothing
// from an old device reaches the hub after its reset.
type Manager struct {
	role       domain.DeviceRole
	transport  domain.DeviceTransport
	hub        *hub.Hub
	components []Component
	logger     *slog.Logger

	transition sync.Mutex // Serializes identity transitions

	mu       sync.Mutex
	session  *Session
	current  domain.DeviceIdentity
	gen      uint64
	identity *subscription.Subscription[domain.DeviceIdentity]
	stopped  bool
}

// NewManager creates a manager for role. Components are attached in order
// and detached in reverse order.
func NewManager(
	role domain.DeviceRole,
	transport domain.DeviceTransport,
	h *hub.Hub,
	logger *slog.Logger,
	components ...Component,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		role:       role,
		transport:  transport,
		hub:        h,
		components: components,
		logger:     logger.With("role", string(role)),
	}
}

// Start publishes the initial reset state and begins observing the role's
// identity. An unavailable identity stream leaves the manager in NO_DEVICE.
func (m *Manager) Start() {
	m.publishReset()

	sub := subscription.Open(m.transport.ObserveIdentity(m.role), m.HandleIdentity)
	if sub.IsClosed() {
		m.logger.Warn("identity stream unavailable")
	}

	m.mu.Lock()
	m.identity = sub
	m.mu.Unlock()
}

// Stop stops observing identity and tears down the current session
func (m *Manager) Stop() {
	m.transition.Lock()
	m.mu.Lock()
	m.stopped = true
	sub := m.identity
	m.identity = nil
	m.mu.Unlock()
	m.transition.Unlock()

	if sub != nil {
		sub.Close()
	}
	m.HandleIdentity(domain.NoDevice)
}

// HandleIdentity applies one observed identity value.
func (m *Manager) HandleIdentity(id domain.DeviceIdentity) {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	if m.stopped && id.Present() {
		m.mu.Unlock()
		return
	}
	if id == m.current {
		m.mu.Unlock()
		return
	}
	old := m.session
	prev := m.current
	m.session = nil
	m.current = id
	m.mu.Unlock()

	if old != nil {
		m.teardown(old)
	}

	m.logger.Info("device identity changed", "from", prev.String(), "to", id.String())

	if id.Present() {
		m.attach(id)
	}
}

func (m *Manager) teardown(old *Session) {
	old.Close()
	for i := len(m.components) - 1; i >= 0; i-- {
		m.components[i].Detach(old)
	}
	m.publishReset()
	m.logger.Debug("session torn down", "device", string(old.Identity), "generation", old.Generation)
}

func (m *Manager) attach(id domain.DeviceIdentity) {
	m.mu.Lock()
	m.gen++
	sess := New(m.role, id, m.gen)
	m.session = sess
	m.mu.Unlock()

	sess.Track(subscription.Open(m.transport.ObserveState(m.role), func(st domain.ConnectionState) {
		m.deliver(sess, hub.ConnectionChannel(m.role), st)
	}))
	sess.Track(subscription.Open(m.transport.ObserveBattery(m.role), func(percent int) {
		m.deliver(sess, hub.BatteryChannel(m.role), domain.BatteryLevel(percent))
	}))

	for _, c := range m.components {
		c.Attach(sess)
	}
	m.logger.Debug("session attached", "device", string(id), "generation", sess.Generation)
}

// deliver publishes v only if sess is still the current session
func (m *Manager) deliver(sess *Session, ch hub.Channel, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != sess {
		m.logger.Debug("dropped stale delivery", "channel", string(ch), "generation", sess.Generation)
		return
	}
	m.hub.Publish(ch, v)
}

func (m *Manager) publishReset() {
	m.hub.Publish(hub.ConnectionChannel(m.role), domain.StateDisconnected)
	m.hub.Publish(hub.BatteryChannel(m.role), domain.Battery{})
}

// Role returns the role this manager tracks
func (m *Manager) Role() domain.DeviceRole { return m.role }

// State returns NO_DEVICE or ATTACHED
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return StateNoDevice
	}
	return StateAttached
}

// Identity returns the identity of the attached device, NoDevice when none
func (m *Manager) Identity() domain.DeviceIdentity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Current returns the live session, nil when no device is attached
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}
