package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/hub"
	"github.com/mmcdole/groundlink/internal/log"
	"github.com/mmcdole/groundlink/internal/simulator"
)

// recorder logs component calls in order
type recorder struct {
	mu     sync.Mutex
	events []string
	// liveAtDetach records whether the session still had open subscriptions
	liveAtDetach []bool
}

func (r *recorder) Attach(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "attach "+string(sess.Identity))
}

func (r *recorder) Detach(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "detach "+string(sess.Identity))
	r.liveAtDetach = append(r.liveAtDetach, sess.Live())
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func drain(o *hub.Observer) []hub.Notification {
	var out []hub.Notification
	for {
		select {
		case n := <-o.C():
			out = append(out, n)
		default:
			return out
		}
	}
}

func values(ns []hub.Notification) []any {
	out := make([]any, len(ns))
	for i, n := range ns {
		out[i] = n.Value
	}
	return out
}

func newTestManager(t *testing.T, components ...Component) (*Manager, *simulator.Simulator, *hub.Hub) {
	t.Helper()
	cfg := simulator.DefaultConfig()
	cfg.MediaCount = 0
	sim := simulator.New(cfg, log.NullLogger())
	h := hub.New(log.NullLogger())
	m := NewManager(domain.RoleDrone, sim, h, log.NullLogger(), components...)
	t.Cleanup(m.Stop)
	return m, sim, h
}

func Test_Manager_StartsWithoutDevice(t *testing.T) {
	m, _, h := newTestManager(t)
	m.Start()

	require.Equal(t, StateNoDevice, m.State())
	require.Equal(t, domain.NoDevice, m.Identity())
	require.Nil(t, m.Current())

	st, ok := hub.LatestAs[domain.ConnectionState](h, hub.ConnectionDrone)
	require.True(t, ok)
	require.Equal(t, domain.StateDisconnected, st)

	b, ok := hub.LatestAs[domain.Battery](h, hub.BatteryDrone)
	require.True(t, ok)
	require.False(t, b.Known)
}

func Test_Manager_AttachPublishesDeviceState(t *testing.T) {
	rec := &recorder{}
	m, sim, h := newTestManager(t, rec)
	m.Start()

	sim.ConnectAs(domain.RoleDrone, "A")

	require.Equal(t, StateAttached, m.State())
	require.Equal(t, domain.DeviceIdentity("A"), m.Identity())
	require.Equal(t, []string{"attach A"}, rec.Events())

	st, _ := hub.LatestAs[domain.ConnectionState](h, hub.ConnectionDrone)
	require.Equal(t, domain.StateConnected, st)
	b, _ := hub.LatestAs[domain.Battery](h, hub.BatteryDrone)
	require.Equal(t, domain.BatteryLevel(87), b)

	sim.SetBattery(domain.RoleDrone, 42)
	b, _ = hub.LatestAs[domain.Battery](h, hub.BatteryDrone)
	require.Equal(t, domain.BatteryLevel(42), b)
}

func Test_Manager_IdentityChangeTearsDownBeforeAttach(t *testing.T) {
	rec := &recorder{}
	m, sim, h := newTestManager(t, rec)
	m.Start()
	sim.ConnectAs(domain.RoleDrone, "A")

	o := h.Subscribe(hub.ConnectionDrone)
	defer o.Close()
	drain(o)

	sim.ConnectAs(domain.RoleDrone, "B")

	require.Equal(t, []string{"attach A", "detach A", "attach B"}, rec.Events())
	require.Equal(t, []bool{false}, rec.liveAtDetach, "subscriptions close before components detach")
	require.Equal(t,
		[]any{domain.StateDisconnected, domain.StateConnected},
		values(drain(o)),
		"reset is published between the two devices",
	)
	require.Equal(t, uint64(2), m.Current().Generation)
}

func Test_Manager_DuplicateIdentityIsIgnored(t *testing.T) {
	rec := &recorder{}
	m, sim, _ := newTestManager(t, rec)
	m.Start()
	sim.ConnectAs(domain.RoleDrone, "A")
	sess := m.Current()

	m.HandleIdentity("A")
	m.HandleIdentity("A")

	require.Same(t, sess, m.Current())
	require.Equal(t, []string{"attach A"}, rec.Events())
}

func Test_Manager_DeviceLossResets(t *testing.T) {
	rec := &recorder{}
	m, sim, h := newTestManager(t, rec)
	m.Start()
	sim.ConnectAs(domain.RoleDrone, "A")

	o := h.Subscribe(hub.ConnectionDrone, hub.BatteryDrone)
	defer o.Close()
	drain(o)

	sim.Disconnect(domain.RoleDrone)

	require.Equal(t, StateNoDevice, m.State())
	require.Equal(t, []string{"attach A", "detach A"}, rec.Events())
	require.Equal(t,
		[]any{domain.StateDisconnecting, domain.StateDisconnected, domain.Battery{}},
		values(drain(o)),
	)
}

func Test_Manager_DropsStaleDelivery(t *testing.T) {
	m, sim, h := newTestManager(t)
	m.Start()
	sim.ConnectAs(domain.RoleDrone, "A")
	old := m.Current()
	sim.ConnectAs(domain.RoleDrone, "B")

	o := h.Subscribe(hub.BatteryDrone)
	defer o.Close()
	drain(o)

	m.deliver(old, hub.BatteryDrone, domain.BatteryLevel(5))
	require.Empty(t, drain(o))

	m.deliver(m.Current(), hub.BatteryDrone, domain.BatteryLevel(6))
	require.Equal(t, []any{domain.BatteryLevel(6)}, values(drain(o)))
}

func Test_Manager_StopDetaches(t *testing.T) {
	rec := &recorder{}
	m, sim, _ := newTestManager(t, rec)
	m.Start()
	sim.ConnectAs(domain.RoleDrone, "A")

	m.Stop()
	require.Equal(t, StateNoDevice, m.State())
	require.Equal(t, []string{"attach A", "detach A"}, rec.Events())

	// A stopped manager never attaches again
	m.HandleIdentity("C")
	require.Equal(t, StateNoDevice, m.State())
}

// absent is a transport with no device streams at all
type absent struct{}

func (absent) ObserveIdentity(domain.DeviceRole) domain.Stream[domain.DeviceIdentity] { return nil }
func (absent) ObserveState(domain.DeviceRole) domain.Stream[domain.ConnectionState]   { return nil }
func (absent) ObserveBattery(domain.DeviceRole) domain.Stream[int]                    { return nil }

func Test_Manager_UnavailableIdentityStream(t *testing.T) {
	h := hub.New(log.NullLogger())
	m := NewManager(domain.RoleRemote, absent{}, h, log.NullLogger())
	m.Start()
	defer m.Stop()

	require.Equal(t, StateNoDevice, m.State())
	st, ok := hub.LatestAs[domain.ConnectionState](h, hub.ConnectionRemote)
	require.True(t, ok)
	require.Equal(t, domain.StateDisconnected, st)

	// Attaching with absent peripherals still works; the subscriptions are closed
	m.HandleIdentity("R")
	require.Equal(t, StateAttached, m.State())
}

func Test_Session_TrackAfterClose(t *testing.T) {
	sess := New(domain.RoleDrone, "A", 1)
	sess.Close()
	require.False(t, sess.Live())

	c := &countingCloser{}
	require.False(t, sess.Track(c))
	require.Equal(t, 1, c.n)
}

func Test_Session_ClosesInReverseOrder(t *testing.T) {
	sess := New(domain.RoleDrone, "A", 1)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		sess.Track(closerFunc(func() { order = append(order, i) }))
	}
	sess.Close()
	sess.Close()
	require.Equal(t, []int{2, 1, 0}, order)
}

type countingCloser struct{ n int }

func (c *countingCloser) Close() { c.n++ }

type closerFunc func()

func (f closerFunc) Close() { f() }
