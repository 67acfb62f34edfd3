// Package hub is the process-wide publish point the UI layer observes.
//
// Each channel keeps only its latest value. A new observer is first handed the
// latest value of every channel it watches, then every later publish in order.
package hub

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/mmcdole/groundlink/internal/domain"
)

// Channel names a logical stream of published state
type Channel string

const (
	ConnectionDrone  Channel = "connection.drone"
	ConnectionRemote Channel = "connection.rc"
	BatteryDrone     Channel = "battery.drone"
	BatteryRemote    Channel = "battery.rc"
	CatalogSnapshot  Channel = "catalog.snapshot"
	CatalogStore     Channel = "catalog.store"
	TransferProgress Channel = "transfer.progress"
)

// AllChannels lists every channel the core publishes on
var AllChannels = []Channel{
	ConnectionDrone, ConnectionRemote,
	BatteryDrone, BatteryRemote,
	CatalogSnapshot, CatalogStore,
	TransferProgress,
}

// ConnectionChannel returns the connection channel for a device role
func ConnectionChannel(role domain.DeviceRole) Channel {
	if role == domain.RoleRemote {
		return ConnectionRemote
	}
	return ConnectionDrone
}

// BatteryChannel returns the battery channel for a device role
func BatteryChannel(role domain.DeviceRole) Channel {
	if role == domain.RoleRemote {
		return BatteryRemote
	}
	return BatteryDrone
}

const defaultBuffer = 256

// Notification is one published value
type Notification struct {
	Channel Channel
	Value   any
	Seq     uint64 // Hub-wide publish sequence
}

// Hub delivers published values to observers through buffered channels, so a
// publisher never waits on a reader.
type Hub struct {
	mu        sync.Mutex
	latest    map[Channel]Notification
	observers map[*Observer]struct{}
	seq       uint64
	buffer    int
	logger    *slog.Logger
}

// New creates an empty hub
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		latest:    make(map[Channel]Notification),
		observers: make(map[*Observer]struct{}),
		buffer:    defaultBuffer,
		logger:    logger,
	}
}

// Publish replaces the latest value of ch and delivers it to every observer
// watching ch.
func (h *Hub) Publish(ch Channel, v any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	n := Notification{Channel: ch, Value: v, Seq: h.seq}
	h.latest[ch] = n

	for o := range h.observers {
		if o.watches(ch) {
			o.offer(n)
		}
	}
}

// Latest returns the current value of ch
func (h *Hub) Latest(ch Channel) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.latest[ch]
	return n.Value, ok
}

// LatestAs returns the current value of ch when it has type T
func LatestAs[T any](h *Hub, ch Channel) (T, bool) {
	v, ok := h.Latest(ch)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Subscribe registers an observer for the given channels (all channels when
// none are given). The observer's queue starts with the latest value of each
// watched channel, oldest publish first.
func (h *Hub) Subscribe(channels ...Channel) *Observer {
	o := &Observer{
		hub: h,
		ch:  make(chan Notification, h.buffer),
	}
	if len(channels) > 0 {
		o.channels = make(map[Channel]bool, len(channels))
		for _, c := range channels {
			o.channels[c] = true
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	replay := make([]Notification, 0, len(h.latest))
	for c, n := range h.latest {
		if o.watches(c) {
			replay = append(replay, n)
		}
	}
	sort.Slice(replay, func(i, j int) bool { return replay[i].Seq < replay[j].Seq })
	for _, n := range replay {
		o.offer(n)
	}

	h.observers[o] = struct{}{}
	return o
}

func (h *Hub) remove(o *Observer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.observers[o]; !ok {
		return false
	}
	delete(h.observers, o)
	close(o.ch)
	if o.dropped > 0 {
		h.logger.Warn("observer dropped notifications", "count", o.dropped)
	}
	return true
}

// Observer receives notifications for its channels until closed.
type Observer struct {
	hub      *Hub
	channels map[Channel]bool // nil watches everything
	ch       chan Notification
	dropped  int // guarded by hub.mu
}

// C returns the notification queue. It is closed by Close.
func (o *Observer) C() <-chan Notification { return o.ch }

// Close unregisters the observer. Closing twice is a no-op.
func (o *Observer) Close() {
	o.hub.remove(o)
}

// Dropped returns how many notifications were discarded because the reader
// fell behind.
func (o *Observer) Dropped() int {
	o.hub.mu.Lock()
	defer o.hub.mu.Unlock()
	return o.dropped
}

func (o *Observer) watches(c Channel) bool {
	return o.channels == nil || o.channels[c]
}

// offer queues n, discarding the oldest queued notification when full.
// Called with hub.mu held.
func (o *Observer) offer(n Notification) {
	select {
	case o.ch <- n:
		return
	default:
	}
	select {
	case <-o.ch:
		o.dropped++
	default:
	}
	select {
	case o.ch <- n:
	default:
		o.dropped++
	}
}
