// Package simulator is an in-memory drone, remote controller and media store.
// It implements the device transport and media catalog interfaces so the core
// can run without hardware.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/groundlink/internal/domain"
)

var (
	_ domain.DeviceTransport     = (*Simulator)(nil)
	_ domain.MediaCatalogService = (*Simulator)(nil)
)

// ErrInjected is reported by a transfer failed through FailNextTransfer
var ErrInjected = errors.New("simulated device failure")

// Config holds simulator settings
type Config struct {
	DroneID        domain.DeviceIdentity
	RemoteID       domain.DeviceIdentity
	MediaCount     int
	Battery        int
	ThumbnailDelay time.Duration
	StepInterval   time.Duration // Time between progress pushes of a device task
	StepsPerItem   int
}

// DefaultConfig returns a small simulated fleet
func DefaultConfig() Config {
	return Config{
		DroneID:        "SIM-DRONE-0001",
		RemoteID:       "SIM-RC-0001",
		MediaCount:     12,
		Battery:        87,
		ThumbnailDelay: 150 * time.Millisecond,
		StepInterval:   200 * time.Millisecond,
		StepsPerItem:   4,
	}
}

type device struct {
	identity *Feed[domain.DeviceIdentity]
	state    *Feed[domain.ConnectionState]
	battery  *Feed[int]
	present  domain.DeviceIdentity
}

func newDevice() *device {
	d := &device{
		identity: NewFeed[domain.DeviceIdentity](),
		state:    NewFeed[domain.ConnectionState](),
		battery:  NewFeed[int](),
	}
	d.identity.Push(domain.NoDevice)
	d.state.SetAvailable(false)
	d.battery.SetAvailable(false)
	return d
}

// Simulator drives every feed from test or demo code
type Simulator struct {
	cfg    Config
	logger *slog.Logger

	devices map[domain.DeviceRole]*device
	browse  *Feed[[]domain.MediaItem]
	store   *Feed[domain.MediaStoreInfo]

	mu         sync.Mutex
	items      []domain.MediaItem
	seq        int
	failThumbs map[string]bool
	failNext   error
	tasks      sync.WaitGroup
}

// New creates a simulator with no device connected and cfg.MediaCount items
// on the drone's media store.
func New(cfg Config, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StepsPerItem <= 0 {
		cfg.StepsPerItem = 1
	}
	s := &Simulator{
		cfg:    cfg,
		logger: logger.With("component", "simulator"),
		devices: map[domain.DeviceRole]*device{
			domain.RoleDrone:  newDevice(),
			domain.RoleRemote: newDevice(),
		},
		browse:     NewFeed[[]domain.MediaItem](),
		store:      NewFeed[domain.MediaStoreInfo](),
		failThumbs: make(map[string]bool),
	}
	s.browse.SetAvailable(false)
	s.store.SetAvailable(false)
	for i := 0; i < cfg.MediaCount; i++ {
		s.items = append(s.items, s.newItemLocked())
	}
	return s
}

func (s *Simulator) newItemLocked() domain.MediaItem {
	s.seq++
	n := s.seq
	id := fmt.Sprintf("media-%04d", n)
	if n%3 == 0 {
		return domain.MediaItem{
			ID:   id,
			Name: fmt.Sprintf("DJI_%04d.MP4", n),
			Kind: domain.MediaKindVideo,
			Resources: []domain.Resource{{
				ID:       id + "-r0",
				MediaID:  id,
				Size:     int64(180+n%7*40) << 20,
				Duration: time.Duration(20+n%5*17) * time.Second,
			}},
		}
	}
	return domain.MediaItem{
		ID:   id,
		Name: fmt.Sprintf("DJI_%04d.JPG", n),
		Kind: domain.MediaKindPhoto,
		Resources: []domain.Resource{
			{ID: id + "-jpg", MediaID: id, Size: int64(6+n%4) << 20},
			{ID: id + "-dng", MediaID: id, Size: int64(24+n%6) << 20},
		},
	}
}

// === domain.DeviceTransport ===

func (s *Simulator) ObserveIdentity(role domain.DeviceRole) domain.Stream[domain.DeviceIdentity] {
	d, ok := s.devices[role]
	if !ok {
		return nil
	}
	return d.identity
}

func (s *Simulator) ObserveState(role domain.DeviceRole) domain.Stream[domain.ConnectionState] {
	d, ok := s.devices[role]
	if !ok {
		return nil
	}
	return d.state
}

func (s *Simulator) ObserveBattery(role domain.DeviceRole) domain.Stream[int] {
	d, ok := s.devices[role]
	if !ok {
		return nil
	}
	return d.battery
}

// === Device control ===

// Connect binds the configured device to role
func (s *Simulator) Connect(role domain.DeviceRole) {
	id := s.cfg.DroneID
	if role == domain.RoleRemote {
		id = s.cfg.RemoteID
	}
	s.ConnectAs(role, id)
}

// ConnectAs binds a device with the given identity to role, replacing any
// device already bound to it.
func (s *Simulator) ConnectAs(role domain.DeviceRole, id domain.DeviceIdentity) {
	d := s.devices[role]

	s.mu.Lock()
	d.present = id
	s.mu.Unlock()

	// Peripherals exist before the identity announces them
	d.state.SetAvailable(true)
	d.state.Store(domain.StateConnected)
	d.battery.SetAvailable(true)
	d.battery.Store(s.cfg.Battery)
	if role == domain.RoleDrone {
		s.browse.SetAvailable(true)
		s.store.SetAvailable(true)
		s.pushCatalog()
	}

	s.logger.Info("device connected", "role", string(role), "device", string(id))
	d.identity.Push(id)
}

// Disconnect unbinds the device of role
func (s *Simulator) Disconnect(role domain.DeviceRole) {
	d := s.devices[role]

	s.mu.Lock()
	d.present = domain.NoDevice
	s.mu.Unlock()

	d.state.Push(domain.StateDisconnecting)
	d.identity.Push(domain.NoDevice)
	d.state.SetAvailable(false)
	d.battery.SetAvailable(false)
	if role == domain.RoleDrone {
		s.browse.SetAvailable(false)
		s.store.SetAvailable(false)
	}
	s.logger.Info("device disconnected", "role", string(role))
}

// Connected returns the identity bound to role
func (s *Simulator) Connected(role domain.DeviceRole) domain.DeviceIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices[role].present
}

// SetState pushes a connection state for role
func (s *Simulator) SetState(role domain.DeviceRole, st domain.ConnectionState) {
	s.devices[role].state.Push(st)
}

// SetBattery pushes a battery percentage for role
func (s *Simulator) SetBattery(role domain.DeviceRole, percent int) {
	s.devices[role].battery.Push(percent)
}

// === Media store control ===

// SetMedia replaces the drone's media list and notifies the catalog feed
func (s *Simulator) SetMedia(items []domain.MediaItem) {
	s.mu.Lock()
	s.items = make([]domain.MediaItem, len(items))
	for i, item := range items {
		s.items[i] = item.Clone()
	}
	s.mu.Unlock()
	s.pushCatalog()
}

// Capture adds n new media items, as if the drone took pictures
func (s *Simulator) Capture(n int) {
	s.mu.Lock()
	for i := 0; i < n; i++ {
		s.items = append(s.items, s.newItemLocked())
	}
	s.mu.Unlock()
	s.pushCatalog()
}

// Media returns the current media list
func (s *Simulator) Media() []domain.MediaItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// FailThumbnail makes every fetch of the item's thumbnail fail
func (s *Simulator) FailThumbnail(itemID string) {
	s.mu.Lock()
	s.failThumbs[itemID] = true
	s.mu.Unlock()
}

// FailNextTransfer makes the next device task report err after its first step
func (s *Simulator) FailNextTransfer(err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// Wait blocks until every running device task has stopped
func (s *Simulator) Wait() { s.tasks.Wait() }

func (s *Simulator) pushCatalog() {
	s.mu.Lock()
	items := cloneItems(s.items)
	s.mu.Unlock()

	s.store.Push(storeInfo(items))
	s.browse.Push(items)
}

func storeInfo(items []domain.MediaItem) domain.MediaStoreInfo {
	info := domain.MediaStoreInfo{Indexing: domain.IndexingIndexed}
	for _, item := range items {
		if item.Kind == domain.MediaKindVideo {
			info.VideoCount++
		} else {
			info.PhotoCount++
		}
	}
	return info
}

func cloneItems(items []domain.MediaItem) []domain.MediaItem {
	out := make([]domain.MediaItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// === domain.MediaCatalogService ===

func (s *Simulator) Browse() domain.Stream[[]domain.MediaItem] { return s.browse }

func (s *Simulator) ObserveStore() domain.Stream[domain.MediaStoreInfo] { return s.store }

// FetchThumbnail answers after the configured delay
func (s *Simulator) FetchThumbnail(ctx context.Context, item domain.MediaItem, deliver func(domain.Thumbnail, error)) {
	s.mu.Lock()
	fail := s.failThumbs[item.ID]
	s.mu.Unlock()

	go func() {
		timer := time.NewTimer(s.cfg.ThumbnailDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			deliver(nil, ctx.Err())
		case <-timer.C:
			if fail {
				deliver(nil, fmt.Errorf("thumbnail %s: %w", item.ID, domain.ErrUnavailable))
				return
			}
			deliver(Thumbnail(item), nil)
		}
	}()
}

// Thumbnail returns the simulated thumbnail bytes of item
func Thumbnail(item domain.MediaItem) domain.Thumbnail {
	return domain.Thumbnail("thumb:" + item.ID)
}

func (s *Simulator) StartDownload(resources []domain.Resource) domain.Stream[domain.TransferEvent] {
	return s.task("download", resources, func(r domain.Resource) *domain.CompletedFile {
		return &domain.CompletedFile{Name: r.ID, Path: r.ID, Size: r.Size}
	})
}

func (s *Simulator) StartDelete(resources []domain.Resource) domain.Stream[domain.TransferEvent] {
	return s.task("delete", resources, func(r domain.Resource) *domain.CompletedFile {
		s.removeResource(r)
		return nil
	})
}

func (s *Simulator) StartWipe() domain.Stream[domain.TransferEvent] {
	s.mu.Lock()
	var resources []domain.Resource
	for _, item := range s.items {
		if len(item.Resources) > 0 {
			resources = append(resources, item.Resources[0])
		}
	}
	s.mu.Unlock()

	return s.task("wipe", resources, func(r domain.Resource) *domain.CompletedFile {
		s.mu.Lock()
		s.items = removeItem(s.items, r.MediaID)
		items := cloneItems(s.items)
		s.mu.Unlock()
		// The catalog feed is not told; a client has to browse again
		s.browse.Store(items)
		s.store.Push(storeInfo(items))
		return nil
	})
}

func (s *Simulator) removeResource(r domain.Resource) {
	s.mu.Lock()
	for i, item := range s.items {
		if item.ID != r.MediaID {
			continue
		}
		kept := item.Resources[:0:0]
		for _, res := range item.Resources {
			if res.ID != r.ID {
				kept = append(kept, res)
			}
		}
		if len(kept) == 0 {
			s.items = removeItem(s.items, item.ID)
		} else {
			s.items[i].Resources = kept
		}
		break
	}
	s.mu.Unlock()
	s.pushCatalog()
}

func removeItem(items []domain.MediaItem, id string) []domain.MediaItem {
	out := items[:0:0]
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

// task returns a stream that runs one device task per observer. Releasing the
// registration stops the task.
func (s *Simulator) task(name string, resources []domain.Resource, finish func(domain.Resource) *domain.CompletedFile) domain.Stream[domain.TransferEvent] {
	return domain.StreamFunc[domain.TransferEvent](func(deliver func(domain.TransferEvent)) (func(), error) {
		if !s.Connected(domain.RoleDrone).Present() {
			return nil, domain.ErrUnavailable
		}

		s.mu.Lock()
		failErr := s.failNext
		s.failNext = nil
		s.mu.Unlock()

		stop := make(chan struct{})
		var once sync.Once
		release := func() { once.Do(func() { close(stop) }) }

		s.tasks.Add(1)
		go func() {
			defer s.tasks.Done()
			s.run(name, resources, finish, failErr, stop, deliver)
		}()
		return release, nil
	})
}

func (s *Simulator) run(
	name string,
	resources []domain.Resource,
	finish func(domain.Resource) *domain.CompletedFile,
	failErr error,
	stop <-chan struct{},
	deliver func(domain.TransferEvent),
) {
	steps := s.cfg.StepsPerItem
	total := len(resources) * steps
	done := 0

	tick := func() bool {
		select {
		case <-stop:
			return false
		case <-time.After(s.cfg.StepInterval):
			return true
		}
	}

	s.logger.Debug("device task started", "task", name, "resources", len(resources))
	for _, r := range resources {
		cur := r
		for step := 0; step < steps; step++ {
			if !tick() {
				s.logger.Debug("device task stopped", "task", name)
				return
			}
			if failErr != nil {
				deliver(domain.TransferEvent{Status: domain.DeviceTaskError, Err: failErr})
				return
			}
			done++
			deliver(domain.TransferEvent{
				Status:   domain.DeviceTaskRunning,
				Progress: done * 100 / total,
				Current:  &cur,
			})
		}
		file := finish(r)
		deliver(domain.TransferEvent{
			Status:   domain.DeviceTaskFileProcessed,
			Progress: done * 100 / total,
			Current:  &cur,
			File:     file,
		})
	}
	if !tick() {
		return
	}
	if failErr != nil {
		deliver(domain.TransferEvent{Status: domain.DeviceTaskError, Err: failErr})
		return
	}
	deliver(domain.TransferEvent{Status: domain.DeviceTaskComplete, Progress: 100})
}
