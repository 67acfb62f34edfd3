package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/hub"
	"github.com/mmcdole/groundlink/internal/log"
	"github.com/mmcdole/groundlink/internal/session"
)

// deviceTask is a device-side media task driven by the test
type deviceTask struct {
	mu       sync.Mutex
	deliver  func(domain.TransferEvent)
	released bool
}

func (d *deviceTask) Observe(deliver func(domain.TransferEvent)) (func(), error) {
	d.mu.Lock()
	d.deliver = deliver
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		d.released = true
		d.mu.Unlock()
	}, nil
}

func (d *deviceTask) push(ev domain.TransferEvent) {
	d.mu.Lock()
	deliver := d.deliver
	d.mu.Unlock()
	if deliver != nil {
		deliver(ev)
	}
}

func (d *deviceTask) isReleased() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

// fakeMedia hands out one deviceTask per started transfer
type fakeMedia struct {
	mu          sync.Mutex
	started     []*deviceTask
	resources   [][]domain.Resource
	unavailable bool
}

func (f *fakeMedia) start(resources []domain.Resource) domain.Stream[domain.TransferEvent] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources = append(f.resources, resources)
	if f.unavailable {
		return domain.StreamFunc[domain.TransferEvent](func(func(domain.TransferEvent)) (func(), error) {
			return nil, domain.ErrUnavailable
		})
	}
	d := &deviceTask{}
	f.started = append(f.started, d)
	return d
}

func (f *fakeMedia) last() *deviceTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started[len(f.started)-1]
}

func (f *fakeMedia) Browse() domain.Stream[[]domain.MediaItem]          { return nil }
func (f *fakeMedia) ObserveStore() domain.Stream[domain.MediaStoreInfo] { return nil }
func (f *fakeMedia) FetchThumbnail(context.Context, domain.MediaItem, func(domain.Thumbnail, error)) {
}
func (f *fakeMedia) StartDownload(r []domain.Resource) domain.Stream[domain.TransferEvent] {
	return f.start(r)
}
func (f *fakeMedia) StartDelete(r []domain.Resource) domain.Stream[domain.TransferEvent] {
	return f.start(r)
}
func (f *fakeMedia) StartWipe() domain.Stream[domain.TransferEvent] { return f.start(nil) }

// fakeCatalog counts refreshes
type fakeCatalog struct {
	mu        sync.Mutex
	snap      domain.CatalogSnapshot
	refreshes int
}

func (c *fakeCatalog) Latest() (domain.CatalogSnapshot, bool) {
	return c.snap, c.snap.Available()
}

func (c *fakeCatalog) Refresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshes++
	return true
}

func (c *fakeCatalog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}

// historyStore records finished tasks
type historyStore struct {
	domain.NoOpStore
	mu       sync.Mutex
	recorded []domain.TransferTask
}

func (s *historyStore) RecordTransfer(task domain.TransferTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, task)
	return nil
}

func (s *historyStore) all() []domain.TransferTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TransferTask(nil), s.recorded...)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	media   *fakeMedia
	catalog *fakeCatalog
	history *historyStore
	hub     *hub.Hub
	mgr     *Manager
	sess    *session.Session
	obs     *hub.Observer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		media:   &fakeMedia{},
		catalog: &fakeCatalog{},
		history: &historyStore{},
		hub:     hub.New(log.NullLogger()),
		sess:    session.New(domain.RoleDrone, "DRONE-A", 1),
	}
	opts = append([]Option{WithStallTimeout(0), WithHistory(f.history)}, opts...)
	f.mgr = NewManager(f.media, f.hub, f.catalog, log.NullLogger(), opts...)
	f.obs = f.hub.Subscribe(hub.TransferProgress)
	t.Cleanup(f.obs.Close)
	f.mgr.Attach(f.sess)
	return f
}

// states returns every published state of task id, in order
func (f *fixture) states(id string) []domain.TransferState {
	var out []domain.TransferState
	for {
		select {
		case n := <-f.obs.C():
			for _, task := range n.Value.([]domain.TransferTask) {
				if task.ID == id {
					out = append(out, task.State)
				}
			}
		default:
			return out
		}
	}
}

func resources(n int) []domain.Resource {
	out := make([]domain.Resource, n)
	for i := range out {
		out[i] = domain.Resource{ID: "r" + string(rune('0'+i)), MediaID: "m", Size: 100}
	}
	return out
}

func running(p int, r domain.Resource) domain.TransferEvent {
	return domain.TransferEvent{Status: domain.DeviceTaskRunning, Progress: p, Current: &r}
}

func processed(p int, r domain.Resource) domain.TransferEvent {
	return domain.TransferEvent{
		Status:   domain.DeviceTaskFileProcessed,
		Progress: p,
		Current:  &r,
		File:     &domain.CompletedFile{Name: r.ID, Path: "/tmp/" + r.ID, Size: r.Size},
	}
}

var complete = domain.TransferEvent{Status: domain.DeviceTaskComplete, Progress: 100}

func Test_Manager_DownloadLifecycle(t *testing.T) {
	f := newFixture(t)
	res := resources(3)

	task, err := f.mgr.RequestDownload(res)
	require.NoError(t, err)
	require.Equal(t, domain.TransferPending, task.State)
	require.Equal(t, 3, task.ItemsTotal)
	require.Equal(t, domain.DeviceIdentity("DRONE-A"), task.Device)
	require.Equal(t, res, f.media.resources[0])

	dev := f.media.last()
	dev.push(running(10, res[0]))
	dev.push(processed(33, res[0]))
	dev.push(running(50, res[1]))
	dev.push(processed(66, res[1]))
	dev.push(processed(100, res[2]))
	dev.push(complete)

	require.Equal(t, []domain.TransferState{
		domain.TransferPending,
		domain.TransferRunning,
		domain.TransferItemComplete,
		domain.TransferRunning,
		domain.TransferItemComplete,
		domain.TransferItemComplete,
		domain.TransferComplete,
	}, f.states(task.ID))

	got, ok := f.mgr.Get(task.ID)
	require.True(t, ok)
	require.Equal(t, domain.TransferComplete, got.State)
	require.Equal(t, 100, got.Progress)
	require.Equal(t, 3, got.ItemsDone)
	require.Equal(t, domain.ReasonNone, got.Reason)
	require.NotNil(t, got.LastFile)
	require.Equal(t, "r2", got.LastFile.Name)
	require.False(t, got.FinishedAt.IsZero())

	require.True(t, dev.isReleased(), "device task released on completion")
	require.Len(t, f.history.all(), 1)
	require.Zero(t, f.catalog.count())

	// Events after the terminal state are ignored
	dev.push(domain.TransferEvent{Status: domain.DeviceTaskError})
	got, _ = f.mgr.Get(task.ID)
	require.Equal(t, domain.TransferComplete, got.State)
}

func Test_Manager_CancelAfterFirstItem(t *testing.T) {
	f := newFixture(t)
	res := resources(3)
	task, err := f.mgr.RequestDownload(res)
	require.NoError(t, err)

	dev := f.media.last()
	dev.push(running(10, res[0]))
	dev.push(processed(33, res[0]))

	require.NoError(t, f.mgr.Cancel(task.ID))

	got, _ := f.mgr.Get(task.ID)
	require.Equal(t, domain.TransferFailed, got.State)
	require.Equal(t, domain.ReasonCancelled, got.Reason)
	require.Equal(t, 1, got.ItemsDone)
	require.True(t, dev.isReleased())

	dev.push(processed(66, res[1]))
	dev.push(complete)
	got, _ = f.mgr.Get(task.ID)
	require.Equal(t, domain.TransferFailed, got.State)
	require.Equal(t, 1, got.ItemsDone)

	// Cancelling a finished task is a no-op
	require.NoError(t, f.mgr.Cancel(task.ID))
	require.ErrorIs(t, f.mgr.Cancel("unknown"), domain.ErrTaskNotFound)
	require.Len(t, f.history.all(), 1)
}

func Test_Manager_SessionLossFailsActiveTasks(t *testing.T) {
	f := newFixture(t)
	first, err := f.mgr.RequestDownload(resources(2))
	require.NoError(t, err)
	second, err := f.mgr.RequestDelete(resources(1))
	require.NoError(t, err)

	f.mgr.Detach(f.sess)

	for _, id := range []string{first.ID, second.ID} {
		got, ok := f.mgr.Get(id)
		require.True(t, ok)
		require.Equal(t, domain.TransferFailed, got.State)
		require.Equal(t, domain.ReasonSessionLost, got.Reason)
	}
	for _, dev := range f.media.started {
		require.True(t, dev.isReleased())
	}

	_, err = f.mgr.RequestDownload(resources(1))
	require.ErrorIs(t, err, domain.ErrNoDevice)
	_, err = f.mgr.RequestWipe()
	require.ErrorIs(t, err, domain.ErrNoDevice)
}

func Test_Manager_DetachOtherSessionIgnored(t *testing.T) {
	f := newFixture(t)
	task, err := f.mgr.RequestDownload(resources(1))
	require.NoError(t, err)

	f.mgr.Detach(session.New(domain.RoleDrone, "DRONE-B", 2))
	got, _ := f.mgr.Get(task.ID)
	require.True(t, got.Active())
}

func Test_Manager_DeleteCountsItems(t *testing.T) {
	f := newFixture(t)
	res := resources(2)
	task, err := f.mgr.RequestDelete(res)
	require.NoError(t, err)
	dev := f.media.last()

	// Delete tasks report no useful percentage; progress follows the item count
	dev.push(domain.TransferEvent{Status: domain.DeviceTaskFileProcessed, Current: &res[0]})
	got, _ := f.mgr.Get(task.ID)
	require.Equal(t, 50, got.Progress)
	require.Equal(t, domain.TransferItemComplete, got.State)
	require.Nil(t, got.LastFile)

	dev.push(domain.TransferEvent{Status: domain.DeviceTaskFileProcessed, Current: &res[1]})
	got, _ = f.mgr.Get(task.ID)
	require.Equal(t, 100, got.Progress)
	require.Equal(t, domain.TransferItemComplete, got.State)

	dev.push(complete)
	got, _ = f.mgr.Get(task.ID)
	require.Equal(t, domain.TransferComplete, got.State)
	require.Equal(t, 2, got.ItemsDone)
}

func Test_Manager_WipeRefreshesCatalog(t *testing.T) {
	f := newFixture(t)
	f.catalog.snap = domain.CatalogSnapshot{
		Device: "DRONE-A",
		Items:  []domain.MediaItem{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
	}

	task, err := f.mgr.RequestWipe()
	require.NoError(t, err)
	require.Equal(t, 4, task.ItemsTotal)

	dev := f.media.last()
	dev.push(domain.TransferEvent{Status: domain.DeviceTaskFileProcessed})
	dev.push(complete)

	got, _ := f.mgr.Get(task.ID)
	require.Equal(t, domain.TransferComplete, got.State)
	require.Equal(t, 1, f.catalog.count())

	// A failed wipe leaves the catalog alone
	failed, err := f.mgr.RequestWipe()
	require.NoError(t, err)
	f.media.last().push(domain.TransferEvent{Status: domain.DeviceTaskError, Err: errors.New("card busy")})
	got, _ = f.mgr.Get(failed.ID)
	require.Equal(t, domain.TransferFailed, got.State)
	require.Equal(t, domain.ReasonDeviceError, got.Reason)
	require.Equal(t, "card busy", got.Detail)
	require.Equal(t, 1, f.catalog.count())
}

func Test_Manager_StallFailsTask(t *testing.T) {
	f := newFixture(t, WithStallTimeout(30*time.Millisecond))
	task, err := f.mgr.RequestDownload(resources(1))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, _ := f.mgr.Get(task.ID)
		return got.State == domain.TransferFailed
	}, time.Second, 5*time.Millisecond)

	got, _ := f.mgr.Get(task.ID)
	require.Equal(t, domain.ReasonDeviceError, got.Reason)
	require.Equal(t, domain.ErrStalled.Error(), got.Detail)
	require.True(t, f.media.last().isReleased())
}

func Test_Manager_ProgressKeepsWatchdogAlive(t *testing.T) {
	f := newFixture(t, WithStallTimeout(80*time.Millisecond))
	res := resources(1)
	task, err := f.mgr.RequestDownload(res)
	require.NoError(t, err)
	dev := f.media.last()

	for p := 10; p <= 50; p += 10 {
		time.Sleep(30 * time.Millisecond)
		dev.push(running(p, res[0]))
	}
	got, _ := f.mgr.Get(task.ID)
	require.True(t, got.Active())

	dev.push(complete)
	got, _ = f.mgr.Get(task.ID)
	require.Equal(t, domain.TransferComplete, got.State)
}

func Test_Manager_DownloadedFileSizeFromDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "DJI_0001.JPG"), []byte("hello"), 0644))

	f := newFixture(t, WithDownloadDir(dir))
	res := resources(1)
	task, err := f.mgr.RequestDownload(res)
	require.NoError(t, err)

	f.media.last().push(domain.TransferEvent{
		Status:   domain.DeviceTaskFileProcessed,
		Progress: 100,
		File:     &domain.CompletedFile{Path: "DJI_0001.JPG"},
	})

	got, _ := f.mgr.Get(task.ID)
	require.NotNil(t, got.LastFile)
	require.Equal(t, "DJI_0001.JPG", got.LastFile.Name)
	require.Equal(t, filepath.Join(dir, "DJI_0001.JPG"), got.LastFile.Path)
	require.Equal(t, int64(5), got.LastFile.Size)
}

func Test_Manager_UnavailableDeviceTask(t *testing.T) {
	f := newFixture(t)
	f.media.unavailable = true

	task, err := f.mgr.RequestDownload(resources(1))
	require.NoError(t, err)
	require.Equal(t, domain.TransferFailed, task.State)
	require.Equal(t, domain.ReasonDeviceError, task.Reason)
	require.Equal(t, domain.ErrUnavailable.Error(), task.Detail)
}

func Test_Manager_RejectsEmptyRequests(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.RequestDownload(nil)
	require.ErrorIs(t, err, domain.ErrNothingToTransfer)
	_, err = f.mgr.RequestDelete([]domain.Resource{})
	require.ErrorIs(t, err, domain.ErrNothingToTransfer)
	require.Empty(t, f.mgr.Tasks())
}

func Test_Manager_Acknowledge(t *testing.T) {
	f := newFixture(t)
	a, err := f.mgr.RequestDownload(resources(1))
	require.NoError(t, err)
	b, err := f.mgr.RequestDelete(resources(1))
	require.NoError(t, err)
	c, err := f.mgr.RequestDelete(resources(1))
	require.NoError(t, err)

	require.ErrorIs(t, f.mgr.Acknowledge(a.ID), domain.ErrTaskActive)
	require.ErrorIs(t, f.mgr.Acknowledge("unknown"), domain.ErrTaskNotFound)

	require.NoError(t, f.mgr.Cancel(a.ID))
	require.NoError(t, f.mgr.Cancel(b.ID))
	require.NoError(t, f.mgr.Acknowledge(a.ID))
	_, ok := f.mgr.Get(a.ID)
	require.False(t, ok)
	require.ErrorIs(t, f.mgr.Cancel(a.ID), domain.ErrTaskNotFound)

	require.Equal(t, 1, f.mgr.AcknowledgeFinished())
	tasks := f.mgr.Tasks()
	require.Len(t, tasks, 1)
	require.Equal(t, c.ID, tasks[0].ID)
	require.Zero(t, f.mgr.AcknowledgeFinished())
}

func Test_Manager_TasksOldestFirst(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	f := newFixture(t)
	f.mgr.now = clk.now

	var ids []string
	for i := 0; i < 3; i++ {
		task, err := f.mgr.RequestDelete(resources(1))
		require.NoError(t, err)
		ids = append(ids, task.ID)
		clk.advance(time.Second)
	}

	tasks := f.mgr.Tasks()
	require.Len(t, tasks, 3)
	for i, task := range tasks {
		require.Equal(t, ids[i], task.ID)
	}

	published, ok := hub.LatestAs[[]domain.TransferTask](f.hub, hub.TransferProgress)
	require.True(t, ok)
	require.Equal(t, tasks, published)
}

func Test_Tracker_ETA(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	f := newFixture(t)
	f.mgr.now = clk.now

	res := resources(1)
	task, err := f.mgr.RequestDownload(res)
	require.NoError(t, err)
	dev := f.media.last()

	clk.advance(time.Second)
	dev.push(running(10, res[0]))
	clk.advance(time.Second)
	dev.push(running(20, res[0]))

	got, _ := f.mgr.Get(task.ID)
	require.Equal(t, 20, got.Progress)
	require.Equal(t, 8*time.Second, got.ETA)

	dev.push(complete)
	got, _ = f.mgr.Get(task.ID)
	require.Zero(t, got.ETA)
}
