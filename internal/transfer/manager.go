package transfer

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/hub"
	"github.com/mmcdole/groundlink/internal/session"
)

// DefaultStallTimeout fails a task whose device stopped reporting
const DefaultStallTimeout = 60 * time.Second

var _ session.Component = (*Manager)(nil)

// Catalog is what the transfer manager needs from the catalog synchronizer
type Catalog interface {
	Latest() (domain.CatalogSnapshot, bool)
	Refresh() bool
}

// Manager creates transfer trackers for the attached drone and publishes the
// task list on hub.TransferProgress after every change. Finished tasks stay
// listed until acknowledged.
type Manager struct {
	media       domain.MediaCatalogService
	hub         *hub.Hub
	store       domain.Store
	catalog     Catalog
	logger      *slog.Logger
	stall       time.Duration
	downloadDir string
	now         func() time.Time

	mu       sync.Mutex
	sess     *session.Session
	trackers map[string]*Tracker
	tasks    map[string]domain.TransferTask
}

// Option configures a Manager
type Option func(*Manager)

// WithStallTimeout sets the stall watchdog; zero disables it
func WithStallTimeout(d time.Duration) Option {
	return func(m *Manager) { m.stall = d }
}

// WithDownloadDir resolves relative download paths against dir
func WithDownloadDir(dir string) Option {
	return func(m *Manager) { m.downloadDir = dir }
}

// WithHistory records every finished task in store
func WithHistory(store domain.Store) Option {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

// NewManager creates a transfer manager. catalog may be nil, in which case
// wipes have an unknown item count and do not trigger a refresh.
func NewManager(media domain.MediaCatalogService, h *hub.Hub, catalog Catalog, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		media:    media,
		hub:      h,
		store:    domain.NoOpStore{},
		catalog:  catalog,
		logger:   logger,
		stall:    DefaultStallTimeout,
		now:      time.Now,
		trackers: make(map[string]*Tracker),
		tasks:    make(map[string]domain.TransferTask),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Attach makes the manager accept requests for sess
func (m *Manager) Attach(sess *session.Session) {
	m.mu.Lock()
	m.sess = sess
	m.mu.Unlock()
}

// Detach fails every active task with session-lost
func (m *Manager) Detach(sess *session.Session) {
	m.mu.Lock()
	if m.sess != sess {
		m.mu.Unlock()
		return
	}
	m.sess = nil
	active := make([]*Tracker, 0, len(m.trackers))
	for _, t := range m.trackers {
		active = append(active, t)
	}
	m.mu.Unlock()

	for _, t := range active {
		t.fail(domain.ReasonSessionLost, "")
	}
	if len(active) > 0 {
		m.logger.Info("failed transfers on session loss", "count", len(active), "device", string(sess.Identity))
	}
}

// RequestDownload starts downloading resources to the client
func (m *Manager) RequestDownload(resources []domain.Resource) (domain.TransferTask, error) {
	if len(resources) == 0 {
		return domain.TransferTask{}, fmt.Errorf("download: %w", domain.ErrNothingToTransfer)
	}
	res := append([]domain.Resource(nil), resources...)
	return m.request(domain.TransferDownload, len(res), func() domain.Stream[domain.TransferEvent] {
		return m.media.StartDownload(res)
	})
}

// RequestDelete starts deleting resources on the device
func (m *Manager) RequestDelete(resources []domain.Resource) (domain.TransferTask, error) {
	if len(resources) == 0 {
		return domain.TransferTask{}, fmt.Errorf("delete: %w", domain.ErrNothingToTransfer)
	}
	res := append([]domain.Resource(nil), resources...)
	return m.request(domain.TransferDelete, len(res), func() domain.Stream[domain.TransferEvent] {
		return m.media.StartDelete(res)
	})
}

// RequestWipe starts erasing the whole device media store. The item count is
// taken from the latest catalog snapshot.
func (m *Manager) RequestWipe() (domain.TransferTask, error) {
	total := 0
	if m.catalog != nil {
		if snap, ok := m.catalog.Latest(); ok {
			total = snap.Len()
		}
	}
	return m.request(domain.TransferWipe, total, m.media.StartWipe)
}

func (m *Manager) request(kind domain.TransferKind, total int, start func() domain.Stream[domain.TransferEvent]) (domain.TransferTask, error) {
	m.mu.Lock()
	sess := m.sess
	if sess == nil {
		m.mu.Unlock()
		return domain.TransferTask{}, fmt.Errorf("%s: %w", kind, domain.ErrNoDevice)
	}
	t := newTracker(kind, sess.Identity, total, trackerConfig{
		logger:      m.logger,
		downloadDir: m.downloadDir,
		stall:       m.stall,
		now:         m.now,
		onUpdate:    m.update,
		onFinish:    m.finish,
	})
	task := t.Task()
	m.trackers[task.ID] = t
	m.tasks[task.ID] = task
	m.publishLocked()
	m.mu.Unlock()

	m.logger.Info("transfer requested", "task", task.ID, "kind", string(kind), "items", total)
	t.start(start())

	// The session may have gone while the device task was being started
	m.mu.Lock()
	lost := m.sess != sess
	m.mu.Unlock()
	if lost {
		t.fail(domain.ReasonSessionLost, "")
	}
	return t.Task(), nil
}

// Cancel fails a task with cancelled without waiting for the device. Cancelling
// a finished task is a no-op.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	t, ok := m.trackers[id]
	_, known := m.tasks[id]
	m.mu.Unlock()

	if !known {
		return fmt.Errorf("cancel %s: %w", id, domain.ErrTaskNotFound)
	}
	if ok && t.Cancel() {
		m.logger.Info("transfer cancelled", "task", id)
	}
	return nil
}

// Acknowledge removes a finished task from the list
func (m *Manager) Acknowledge(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("acknowledge %s: %w", id, domain.ErrTaskNotFound)
	}
	if task.Active() {
		return fmt.Errorf("acknowledge %s: %w", id, domain.ErrTaskActive)
	}
	delete(m.tasks, id)
	m.publishLocked()
	return nil
}

// AcknowledgeFinished removes every finished task and returns how many it removed
func (m *Manager) AcknowledgeFinished() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, task := range m.tasks {
		if !task.Active() {
			delete(m.tasks, id)
			n++
		}
	}
	if n > 0 {
		m.publishLocked()
	}
	return n
}

// Tasks returns every listed task, oldest first
func (m *Manager) Tasks() []domain.TransferTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked()
}

// Get returns one listed task
func (m *Manager) Get(id string) (domain.TransferTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	return task, ok
}

// update is the tracker callback; it runs with the tracker lock held
func (m *Manager) update(task domain.TransferTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return
	}
	m.tasks[task.ID] = task
	m.publishLocked()
}

// finish runs once per task after it reached a terminal state
func (m *Manager) finish(task domain.TransferTask) {
	m.mu.Lock()
	delete(m.trackers, task.ID)
	m.mu.Unlock()

	if err := m.store.RecordTransfer(task); err != nil {
		m.logger.Error("failed to record transfer", "task", task.ID, "error", err)
	}
	if task.Kind == domain.TransferWipe && task.State == domain.TransferComplete && m.catalog != nil {
		if !m.catalog.Refresh() {
			m.logger.Debug("no catalog to refresh after wipe", "task", task.ID)
		}
	}
}

func (m *Manager) publishLocked() {
	m.hub.Publish(hub.TransferProgress, m.sortedLocked())
}

func (m *Manager) sortedLocked() []domain.TransferTask {
	out := make([]domain.TransferTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
