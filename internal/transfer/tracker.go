// Package transfer tracks the device-side bulk operations (download, delete,
// wipe) from request to terminal state.
package transfer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/google/uuid"

	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/subscription"
)

const etaWindow = 5

// Tracker runs the state machine of one transfer task:
//
//	PENDING -> RUNNING -> ITEM_COMPLETE -> ... -> COMPLETE
//	any non-terminal state -> FAILED(reason)
//
// Every state change is handed to onUpdate while the tracker lock is held, so
// updates of one task are observed in order.
type Tracker struct {
	logger      *slog.Logger
	downloadDir string
	stall       time.Duration
	now         func() time.Time
	onUpdate    func(domain.TransferTask)
	onFinish    func(domain.TransferTask)

	mu           sync.Mutex
	task         domain.TransferTask
	sub          *subscription.Subscription[domain.TransferEvent]
	watchdog     *time.Timer
	rate         *movingaverage.MovingAverage // Progress points per second
	lastProgress int
	lastAt       time.Time
}

type trackerConfig struct {
	logger      *slog.Logger
	downloadDir string
	stall       time.Duration
	now         func() time.Time
	onUpdate    func(domain.TransferTask)
	onFinish    func(domain.TransferTask)
}

func newTracker(kind domain.TransferKind, device domain.DeviceIdentity, total int, cfg trackerConfig) *Tracker {
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.onUpdate == nil {
		cfg.onUpdate = func(domain.TransferTask) {}
	}
	if cfg.onFinish == nil {
		cfg.onFinish = func(domain.TransferTask) {}
	}
	created := cfg.now()
	id := uuid.NewString()
	return &Tracker{
		logger:      cfg.logger.With("task", id, "kind", string(kind)),
		downloadDir: cfg.downloadDir,
		stall:       cfg.stall,
		now:         cfg.now,
		onUpdate:    cfg.onUpdate,
		onFinish:    cfg.onFinish,
		rate:        movingaverage.New(etaWindow),
		lastAt:      created,
		task: domain.TransferTask{
			ID:         id,
			Kind:       kind,
			Device:     device,
			State:      domain.TransferPending,
			ItemsTotal: total,
			CreatedAt:  created,
			UpdatedAt:  created,
		},
	}
}

// Task returns the current task value
func (t *Tracker) Task() domain.TransferTask {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.task
}

// start observes the device task. A stream that cannot be opened fails the
// task with device-error.
func (t *Tracker) start(stream domain.Stream[domain.TransferEvent]) {
	t.mu.Lock()
	if t.task.State.IsTerminal() {
		t.mu.Unlock()
		return
	}
	t.armWatchdogLocked()
	t.mu.Unlock()

	sub := subscription.Open(stream, t.handle)

	t.mu.Lock()
	if t.task.State.IsTerminal() {
		t.mu.Unlock()
		sub.Close()
		return
	}
	if sub.IsClosed() {
		t.mu.Unlock()
		t.fail(domain.ReasonDeviceError, domain.ErrUnavailable.Error())
		return
	}
	t.sub = sub
	t.mu.Unlock()
}

// handle applies one device event
func (t *Tracker) handle(ev domain.TransferEvent) {
	t.mu.Lock()
	if t.task.State.IsTerminal() {
		t.mu.Unlock()
		return
	}
	t.armWatchdogLocked()

	switch ev.Status {
	case domain.DeviceTaskRunning:
		t.runningLocked(ev)
		t.mu.Unlock()

	case domain.DeviceTaskFileProcessed:
		t.itemCompleteLocked(ev)
		t.mu.Unlock()

	case domain.DeviceTaskComplete:
		if t.task.Kind != domain.TransferWipe && t.task.ItemsTotal > 0 && t.task.ItemsDone != t.task.ItemsTotal {
			t.logger.Warn("device completed with unprocessed items",
				"done", t.task.ItemsDone, "total", t.task.ItemsTotal)
		}
		t.task.Progress = 100
		t.task.ETA = 0
		t.finishLocked(domain.TransferComplete, domain.ReasonNone, "")

	case domain.DeviceTaskError:
		detail := "device reported an error"
		if ev.Err != nil {
			detail = ev.Err.Error()
		}
		t.finishLocked(domain.TransferFailed, domain.ReasonDeviceError, detail)

	default:
		t.mu.Unlock()
		t.logger.Debug("ignoring unknown device status", "status", string(ev.Status))
	}
}

func (t *Tracker) runningLocked(ev domain.TransferEvent) {
	changed := false
	if ev.Current != nil {
		cur := *ev.Current
		t.task.Current = &cur
		changed = true
	}
	if t.task.Kind == domain.TransferDownload && ev.Progress != t.task.Progress {
		t.setProgressLocked(ev.Progress)
		changed = true
	}
	if t.task.State == domain.TransferPending && ev.Progress > 0 {
		t.task.State = domain.TransferRunning
		changed = true
	}
	if t.task.State == domain.TransferItemComplete {
		t.task.State = domain.TransferRunning
		changed = true
	}
	if changed {
		t.emitLocked()
	}
}

func (t *Tracker) itemCompleteLocked(ev domain.TransferEvent) {
	t.task.ItemsDone++
	if ev.Current != nil {
		cur := *ev.Current
		t.task.Current = &cur
	}

	switch t.task.Kind {
	case domain.TransferDownload:
		if ev.File != nil {
			f := t.completedFile(*ev.File)
			t.task.LastFile = &f
		}
		if ev.Progress > t.task.Progress {
			t.setProgressLocked(ev.Progress)
		}
	default:
		if t.task.ItemsTotal > 0 {
			t.setProgressLocked(t.task.ItemsDone * 100 / t.task.ItemsTotal)
		}
	}

	t.task.State = domain.TransferItemComplete
	t.emitLocked()

	if t.task.ItemsTotal == 0 || t.task.ItemsDone < t.task.ItemsTotal {
		t.task.State = domain.TransferRunning
	}
}

// completedFile fills in the size from disk when the device did not report it
func (t *Tracker) completedFile(f domain.CompletedFile) domain.CompletedFile {
	if f.Path != "" && !filepath.IsAbs(f.Path) && t.downloadDir != "" {
		f.Path = filepath.Join(t.downloadDir, f.Path)
	}
	if f.Name == "" && f.Path != "" {
		f.Name = filepath.Base(f.Path)
	}
	if f.Size <= 0 && f.Path != "" {
		if info, err := os.Stat(f.Path); err == nil {
			f.Size = info.Size()
		} else {
			t.logger.Debug("could not stat downloaded file", "path", f.Path, "error", err)
		}
	}
	return f
}

func (t *Tracker) setProgressLocked(p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	now := t.now()
	if p > t.lastProgress {
		if dt := now.Sub(t.lastAt).Seconds(); dt > 0 {
			t.rate.Add(float64(p-t.lastProgress) / dt)
		}
		t.lastProgress, t.lastAt = p, now
	}
	t.task.Progress = p
	t.task.ETA = 0
	if avg := t.rate.Avg(); avg > 0 && p < 100 {
		t.task.ETA = time.Duration(float64(100-p) / avg * float64(time.Second)).Round(time.Second)
	}
}

// Cancel fails the task with cancelled and asks the device to stop. It
// returns false when the task already finished.
func (t *Tracker) Cancel() bool {
	return t.fail(domain.ReasonCancelled, "")
}

// fail moves a non-terminal task to FAILED
func (t *Tracker) fail(reason domain.FailureReason, detail string) bool {
	t.mu.Lock()
	if t.task.State.IsTerminal() {
		t.mu.Unlock()
		return false
	}
	t.finishLocked(domain.TransferFailed, reason, detail)
	return true
}

// finishLocked sets the terminal state, publishes it and releases the device
// task. It unlocks t.mu.
func (t *Tracker) finishLocked(state domain.TransferState, reason domain.FailureReason, detail string) {
	now := t.now()
	t.task.State = state
	t.task.Reason = reason
	t.task.Detail = detail
	t.task.FinishedAt = now
	if t.watchdog != nil {
		t.watchdog.Stop()
		t.watchdog = nil
	}
	t.emitLocked()

	task := t.task
	sub := t.sub
	t.sub = nil
	t.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if state == domain.TransferFailed {
		t.logger.Info("transfer failed", "reason", string(reason), "detail", detail, "done", task.ItemsDone)
	} else {
		t.logger.Info("transfer complete", "items", task.ItemsDone, "duration", task.FinishedAt.Sub(task.CreatedAt))
	}
	t.onFinish(task)
}

func (t *Tracker) emitLocked() {
	t.task.UpdatedAt = t.now()
	t.onUpdate(t.task)
}

func (t *Tracker) armWatchdogLocked() {
	if t.stall <= 0 {
		return
	}
	if t.watchdog != nil {
		t.watchdog.Reset(t.stall)
		return
	}
	t.watchdog = time.AfterFunc(t.stall, t.stalled)
}

func (t *Tracker) stalled() {
	if t.fail(domain.ReasonDeviceError, domain.ErrStalled.Error()) {
		t.logger.Warn("no device progress", "timeout", t.stall)
	}
}

func (t *Tracker) String() string {
	task := t.Task()
	return fmt.Sprintf("%s %s %s %d%%", task.ID, task.Kind, task.State, task.Progress)
}
