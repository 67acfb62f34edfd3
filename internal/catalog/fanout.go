package catalog

import (
	"context"
	"time"

	"github.com/mmcdole/groundlink/internal/domain"
)

// fanout is the thumbnail join for one catalog generation. Results are
// written by index, so arrival order does not matter. It is owned by the
// Synchronizer and only touched under its lock.
type fanout struct {
	gen       uint64
	device    domain.DeviceIdentity
	items     []domain.MediaItem
	thumbs    []domain.Thumbnail
	resolved  []bool
	remaining int
	failed    int
	started   time.Time
	cancel    context.CancelFunc
}

func newFanout(gen uint64, device domain.DeviceIdentity, items []domain.MediaItem, cancel context.CancelFunc) *fanout {
	return &fanout{
		gen:       gen,
		device:    device,
		items:     items,
		thumbs:    make([]domain.Thumbnail, len(items)),
		resolved:  make([]bool, len(items)),
		remaining: len(items),
		started:   time.Now(),
		cancel:    cancel,
	}
}

// set records the result for index i. Only the first result per index
// counts; it returns false for a repeat or an out-of-range index.
func (f *fanout) set(i int, th domain.Thumbnail, err error) bool {
	if i < 0 || i >= len(f.items) || f.resolved[i] {
		return false
	}
	f.resolved[i] = true
	f.remaining--
	if err != nil || th == nil {
		f.failed++
		return true
	}
	f.thumbs[i] = th
	return true
}

func (f *fanout) complete() bool { return f.remaining == 0 }

// snapshot hands the arena's slices to the published snapshot. The arena is
// dropped right after, so nothing else holds them.
func (f *fanout) snapshot(now time.Time) domain.CatalogSnapshot {
	return domain.CatalogSnapshot{
		Device:      f.device,
		Generation:  f.gen,
		Items:       f.items,
		Thumbnails:  f.thumbs,
		PublishedAt: now,
	}
}

func (f *fanout) abandon() {
	if f.cancel != nil {
		f.cancel()
	}
}
