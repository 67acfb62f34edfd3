// Package catalog turns the device media catalog feed into complete,
// thumbnail-joined snapshots.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/hub"
	"github.com/mmcdole/groundlink/internal/session"
	"github.com/mmcdole/groundlink/internal/subscription"
)

// DefaultThumbnailTimeout bounds a single thumbnail fetch
const DefaultThumbnailTimeout = 10 * time.Second

var _ session.Component = (*Synchronizer)(nil)

// Synchronizer browses the media catalog of the attached drone and publishes
// a CatalogSnapshot once every thumbnail of a catalog generation resolved.
// A newer catalog invalidates the running fan-out; its late results are
// dropped on arrival.
type Synchronizer struct {
	media        domain.MediaCatalogService
	hub          *hub.Hub
	store        domain.Store
	logger       *slog.Logger
	thumbTimeout time.Duration
	now          func() time.Time

	mu        sync.Mutex
	sess      *session.Session
	browse    *subscription.Subscription[[]domain.MediaItem]
	gen       uint64
	fan       *fanout
	latest    domain.CatalogSnapshot
	hasLatest bool
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithThumbnailTimeout sets the bound on each thumbnail fetch
func WithThumbnailTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.thumbTimeout = d
		}
	}
}

// WithStore archives every published snapshot
func WithStore(store domain.Store) Option {
	return func(s *Synchronizer) {
		if store != nil {
			s.store = store
		}
	}
}

// NewSynchronizer creates a synchronizer publishing on h
func NewSynchronizer(media domain.MediaCatalogService, h *hub.Hub, logger *slog.Logger, opts ...Option) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Synchronizer{
		media:        media,
		hub:          h,
		store:        domain.NoOpStore{},
		logger:       logger,
		thumbTimeout: DefaultThumbnailTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach opens the media store and catalog feeds for sess
func (s *Synchronizer) Attach(sess *session.Session) {
	s.mu.Lock()
	s.sess = sess
	s.mu.Unlock()

	store := subscription.Open(s.media.ObserveStore(), func(info domain.MediaStoreInfo) {
		s.storeChanged(sess, info)
	})
	sess.Track(store)

	s.openBrowse(sess)
}

// Detach abandons any running fan-out and publishes the reset snapshot
func (s *Synchronizer) Detach(sess *session.Session) {
	s.mu.Lock()
	if s.sess != sess {
		s.mu.Unlock()
		return
	}
	s.sess = nil
	browse := s.browse
	s.browse = nil
	if s.fan != nil {
		s.fan.abandon()
		s.fan = nil
	}
	s.gen++
	s.latest, s.hasLatest = domain.CatalogSnapshot{}, false
	s.hub.Publish(hub.CatalogSnapshot, domain.CatalogSnapshot{Generation: s.gen, PublishedAt: s.now()})
	s.hub.Publish(hub.CatalogStore, domain.MediaStoreInfo{Indexing: domain.IndexingUnavailable})
	s.mu.Unlock()

	if browse != nil {
		browse.Close()
	}
}

// Refresh re-opens the catalog feed, which re-browses the device. It returns
// false when no drone is attached.
func (s *Synchronizer) Refresh() bool {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess == nil {
		return false
	}
	s.logger.Debug("refreshing catalog", "device", string(sess.Identity))
	s.openBrowse(sess)
	return true
}

func (s *Synchronizer) openBrowse(sess *session.Session) {
	s.mu.Lock()
	prev := s.browse
	s.browse = nil
	s.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	sub := subscription.Open(s.media.Browse(), func(items []domain.MediaItem) {
		s.catalogChanged(sess, items)
	})
	if sub.IsClosed() {
		s.logger.Info("media catalog unavailable", "device", string(sess.Identity))
	}

	s.mu.Lock()
	if s.sess != sess {
		s.mu.Unlock()
		sub.Close()
		return
	}
	// A concurrent refresh may have installed its own browse meanwhile
	replaced := s.browse
	s.browse = sub
	s.mu.Unlock()
	if replaced != nil {
		replaced.Close()
	}
	sess.Track(sub)
}

func (s *Synchronizer) storeChanged(sess *session.Session, info domain.MediaStoreInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess != sess {
		return
	}
	s.hub.Publish(hub.CatalogStore, info)
}

// CatalogChanged starts a new generation for items. Items are copied; the
// caller keeps ownership of its slice.
func (s *Synchronizer) CatalogChanged(items []domain.MediaItem) {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess == nil {
		return
	}
	s.catalogChanged(sess, items)
}

func (s *Synchronizer) catalogChanged(sess *session.Session, items []domain.MediaItem) {
	owned := make([]domain.MediaItem, len(items))
	for i, item := range items {
		owned[i] = item.Clone()
	}

	s.mu.Lock()
	if s.sess != sess {
		s.mu.Unlock()
		return
	}
	if s.fan != nil {
		s.fan.abandon()
		s.fan = nil
	}
	s.gen++
	gen := s.gen

	if len(owned) == 0 {
		snap := domain.CatalogSnapshot{
			Device:      sess.Identity,
			Generation:  gen,
			Items:       owned,
			Thumbnails:  []domain.Thumbnail{},
			PublishedAt: s.now(),
		}
		s.publishLocked(snap)
		s.mu.Unlock()
		s.archive(snap)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.fan = newFanout(gen, sess.Identity, owned, cancel)
	timeout := s.thumbTimeout
	s.mu.Unlock()

	s.logger.Debug("catalog changed", "generation", gen, "items", len(owned))

	for i, item := range owned {
		s.fetchThumbnail(ctx, gen, i, item, timeout)
	}
}

func (s *Synchronizer) fetchThumbnail(ctx context.Context, gen uint64, i int, item domain.MediaItem, timeout time.Duration) {
	fctx, fcancel := context.WithTimeout(ctx, timeout)
	stop := context.AfterFunc(fctx, func() {
		err := fctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.ErrThumbnailTimeout
		}
		s.resolve(gen, i, nil, err)
	})

	s.media.FetchThumbnail(fctx, item, func(th domain.Thumbnail, err error) {
		stop()
		fcancel()
		s.resolve(gen, i, th, err)
	})
}

// resolve records one thumbnail result and publishes the snapshot when it was
// the last one of the current generation.
func (s *Synchronizer) resolve(gen uint64, i int, th domain.Thumbnail, err error) {
	s.mu.Lock()
	f := s.fan
	if f == nil || f.gen != gen {
		s.mu.Unlock()
		s.logger.Debug("dropped stale thumbnail", "generation", gen, "index", i)
		return
	}
	if !f.set(i, th, err) {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.logger.Debug("thumbnail unavailable", "item", f.items[i].ID, "error", err)
	}
	if !f.complete() {
		s.mu.Unlock()
		return
	}

	s.fan = nil
	f.cancel()
	snap := f.snapshot(s.now())
	s.publishLocked(snap)
	s.mu.Unlock()

	s.logger.Info("catalog synchronized",
		"generation", gen,
		"items", len(snap.Items),
		"missing_thumbnails", f.failed,
		"duration", time.Since(f.started),
	)
	s.archive(snap)
}

func (s *Synchronizer) publishLocked(snap domain.CatalogSnapshot) {
	s.latest, s.hasLatest = snap, true
	s.hub.Publish(hub.CatalogSnapshot, snap)
}

func (s *Synchronizer) archive(snap domain.CatalogSnapshot) {
	if err := s.store.SaveCatalog(snap); err != nil {
		s.logger.Error("failed to archive catalog", "error", err, "device", string(snap.Device))
	}
}

// Latest returns the last published snapshot of the attached drone
func (s *Synchronizer) Latest() (domain.CatalogSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLatest
}

// Generation returns the current catalog generation
func (s *Synchronizer) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Pending reports whether a thumbnail join is in progress
func (s *Synchronizer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fan != nil
}
