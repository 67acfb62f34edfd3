// Package service assembles the session managers, catalog synchronizer and
// transfer manager into the surface the console talks to.
package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/groundlink/internal/catalog"
	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/hub"
	"github.com/mmcdole/groundlink/internal/session"
	"github.com/mmcdole/groundlink/internal/transfer"
)

// Options tunes the core
type Options struct {
	ThumbnailTimeout time.Duration
	StallTimeout     time.Duration
	DownloadDir      string
	Store            domain.Store // Nil keeps nothing
}

// Core owns one session manager per device role. The drone session carries
// the catalog synchronizer and the transfer manager; the remote controller
// session only publishes state and battery.
type Core struct {
	hub       *hub.Hub
	drone     *session.Manager
	remote    *session.Manager
	catalog   *catalog.Synchronizer
	transfers *transfer.Manager
	store     domain.Store
	logger    *slog.Logger
}

// NewCore wires the core on top of a device transport and media service
func NewCore(transport domain.DeviceTransport, media domain.MediaCatalogService, opts Options, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	store := opts.Store
	if store == nil {
		store = domain.NoOpStore{}
	}

	h := hub.New(logger)
	sync := catalog.NewSynchronizer(media, h, logger,
		catalog.WithThumbnailTimeout(opts.ThumbnailTimeout),
		catalog.WithStore(store),
	)

	stall := opts.StallTimeout
	if stall == 0 {
		stall = transfer.DefaultStallTimeout
	}
	transfers := transfer.NewManager(media, h, sync, logger,
		transfer.WithStallTimeout(stall),
		transfer.WithDownloadDir(opts.DownloadDir),
		transfer.WithHistory(store),
	)

	return &Core{
		hub: h,
		// Detached in reverse: transfers fail before the catalog resets
		drone:     session.NewManager(domain.RoleDrone, transport, h, logger, sync, transfers),
		remote:    session.NewManager(domain.RoleRemote, transport, h, logger),
		catalog:   sync,
		transfers: transfers,
		store:     store,
		logger:    logger,
	}
}

// Start begins observing both device roles
func (c *Core) Start() {
	c.logger.Info("starting core")
	c.drone.Start()
	c.remote.Start()
}

// Stop tears both sessions down. Every active transfer fails with session-lost.
func (c *Core) Stop() {
	c.drone.Stop()
	c.remote.Stop()
	c.logger.Info("core stopped")
}

// Hub returns the notification hub
func (c *Core) Hub() *hub.Hub { return c.hub }

// Subscribe observes the given hub channels, every channel when none are given
func (c *Core) Subscribe(channels ...hub.Channel) *hub.Observer {
	return c.hub.Subscribe(channels...)
}

// Identity returns the device bound to role
func (c *Core) Identity(role domain.DeviceRole) domain.DeviceIdentity {
	if role == domain.RoleRemote {
		return c.remote.Identity()
	}
	return c.drone.Identity()
}

// SessionState returns the session state of role
func (c *Core) SessionState(role domain.DeviceRole) session.State {
	if role == domain.RoleRemote {
		return c.remote.State()
	}
	return c.drone.State()
}

// Catalog returns the latest complete catalog snapshot of the attached drone
func (c *Core) Catalog() (domain.CatalogSnapshot, bool) {
	return c.catalog.Latest()
}

// RefreshCatalog browses the drone's media again
func (c *Core) RefreshCatalog() error {
	if !c.catalog.Refresh() {
		return fmt.Errorf("refresh catalog: %w", domain.ErrNoDevice)
	}
	return nil
}

// Filter fuzzy-filters the current catalog by name
func (c *Core) Filter(query string) []catalog.Match {
	snap, _ := c.catalog.Latest()
	return catalog.Filter(snap, query)
}

// Lookup resolves media names typed by a user against the current catalog
func (c *Core) Lookup(names ...string) ([]domain.MediaItem, []string) {
	snap, _ := c.catalog.Latest()
	return catalog.Lookup(snap, names...)
}

// RequestDownload downloads every resource of the given media items
func (c *Core) RequestDownload(mediaIDs ...string) (domain.TransferTask, error) {
	resources, err := c.resources(mediaIDs)
	if err != nil {
		return domain.TransferTask{}, fmt.Errorf("download: %w", err)
	}
	return c.transfers.RequestDownload(resources)
}

// RequestDelete deletes every resource of the given media items from the drone
func (c *Core) RequestDelete(mediaIDs ...string) (domain.TransferTask, error) {
	resources, err := c.resources(mediaIDs)
	if err != nil {
		return domain.TransferTask{}, fmt.Errorf("delete: %w", err)
	}
	return c.transfers.RequestDelete(resources)
}

// RequestWipe erases the drone's media store
func (c *Core) RequestWipe() (domain.TransferTask, error) {
	return c.transfers.RequestWipe()
}

// CancelTransfer cancels a running transfer
func (c *Core) CancelTransfer(id string) error { return c.transfers.Cancel(id) }

// AcknowledgeTransfer removes a finished transfer from the list
func (c *Core) AcknowledgeTransfer(id string) error { return c.transfers.Acknowledge(id) }

// AcknowledgeFinished removes every finished transfer from the list
func (c *Core) AcknowledgeFinished() int { return c.transfers.AcknowledgeFinished() }

// Transfers returns the listed transfers, oldest first
func (c *Core) Transfers() []domain.TransferTask { return c.transfers.Tasks() }

// History returns up to limit finished transfers, newest first
func (c *Core) History(limit int) []domain.TransferTask { return c.store.TransferHistory(limit) }

// resources flattens the resources of mediaIDs, in request order
func (c *Core) resources(mediaIDs []string) ([]domain.Resource, error) {
	if c.drone.Current() == nil {
		return nil, domain.ErrNoDevice
	}
	if len(mediaIDs) == 0 {
		return nil, domain.ErrNothingToTransfer
	}
	snap, ok := c.catalog.Latest()
	if !ok {
		return nil, fmt.Errorf("catalog not synchronized: %w", domain.ErrMediaNotFound)
	}

	var resources []domain.Resource
	for _, id := range mediaIDs {
		item, ok := snap.Find(id)
		if !ok {
			return nil, fmt.Errorf("%s: %w", id, domain.ErrMediaNotFound)
		}
		resources = append(resources, item.Resources...)
	}
	return resources, nil
}
