package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/hub"
	"github.com/mmcdole/groundlink/internal/log"
	"github.com/mmcdole/groundlink/internal/session"
	"github.com/mmcdole/groundlink/internal/simulator"
	"github.com/mmcdole/groundlink/internal/store"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestCore(t *testing.T, step time.Duration) (*Core, *simulator.Simulator) {
	t.Helper()
	cfg := simulator.DefaultConfig()
	cfg.MediaCount = 4
	cfg.ThumbnailDelay = time.Millisecond
	cfg.StepInterval = step
	cfg.StepsPerItem = 2
	sim := simulator.New(cfg, log.NullLogger())

	st, err := store.Open("")
	require.NoError(t, err)

	core := NewCore(sim, sim, Options{
		ThumbnailTimeout: time.Second,
		StallTimeout:     time.Second,
		Store:            st,
	}, log.NullLogger())
	core.Start()
	t.Cleanup(func() {
		core.Stop()
		sim.Wait()
		st.Close()
	})
	return core, sim
}

func waitCatalog(t *testing.T, core *Core, n int) domain.CatalogSnapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, ok := core.Catalog()
		return ok && snap.Len() == n
	}, waitFor, tick, "catalog with %d items", n)
	snap, _ := core.Catalog()
	return snap
}

func waitTask(t *testing.T, core *Core, id string) domain.TransferTask {
	t.Helper()
	var task domain.TransferTask
	require.Eventually(t, func() bool {
		for _, candidate := range core.Transfers() {
			if candidate.ID == id && !candidate.Active() {
				task = candidate
				return true
			}
		}
		return false
	}, waitFor, tick, "task %s to finish", id)
	return task
}

func Test_Core_NoDevice(t *testing.T) {
	core, _ := newTestCore(t, time.Millisecond)

	require.Equal(t, domain.NoDevice, core.Identity(domain.RoleDrone))
	require.Equal(t, session.StateNoDevice, core.SessionState(domain.RoleDrone))
	_, ok := core.Catalog()
	require.False(t, ok)

	_, err := core.RequestDownload("media-0001")
	require.ErrorIs(t, err, domain.ErrNoDevice)
	_, err = core.RequestWipe()
	require.ErrorIs(t, err, domain.ErrNoDevice)
	require.ErrorIs(t, core.RefreshCatalog(), domain.ErrNoDevice)
	require.Empty(t, core.Filter(""))
}

func Test_Core_SynchronizesCatalog(t *testing.T) {
	core, sim := newTestCore(t, time.Millisecond)
	obs := core.Subscribe(hub.CatalogSnapshot)
	defer obs.Close()

	sim.Connect(domain.RoleDrone)
	require.Equal(t, domain.DeviceIdentity("SIM-DRONE-0001"), core.Identity(domain.RoleDrone))
	require.Equal(t, session.StateAttached, core.SessionState(domain.RoleDrone))

	snap := waitCatalog(t, core, 4)
	require.Equal(t, sim.Media(), snap.Items)
	for i, item := range snap.Items {
		require.Equal(t, simulator.Thumbnail(item), snap.Thumbnail(i))
	}

	// The newest catalog wins when the device changes it again
	sim.Capture(2)
	snap = waitCatalog(t, core, 6)
	require.Equal(t, "media-0006", snap.Items[5].ID)

	info, ok := hub.LatestAs[domain.MediaStoreInfo](core.Hub(), hub.CatalogStore)
	require.True(t, ok)
	require.Equal(t, domain.IndexingIndexed, info.Indexing)
	require.Equal(t, 6, info.PhotoCount+info.VideoCount)

	require.NotEmpty(t, core.Filter("mp4"))
	found, missing := core.Lookup("DJI_0001.JPG", "nope-zzz")
	require.Len(t, found, 1)
	require.Equal(t, []string{"nope-zzz"}, missing)
}

func Test_Core_MissingThumbnail(t *testing.T) {
	core, sim := newTestCore(t, time.Millisecond)
	sim.FailThumbnail("media-0002")
	sim.Connect(domain.RoleDrone)

	snap := waitCatalog(t, core, 4)
	require.Nil(t, snap.Thumbnail(1))
	require.NotNil(t, snap.Thumbnail(0))
}

func Test_Core_TransferRoundTrip(t *testing.T) {
	core, sim := newTestCore(t, time.Millisecond)
	sim.Connect(domain.RoleDrone)
	snap := waitCatalog(t, core, 4)

	photo := snap.Items[0]
	task, err := core.RequestDownload(photo.ID)
	require.NoError(t, err)
	require.Equal(t, len(photo.Resources), task.ItemsTotal)

	done := waitTask(t, core, task.ID)
	require.Equal(t, domain.TransferComplete, done.State)
	require.Equal(t, len(photo.Resources), done.ItemsDone)
	require.NotNil(t, done.LastFile)

	// Deleting a video removes it from the catalog
	video := snap.Items[2]
	require.Equal(t, domain.MediaKindVideo, video.Kind)
	task, err = core.RequestDelete(video.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TransferComplete, waitTask(t, core, task.ID).State)
	snap = waitCatalog(t, core, 3)
	_, ok := snap.Find(video.ID)
	require.False(t, ok)

	// Wipe takes its count from the catalog and browses again afterwards
	task, err = core.RequestWipe()
	require.NoError(t, err)
	require.Equal(t, 3, task.ItemsTotal)
	require.Equal(t, domain.TransferComplete, waitTask(t, core, task.ID).State)
	waitCatalog(t, core, 0)

	require.Len(t, core.History(0), 3)
	require.Equal(t, 3, core.AcknowledgeFinished())
	require.Empty(t, core.Transfers())
}

func Test_Core_RequestValidation(t *testing.T) {
	core, sim := newTestCore(t, time.Millisecond)
	sim.Connect(domain.RoleDrone)
	waitCatalog(t, core, 4)

	_, err := core.RequestDownload()
	require.ErrorIs(t, err, domain.ErrNothingToTransfer)
	_, err = core.RequestDelete("media-9999")
	require.ErrorIs(t, err, domain.ErrMediaNotFound)
	require.ErrorIs(t, core.CancelTransfer("nope"), domain.ErrTaskNotFound)
	require.ErrorIs(t, core.AcknowledgeTransfer("nope"), domain.ErrTaskNotFound)
}

func Test_Core_DeviceFailure(t *testing.T) {
	core, sim := newTestCore(t, time.Millisecond)
	sim.Connect(domain.RoleDrone)
	snap := waitCatalog(t, core, 4)

	sim.FailNextTransfer(nil)
	task, err := core.RequestDownload(snap.Items[0].ID)
	require.NoError(t, err)

	done := waitTask(t, core, task.ID)
	require.Equal(t, domain.TransferFailed, done.State)
	require.Equal(t, domain.ReasonDeviceError, done.Reason)
	require.Equal(t, simulator.ErrInjected.Error(), done.Detail)
}

func Test_Core_DisconnectFailsTransfersAndResets(t *testing.T) {
	core, sim := newTestCore(t, 50*time.Millisecond)
	sim.Connect(domain.RoleDrone)
	snap := waitCatalog(t, core, 4)

	task, err := core.RequestDownload(snap.Items[0].ID, snap.Items[1].ID)
	require.NoError(t, err)

	sim.Disconnect(domain.RoleDrone)

	got := waitTask(t, core, task.ID)
	require.Equal(t, domain.TransferFailed, got.State)
	require.Equal(t, domain.ReasonSessionLost, got.Reason)

	_, ok := core.Catalog()
	require.False(t, ok)
	reset, ok := hub.LatestAs[domain.CatalogSnapshot](core.Hub(), hub.CatalogSnapshot)
	require.True(t, ok)
	require.False(t, reset.Available())

	st, _ := hub.LatestAs[domain.ConnectionState](core.Hub(), hub.ConnectionDrone)
	require.Equal(t, domain.StateDisconnected, st)
	require.Equal(t, session.StateNoDevice, core.SessionState(domain.RoleDrone))
}

func Test_Core_RemoteSession(t *testing.T) {
	core, sim := newTestCore(t, time.Millisecond)
	sim.Connect(domain.RoleRemote)

	require.Equal(t, session.StateAttached, core.SessionState(domain.RoleRemote))
	require.Equal(t, domain.DeviceIdentity("SIM-RC-0001"), core.Identity(domain.RoleRemote))
	require.Equal(t, session.StateNoDevice, core.SessionState(domain.RoleDrone))

	sim.SetBattery(domain.RoleRemote, 55)
	b, ok := hub.LatestAs[domain.Battery](core.Hub(), hub.BatteryRemote)
	require.True(t, ok)
	require.Equal(t, domain.BatteryLevel(55), b)

	// The remote controller carries no catalog
	_, ok = core.Catalog()
	require.False(t, ok)
}
