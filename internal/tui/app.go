// Package tui is the console monitor: device state, the drone media catalog
// and running transfers, fed entirely by hub notifications.
package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/groundlink/internal/catalog"
	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/hub"
	"github.com/mmcdole/groundlink/internal/tui/components"
)

// Core is the part of the service core the monitor drives
type Core interface {
	Subscribe(channels ...hub.Channel) *hub.Observer
	Identity(role domain.DeviceRole) domain.DeviceIdentity
	Filter(query string) []catalog.Match
	RefreshCatalog() error
	RequestDownload(mediaIDs ...string) (domain.TransferTask, error)
	RequestDelete(mediaIDs ...string) (domain.TransferTask, error)
	RequestWipe() (domain.TransferTask, error)
	CancelTransfer(id string) error
	AcknowledgeTransfer(id string) error
	AcknowledgeFinished() int
}

// Focus is the panel receiving navigation keys
type Focus int

const (
	FocusCatalog Focus = iota
	FocusTransfers
)

// Confirmation is a destructive action waiting for y/n
type Confirmation int

const (
	ConfirmNone Confirmation = iota
	ConfirmDelete
	ConfirmWipe
)

// DeviceStatus is what the header shows for one role
type DeviceStatus struct {
	Identity domain.DeviceIdentity
	State    domain.ConnectionState
	Battery  domain.Battery
}

// Model is the main Bubble Tea model for the monitor
type Model struct {
	Ready bool

	core     Core
	observer *hub.Observer
	keys     KeyMap

	// Device state
	Drone     DeviceStatus
	Remote    DeviceStatus
	StoreInfo domain.MediaStoreInfo

	// UI Components
	Catalog   components.CatalogList
	Transfers components.TransferList
	Inspector components.Inspector
	FilterBar components.FilterBar

	focus         Focus
	confirm       Confirmation
	pendingIDs    []string
	showHelp      bool
	showInspector bool
	status        string
	statusIsErr   bool

	width  int
	height int
}

// NewModel creates the monitor. It subscribes to every hub channel; the
// subscription is closed when the program quits.
func NewModel(core Core) Model {
	m := Model{
		core:      core,
		observer:  core.Subscribe(),
		keys:      Keys,
		Drone:     DeviceStatus{State: domain.StateDisconnected},
		Remote:    DeviceStatus{State: domain.StateDisconnected},
		Catalog:   components.NewCatalogList(),
		Transfers: components.NewTransferList(),
		Inspector: components.NewInspector(),
		FilterBar: components.NewFilterBar(),
	}
	m.Catalog.SetFocused(true)
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return WaitForNotificationCmd(m.observer)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.Ready = true
		m.resize()
		return m, nil

	case NotificationMsg:
		m.applyNotification(msg.Notification)
		return m, WaitForNotificationCmd(m.observer)

	case ObserverClosedMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TransferRequestedMsg:
		m.Catalog.ClearMarks()
		return m, m.setStatus(fmt.Sprintf("%s started", msg.Task.Kind), false)

	case TransferCancelledMsg:
		return m, m.setStatus("transfer cancelled", false)

	case TransfersDismissedMsg:
		return m, m.setStatus(fmt.Sprintf("dismissed %d", msg.Count), false)

	case CatalogRefreshedMsg:
		return m, m.setStatus("refreshing catalog", false)

	case StatusMsg:
		return m, m.setStatus(msg.Text, false)

	case ErrMsg:
		text := msg.Error()
		if errors.Is(msg.Err, domain.ErrNoDevice) {
			text = msg.Context + ": no drone connected"
		}
		return m, m.setStatus(text, true)

	case ClearStatusMsg:
		m.status, m.statusIsErr = "", false
		return m, nil
	}

	return m, nil
}

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.status, m.statusIsErr = text, isErr
	return ClearStatusCmd(statusTimeout)
}

// applyNotification folds one hub value into the model
func (m *Model) applyNotification(n hub.Notification) {
	switch n.Channel {
	case hub.ConnectionDrone:
		if st, ok := n.Value.(domain.ConnectionState); ok {
			m.Drone.State = st
			m.Drone.Identity = m.core.Identity(domain.RoleDrone)
		}
	case hub.ConnectionRemote:
		if st, ok := n.Value.(domain.ConnectionState); ok {
			m.Remote.State = st
			m.Remote.Identity = m.core.Identity(domain.RoleRemote)
		}
	case hub.BatteryDrone:
		if b, ok := n.Value.(domain.Battery); ok {
			m.Drone.Battery = b
		}
	case hub.BatteryRemote:
		if b, ok := n.Value.(domain.Battery); ok {
			m.Remote.Battery = b
		}
	case hub.CatalogSnapshot:
		if snap, ok := n.Value.(domain.CatalogSnapshot); ok {
			m.Catalog.SetSnapshot(snap, catalog.Filter(snap, m.FilterBar.Query()))
			m.syncInspector()
		}
	case hub.CatalogStore:
		if info, ok := n.Value.(domain.MediaStoreInfo); ok {
			m.StoreInfo = info
		}
	case hub.TransferProgress:
		if tasks, ok := n.Value.([]domain.TransferTask); ok {
			m.Transfers.SetTasks(tasks)
		}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm != ConfirmNone {
		return m.handleConfirm(msg)
	}

	if m.FilterBar.Active() {
		var cmd tea.Cmd
		var changed bool
		m.FilterBar, cmd, changed = m.FilterBar.Update(msg)
		if changed {
			m.applyFilter()
		}
		return m, cmd
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.observer.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.Switch):
		m.toggleFocus()
		return m, nil
	case key.Matches(msg, m.keys.Wipe):
		m.confirm = ConfirmWipe
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, RefreshCatalogCmd(m.core)
	case key.Matches(msg, m.keys.Inspect):
		m.showInspector = !m.showInspector
		m.resize()
		m.syncInspector()
		return m, nil
	case key.Matches(msg, m.keys.AckAll):
		return m, AcknowledgeAllCmd(m.core)
	}

	if m.focus == FocusTransfers {
		return m.handleTransferKey(msg)
	}
	return m.handleCatalogKey(msg)
}

func (m Model) handleCatalogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.Catalog.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.Catalog.MoveDown()
	case key.Matches(msg, m.keys.Home):
		m.Catalog.Top()
	case key.Matches(msg, m.keys.End):
		m.Catalog.Bottom()
	case key.Matches(msg, m.keys.Mark):
		m.Catalog.ToggleMark()
	case key.Matches(msg, m.keys.Filter):
		m.FilterBar.Show()
		m.resize()
	case key.Matches(msg, m.keys.Escape):
		if m.FilterBar.Query() != "" {
			m.FilterBar.Clear()
			m.applyFilter()
			m.resize()
		} else {
			m.Catalog.ClearMarks()
		}
	case key.Matches(msg, m.keys.Download):
		if ids := m.Catalog.Targets(); len(ids) > 0 {
			return m, DownloadCmd(m.core, ids)
		}
	case key.Matches(msg, m.keys.Delete):
		if ids := m.Catalog.Targets(); len(ids) > 0 {
			m.confirm = ConfirmDelete
			m.pendingIDs = ids
		}
	case key.Matches(msg, m.keys.ScrollUp):
		m.Inspector.ScrollUp()
	case key.Matches(msg, m.keys.ScrollDown):
		m.Inspector.ScrollDown()
	}
	m.syncInspector()
	return m, nil
}

func (m Model) handleTransferKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	task, ok := m.Transfers.Selected()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.Transfers.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.Transfers.MoveDown()
	case key.Matches(msg, m.keys.Cancel):
		if ok && task.Active() {
			return m, CancelTransferCmd(m.core, task.ID)
		}
	case key.Matches(msg, m.keys.Ack):
		if ok && !task.Active() {
			return m, AcknowledgeCmd(m.core, task.ID)
		}
	}
	return m, nil
}

func (m Model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		action, ids := m.confirm, m.pendingIDs
		m.confirm, m.pendingIDs = ConfirmNone, nil
		if action == ConfirmWipe {
			return m, WipeCmd(m.core)
		}
		return m, DeleteCmd(m.core, ids)
	case key.Matches(msg, m.keys.Deny):
		m.confirm, m.pendingIDs = ConfirmNone, nil
	}
	return m, nil
}

func (m *Model) toggleFocus() {
	if m.focus == FocusCatalog {
		m.focus = FocusTransfers
	} else {
		m.focus = FocusCatalog
	}
	m.Catalog.SetFocused(m.focus == FocusCatalog)
	m.Transfers.SetFocused(m.focus == FocusTransfers)
}

func (m *Model) applyFilter() {
	m.Catalog.SetRows(m.core.Filter(m.FilterBar.Query()))
	m.syncInspector()
}

// syncInspector shows the item under the catalog cursor
func (m *Model) syncInspector() {
	if !m.showInspector {
		return
	}
	item, ok := m.Catalog.Selected()
	if !ok {
		m.Inspector.ClearItem()
		return
	}
	idx := -1
	for i, candidate := range m.Catalog.Snapshot().Items {
		if candidate.ID == item.ID {
			idx = i
			break
		}
	}
	m.Inspector.SetItem(item, m.Catalog.Snapshot().Thumbnail(idx) != nil)
}

// Focused returns the panel receiving navigation keys
func (m Model) Focused() Focus { return m.focus }

// Pending returns the confirmation waiting for an answer
func (m Model) Pending() Confirmation { return m.confirm }

// InspectorOpen reports whether the detail pane is shown
func (m Model) InspectorOpen() bool { return m.showInspector }

// Status returns the status line text
func (m Model) Status() string { return m.status }
