package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/groundlink/internal/hub"
)

// statusTimeout is how long a status line stays up
const statusTimeout = 4 * time.Second

// WaitForNotificationCmd reads the next hub notification. The update loop
// issues it again after every NotificationMsg, which pumps the whole stream
// through Bubble Tea.
func WaitForNotificationCmd(obs *hub.Observer) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-obs.C()
		if !ok {
			return ObserverClosedMsg{}
		}
		return NotificationMsg{Notification: n}
	}
}

// DownloadCmd requests a download of the given media items
func DownloadCmd(core Core, mediaIDs []string) tea.Cmd {
	return func() tea.Msg {
		task, err := core.RequestDownload(mediaIDs...)
		if err != nil {
			return ErrMsg{Err: err, Context: "download"}
		}
		return TransferRequestedMsg{Task: task}
	}
}

// DeleteCmd requests deletion of the given media items from the drone
func DeleteCmd(core Core, mediaIDs []string) tea.Cmd {
	return func() tea.Msg {
		task, err := core.RequestDelete(mediaIDs...)
		if err != nil {
			return ErrMsg{Err: err, Context: "delete"}
		}
		return TransferRequestedMsg{Task: task}
	}
}

// WipeCmd requests a wipe of the drone media store
func WipeCmd(core Core) tea.Cmd {
	return func() tea.Msg {
		task, err := core.RequestWipe()
		if err != nil {
			return ErrMsg{Err: err, Context: "wipe"}
		}
		return TransferRequestedMsg{Task: task}
	}
}

// CancelTransferCmd cancels a transfer
func CancelTransferCmd(core Core, id string) tea.Cmd {
	return func() tea.Msg {
		if err := core.CancelTransfer(id); err != nil {
			return ErrMsg{Err: err, Context: "cancel"}
		}
		return TransferCancelledMsg{ID: id}
	}
}

// AcknowledgeCmd removes one finished transfer from the list
func AcknowledgeCmd(core Core, id string) tea.Cmd {
	return func() tea.Msg {
		if err := core.AcknowledgeTransfer(id); err != nil {
			return ErrMsg{Err: err, Context: "dismiss"}
		}
		return TransfersDismissedMsg{Count: 1}
	}
}

// AcknowledgeAllCmd removes every finished transfer from the list
func AcknowledgeAllCmd(core Core) tea.Cmd {
	return func() tea.Msg {
		return TransfersDismissedMsg{Count: core.AcknowledgeFinished()}
	}
}

// RefreshCatalogCmd browses the drone media again
func RefreshCatalogCmd(core Core) tea.Cmd {
	return func() tea.Msg {
		if err := core.RefreshCatalog(); err != nil {
			return ErrMsg{Err: err, Context: "refresh"}
		}
		return CatalogRefreshedMsg{}
	}
}

// ClearStatusCmd returns a command that clears status after a delay
func ClearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
