package tui

import (
	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/hub"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// NotificationMsg carries one hub notification into the update loop
type NotificationMsg struct {
	hub.Notification
}

// ObserverClosedMsg signals that the hub observer was closed
type ObserverClosedMsg struct{}

// TransferRequestedMsg signals that the core accepted a transfer request
type TransferRequestedMsg struct {
	Task domain.TransferTask
}

// TransferCancelledMsg signals that a transfer was cancelled
type TransferCancelledMsg struct {
	ID string
}

// TransfersDismissedMsg signals that finished transfers were removed from the list
type TransfersDismissedMsg struct {
	Count int
}

// CatalogRefreshedMsg signals that the catalog is being browsed again
type CatalogRefreshedMsg struct{}

// StatusMsg shows a transient status line
type StatusMsg struct {
	Text string
}

// ClearStatusMsg clears the status message
type ClearStatusMsg struct{}
