package domain

import "time"

// TransferKind identifies the bulk operation a task wraps
type TransferKind string

const (
	TransferDownload TransferKind = "download"
	TransferDelete   TransferKind = "delete"
	TransferWipe     TransferKind = "wipe"
)

// TransferState is the progress state of a transfer task
type TransferState string

const (
	// TransferPending means the request was issued and the device has not acknowledged it
	TransferPending TransferState = "PENDING"

	// TransferRunning means the device reports non-zero progress
	TransferRunning TransferState = "RUNNING"

	// TransferItemComplete is emitted once per finished resource and is not terminal
	TransferItemComplete TransferState = "ITEM_COMPLETE"

	// TransferComplete is terminal success
	TransferComplete TransferState = "COMPLETE"

	// TransferFailed is terminal and carries a FailureReason
	TransferFailed TransferState = "FAILED"
)

func (s TransferState) String() string { return string(s) }

// IsTerminal returns true for COMPLETE and FAILED
func (s TransferState) IsTerminal() bool {
	return s == TransferComplete || s == TransferFailed
}

// FailureReason explains a FAILED transfer
type FailureReason string

const (
	ReasonNone        FailureReason = ""
	ReasonDeviceError FailureReason = "device-error"
	ReasonSessionLost FailureReason = "session-lost"
	ReasonCancelled   FailureReason = "cancelled"
)

// CompletedFile describes a resource the device finished processing
type CompletedFile struct {
	Name string
	Path string
	Size int64
}

// TransferTask is the published, immutable view of a transfer.
type TransferTask struct {
	ID         string
	Kind       TransferKind
	Device     DeviceIdentity
	State      TransferState
	Progress   int       // Aggregate progress, 0 to 100
	Current    *Resource // Resource being processed, if known
	ItemsDone  int
	ItemsTotal int
	LastFile   *CompletedFile // Set on ITEM_COMPLETE for downloads
	Reason     FailureReason
	Detail     string
	ETA        time.Duration // Zero when unknown
	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt time.Time
}

// Active returns true while the task is not terminal
func (t TransferTask) Active() bool { return !t.State.IsTerminal() }

// Label returns a one-line description for status displays
func (t TransferTask) Label() string {
	switch t.State {
	case TransferFailed:
		return string(t.Kind) + " failed (" + string(t.Reason) + ")"
	case TransferComplete:
		return string(t.Kind) + " complete"
	default:
		return string(t.Kind) + " " + t.State.String()
	}
}

// DeviceTaskStatus is the status the device reports for a running media task
type DeviceTaskStatus string

const (
	DeviceTaskRunning       DeviceTaskStatus = "running"
	DeviceTaskFileProcessed DeviceTaskStatus = "file-processed"
	DeviceTaskComplete      DeviceTaskStatus = "complete"
	DeviceTaskError         DeviceTaskStatus = "error"
)

// TransferEvent is one progress push from a device-side media task
type TransferEvent struct {
	Status   DeviceTaskStatus
	Progress int            // Device aggregate percentage
	Current  *Resource      // Resource currently being processed
	File     *CompletedFile // Downloaded file on DeviceTaskFileProcessed
	Err      error          // Set on DeviceTaskError
}
