package domain

import "errors"

var (
	// ErrUnavailable is returned by a Stream whose source does not exist
	ErrUnavailable = errors.New("source unavailable")

	// ErrNoDevice is returned by commands issued while no drone is attached
	ErrNoDevice = errors.New("no device attached")

	// ErrTaskNotFound is returned for an unknown transfer task ID
	ErrTaskNotFound = errors.New("transfer task not found")

	// ErrTaskActive is returned when acknowledging a task that has not finished
	ErrTaskActive = errors.New("transfer task still active")

	// ErrMediaNotFound is returned for a media ID missing from the current catalog
	ErrMediaNotFound = errors.New("media item not found")

	// ErrNothingToTransfer is returned for a download or delete with no resources
	ErrNothingToTransfer = errors.New("no resources selected")

	// ErrThumbnailTimeout records a thumbnail fetch that never answered
	ErrThumbnailTimeout = errors.New("thumbnail fetch timed out")

	// ErrStalled records a transfer the device stopped reporting on
	ErrStalled = errors.New("stalled")
)
