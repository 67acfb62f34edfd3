package domain

import "context"

// Stream is a push-based value stream owned by the device transport.
// Observe registers deliver and returns a function releasing the
// registration. Observe returns ErrUnavailable when the underlying source
// does not exist (no device), which callers treat as a steady state.
type Stream[T any] interface {
	Observe(deliver func(T)) (release func(), err error)
}

// StreamFunc adapts a function to the Stream interface
type StreamFunc[T any] func(deliver func(T)) (func(), error)

func (f StreamFunc[T]) Observe(deliver func(T)) (func(), error) { return f(deliver) }

// DeviceTransport exposes the push streams of the devices seen by the client
type DeviceTransport interface {
	// ObserveIdentity pushes the identity of the device currently bound to a
	// role, NoDevice when none is.
	ObserveIdentity(role DeviceRole) Stream[DeviceIdentity]

	// ObserveState pushes the connection state of the device bound to role
	ObserveState(role DeviceRole) Stream[ConnectionState]

	// ObserveBattery pushes the battery percentage of the device bound to role
	ObserveBattery(role DeviceRole) Stream[int]
}

// MediaCatalogService is the media store peripheral of the attached drone.
// All calls are fire-and-forget; results arrive later as pushes.
type MediaCatalogService interface {
	// Browse pushes the ordered media list, re-fired on every catalog change
	Browse() Stream[[]MediaItem]

	// ObserveStore pushes indexing state and media counts
	ObserveStore() Stream[MediaStoreInfo]

	// FetchThumbnail eventually calls deliver once with the thumbnail or a
	// failure. Implementations should give up when ctx is done.
	FetchThumbnail(ctx context.Context, item MediaItem, deliver func(Thumbnail, error))

	// StartDownload, StartDelete and StartWipe begin a device-side task.
	// Releasing the returned stream's registration asks the device to stop.
	StartDownload(resources []Resource) Stream[TransferEvent]
	StartDelete(resources []Resource) Stream[TransferEvent]
	StartWipe() Stream[TransferEvent]
}
