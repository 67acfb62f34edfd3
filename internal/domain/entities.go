package domain

import (
	"fmt"
	"time"
)

// DeviceIdentity is an opaque, stable identifier for a physical device.
// It is only ever compared, never parsed. NoDevice means absent.
type DeviceIdentity string

// NoDevice is the identity reported when no device is attached for a role.
const NoDevice DeviceIdentity = ""

// Present reports whether the identity refers to an actual device
func (d DeviceIdentity) Present() bool { return d != NoDevice }

func (d DeviceIdentity) String() string {
	if d == NoDevice {
		return "<none>"
	}
	return string(d)
}

// DeviceRole distinguishes the devices a client can be attached to at once
type DeviceRole string

const (
	RoleDrone  DeviceRole = "drone"
	RoleRemote DeviceRole = "rc"
)

// ConnectionState mirrors the link state reported by the device transport
type ConnectionState string

const (
	StateDisconnected  ConnectionState = "DISCONNECTED"
	StateConnecting    ConnectionState = "CONNECTING"
	StateConnected     ConnectionState = "CONNECTED"
	StateDisconnecting ConnectionState = "DISCONNECTING"
)

// Battery is a battery level reading. The zero value is an unknown level,
// which is what gets published when a session is torn down.
type Battery struct {
	Percent int
	Known   bool
}

// BatteryLevel returns a known battery reading clamped to [0,100]
func BatteryLevel(percent int) Battery {
	switch {
	case percent < 0:
		percent = 0
	case percent > 100:
		percent = 100
	}
	return Battery{Percent: percent, Known: true}
}

func (b Battery) String() string {
	if !b.Known {
		return "%"
	}
	return fmt.Sprintf("%d%%", b.Percent)
}

// MediaKind distinguishes photo and video media
type MediaKind string

const (
	MediaKindPhoto MediaKind = "photo"
	MediaKindVideo MediaKind = "video"
)

// Resource is one stored file of a media item (a photo may have a JPEG and a DNG,
// a video may be split into chunks).
type Resource struct {
	ID        string        // Device-side resource identifier
	MediaID   string        // Owning media item
	Size      int64         // Size in bytes
	Duration  time.Duration // Zero for photos
	LocalPath string        // Set once downloaded
}

// MediaItem is a single entry of the remote media catalog. Items are immutable
// once produced by a browse; a new browse produces an entirely new list.
type MediaItem struct {
	ID        string
	Name      string
	Kind      MediaKind
	Resources []Resource
}

// Size returns the total size of all resources
func (m MediaItem) Size() int64 {
	var total int64
	for _, r := range m.Resources {
		total += r.Size
	}
	return total
}

// Duration returns the duration of the first resource, zero for photos
func (m MediaItem) Duration() time.Duration {
	if len(m.Resources) == 0 {
		return 0
	}
	return m.Resources[0].Duration
}

// FormattedDuration returns the duration as mm:ss or h:mm:ss
func (m MediaItem) FormattedDuration() string {
	d := m.Duration()
	if d <= 0 {
		return ""
	}
	secs := int(d.Seconds())
	h, mins, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}

// FormattedSize returns the total size in a human-readable format
func (m MediaItem) FormattedSize() string {
	return FormatBytes(m.Size())
}

// FormatBytes renders a byte count the way the catalog list shows it
func FormatBytes(n int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case n <= 0:
		return ""
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/float64(gb))
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(mb))
	case n >= kb:
		return fmt.Sprintf("%d KB", n/kb)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// Clone returns a deep copy so the caller cannot alias the resource slice
func (m MediaItem) Clone() MediaItem {
	out := m
	out.Resources = append([]Resource(nil), m.Resources...)
	return out
}

// Thumbnail holds raw image bytes; nil means the thumbnail is absent.
type Thumbnail []byte

// CatalogSnapshot pairs a media list index-for-index with its thumbnails.
// A snapshot is only produced once every thumbnail has been resolved and is
// never mutated after publication; each catalog change replaces it wholesale.
type CatalogSnapshot struct {
	Device      DeviceIdentity
	Generation  uint64
	Items       []MediaItem
	Thumbnails  []Thumbnail
	PublishedAt time.Time
}

// Available reports whether the snapshot belongs to an attached device.
// The reset snapshot published on teardown is not available.
func (s CatalogSnapshot) Available() bool { return s.Device.Present() }

// Len returns the number of media items
func (s CatalogSnapshot) Len() int { return len(s.Items) }

// Thumbnail returns the thumbnail at index i, or nil when absent
func (s CatalogSnapshot) Thumbnail(i int) Thumbnail {
	if i < 0 || i >= len(s.Thumbnails) {
		return nil
	}
	return s.Thumbnails[i]
}

// Count returns how many items are of the given kind
func (s CatalogSnapshot) Count(kind MediaKind) int {
	n := 0
	for _, item := range s.Items {
		if item.Kind == kind {
			n++
		}
	}
	return n
}

// Resources flattens the resources of every item, in catalog order
func (s CatalogSnapshot) Resources() []Resource {
	var out []Resource
	for _, item := range s.Items {
		out = append(out, item.Resources...)
	}
	return out
}

// Find returns the item with the given ID
func (s CatalogSnapshot) Find(id string) (MediaItem, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return MediaItem{}, false
}

// IndexingState is the media store indexing state reported by the device
type IndexingState string

const (
	IndexingUnavailable IndexingState = "UNAVAILABLE"
	IndexingInProgress  IndexingState = "INDEXING"
	IndexingIndexed     IndexingState = "INDEXED"
)

// MediaStoreInfo summarizes the device media store
type MediaStoreInfo struct {
	Indexing   IndexingState
	PhotoCount int
	VideoCount int
}

// Empty reports whether the store is indexed and holds no media
func (i MediaStoreInfo) Empty() bool {
	return i.Indexing == IndexingIndexed && i.PhotoCount == 0 && i.VideoCount == 0
}
