package domain

// Store persists what the core wants to survive a restart.
// Thumbnails are archived with the catalog so an offline listing can show them.
type Store interface {
	// === Catalog archive ===
	SaveCatalog(snap CatalogSnapshot) error
	GetCatalog(device DeviceIdentity) (CatalogSnapshot, bool)
	ListDevices() []DeviceIdentity

	// === Transfer history ===
	RecordTransfer(task TransferTask) error
	TransferHistory(limit int) []TransferTask

	// === Lifecycle ===
	Close() error
}

// NoOpStore discards everything (for tests and memory-only runs).
type NoOpStore struct{}

func (NoOpStore) SaveCatalog(CatalogSnapshot) error                 { return nil }
func (NoOpStore) GetCatalog(DeviceIdentity) (CatalogSnapshot, bool) { return CatalogSnapshot{}, false }
func (NoOpStore) ListDevices() []DeviceIdentity                     { return nil }
func (NoOpStore) RecordTransfer(TransferTask) error                 { return nil }
func (NoOpStore) TransferHistory(int) []TransferTask                { return nil }
func (NoOpStore) Close() error                                      { return nil }
