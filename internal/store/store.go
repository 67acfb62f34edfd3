// Package store archives catalog snapshots and transfer history in BoltDB.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/groundlink/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketCatalogs  = []byte("catalogs")
	bucketTransfers = []byte("transfers")
)

const dbName = "groundlink.db"

var _ domain.Store = (*Store)(nil)

// Store implements domain.Store using BoltDB with an in-memory cache in front.
// An empty directory gives a memory-only store.
type Store struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	catalogs map[domain.DeviceIdentity][]byte
	history  []domain.TransferTask // Memory-only mode
}

// Open opens (or creates) the database under dir
func Open(dir string) (*Store, error) {
	s := &Store{catalogs: make(map[domain.DeviceIdentity][]byte)}
	if dir == "" {
		// Memory-only mode (no persistence)
		return s, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(dir, dbName), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketCatalogs, bucketTransfers} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	return s, nil
}

// Path returns the database file, empty in memory-only mode
func (s *Store) Path() string {
	if s.db == nil {
		return ""
	}
	return s.db.Path()
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Catalog archive ===

// SaveCatalog keeps the latest snapshot of snap.Device. Reset snapshots are
// not archived.
func (s *Store) SaveCatalog(snap domain.CatalogSnapshot) error {
	if !snap.Available() {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.catalogs[snap.Device] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCatalogs).Put([]byte(snap.Device), data)
	})
}

// GetCatalog returns the archived snapshot of device
func (s *Store) GetCatalog(device domain.DeviceIdentity) (domain.CatalogSnapshot, bool) {
	var snap domain.CatalogSnapshot

	s.mu.RLock()
	data, ok := s.catalogs[device]
	s.mu.RUnlock()
	if ok {
		return snap, json.Unmarshal(data, &snap) == nil
	}

	if s.db == nil {
		return snap, false
	}

	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketCatalogs).Get([]byte(device)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if data == nil {
		return snap, false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.catalogs[device] = data
	s.mu.Unlock()

	return snap, json.Unmarshal(data, &snap) == nil
}

// ListDevices returns every device with an archived catalog, sorted
func (s *Store) ListDevices() []domain.DeviceIdentity {
	seen := make(map[domain.DeviceIdentity]bool)

	s.mu.RLock()
	for id := range s.catalogs {
		seen[id] = true
	}
	s.mu.RUnlock()

	if s.db != nil {
		s.db.View(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketCatalogs).ForEach(func(k, _ []byte) error {
				seen[domain.DeviceIdentity(k)] = true
				return nil
			})
		})
	}

	devices := make([]domain.DeviceIdentity, 0, len(seen))
	for id := range seen {
		devices = append(devices, id)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i] < devices[j] })
	return devices
}

// === Transfer history ===

// historyKey sorts by finish time, then task ID
func historyKey(task domain.TransferTask) []byte {
	return []byte(fmt.Sprintf("%020d:%s", task.FinishedAt.UnixNano(), task.ID))
}

// RecordTransfer appends a finished task to the history
func (s *Store) RecordTransfer(task domain.TransferTask) error {
	if s.db == nil {
		s.mu.Lock()
		s.history = append(s.history, task)
		s.mu.Unlock()
		return nil
	}

	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransfers).Put(historyKey(task), data)
	})
}

// TransferHistory returns up to limit finished tasks, newest first. A limit of
// zero or less returns everything.
func (s *Store) TransferHistory(limit int) []domain.TransferTask {
	var out []domain.TransferTask

	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for i := len(s.history) - 1; i >= 0; i-- {
			if limit > 0 && len(out) >= limit {
				break
			}
			out = append(out, s.history[i])
		}
		return out
	}

	s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTransfers).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var task domain.TransferTask
			if err := json.Unmarshal(v, &task); err != nil {
				continue
			}
			out = append(out, task)
		}
		return nil
	})
	return out
}

// ClearHistory removes every recorded transfer
func (s *Store) ClearHistory() error {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketTransfers); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketTransfers)
		return err
	})
}
