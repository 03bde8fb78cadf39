package state

import (
	"encoding/binary"
	"fmt"

	"trailchain/storage"
)

// SchemaVersion tags the persisted aggregate layout. The lineage mirrors the
// deployed contract history: v2 introduced the settings map, v3 the
// non-mintable set. Both collections are created lazily here, so the
// upgrades only bump the tag.
const SchemaVersion = 3

type journalEntry struct {
	key       []byte
	prev      []byte
	existed   bool
	prevUsage uint64
}

// Manager layers storage metering and call-scoped snapshots over a raw
// key-value database. Every write tracks the net byte delta so mutating
// operations can be charged for persistent storage growth, and every write
// is journaled so a failed operation reverts to its entry snapshot with no
// partial state left behind. The manager itself is not safe for concurrent
// mutation; the node serializes calls.
type Manager struct {
	db      storage.Database
	usage   uint64
	journal []journalEntry
}

// NewManager opens the state aggregate, initialising or upgrading the schema
// version tag as needed.
func NewManager(db storage.Database) (*Manager, error) {
	m := &Manager{db: db}
	if err := m.loadMeta(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadMeta() error {
	raw, ok, err := m.db.Get(metaVersionKey)
	if err != nil {
		return err
	}
	version := uint64(0)
	if ok && len(raw) == 8 {
		version = binary.BigEndian.Uint64(raw)
	}
	switch {
	case !ok:
		// Fresh database.
	case version > SchemaVersion:
		return fmt.Errorf("state: database schema v%d is newer than supported v%d", version, SchemaVersion)
	case version < SchemaVersion:
		for v := version; v < SchemaVersion; v++ {
			if err := upgradeSchema(m.db, v); err != nil {
				return err
			}
		}
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, SchemaVersion)
	if err := m.db.Put(metaVersionKey, buf); err != nil {
		return err
	}
	raw, ok, err = m.db.Get(metaUsageKey)
	if err != nil {
		return err
	}
	if ok && len(raw) == 8 {
		m.usage = binary.BigEndian.Uint64(raw)
	}
	return nil
}

// upgradeSchema applies the pure upgrade step from version v to v+1. The
// settings map (v1->v2) and non-mintable set (v2->v3) are lazily created
// collections, so no data rewrite is required for either step.
func upgradeSchema(db storage.Database, v uint64) error {
	switch v {
	case 0, 1, 2:
		return nil
	default:
		return fmt.Errorf("state: no upgrade path from schema v%d", v)
	}
}

func (m *Manager) persistUsage() error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, m.usage)
	return m.db.Put(metaUsageKey, buf)
}

func (m *Manager) kvGet(key []byte) ([]byte, bool, error) {
	return m.db.Get(key)
}

func (m *Manager) kvPut(key, value []byte) error {
	prev, existed, err := m.db.Get(key)
	if err != nil {
		return err
	}
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, existed: existed, prevUsage: m.usage})
	if err := m.db.Put(key, value); err != nil {
		return err
	}
	if existed {
		m.usage = m.usage - uint64(len(prev)) + uint64(len(value))
	} else {
		m.usage += uint64(len(key)) + uint64(len(value))
	}
	return m.persistUsage()
}

func (m *Manager) kvDelete(key []byte) error {
	prev, existed, err := m.db.Get(key)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, existed: true, prevUsage: m.usage})
	if err := m.db.Delete(key); err != nil {
		return err
	}
	freed := uint64(len(key)) + uint64(len(prev))
	if freed > m.usage {
		m.usage = 0
	} else {
		m.usage -= freed
	}
	return m.persistUsage()
}

// StorageUsage returns the metered persistent-storage footprint in bytes.
func (m *Manager) StorageUsage() uint64 {
	return m.usage
}

// Snapshot marks the current journal position. Reverting to it undoes every
// write made since.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot rolls the database and the usage meter back to the given
// snapshot, discarding the undone journal entries.
func (m *Manager) RevertToSnapshot(rev int) {
	if rev < 0 || rev > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= rev; i-- {
		entry := m.journal[i]
		if entry.existed {
			_ = m.db.Put(entry.key, entry.prev)
		} else {
			_ = m.db.Delete(entry.key)
		}
		m.usage = entry.prevUsage
	}
	m.journal = m.journal[:rev]
	_ = m.persistUsage()
}

// CollapseJournal drops accumulated undo entries. The node calls this after
// each committed operation so the journal only ever spans the call in
// flight.
func (m *Manager) CollapseJournal() {
	m.journal = m.journal[:0]
}

// Close releases the underlying database.
func (m *Manager) Close() error {
	return m.db.Close()
}
