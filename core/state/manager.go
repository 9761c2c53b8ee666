package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/storage"
)

// Manager reads and writes marketplace records on top of a key-value store.
// Every key is derived from the Layout fixed at genesis.
type Manager struct {
	db     storage.Database
	layout Layout
}

// NewManager creates a state manager over db using layout.
func NewManager(db storage.Database, layout Layout) *Manager {
	return &Manager{db: db, layout: layout}
}

// Layout returns the key layout used by the manager.
func (m *Manager) Layout() Layout { return m.layout }

// Tx is a Manager whose writes are buffered until Commit.
type Tx struct {
	*Manager
	cache *storage.CacheDB
}

// Begin opens a buffered view. Reads see the parent state plus the
// transaction's own writes.
func (m *Manager) Begin() *Tx {
	cache := storage.NewCacheDB(m.db)
	return &Tx{Manager: &Manager{db: cache, layout: m.layout}, cache: cache}
}

// Commit writes every buffered change to the parent in one batch.
func (tx *Tx) Commit() error { return tx.cache.Write() }

// Discard drops every buffered change.
func (tx *Tx) Discard() { tx.cache.Discard() }

// Pending reports the number of buffered keys.
func (tx *Tx) Pending() int { return tx.cache.Pending() }

// KVPut stores value under key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVHas reports whether key is present.
func (m *Manager) KVHas(key []byte) (bool, error) {
	return m.db.Has(key)
}

// KVDelete removes key.
func (m *Manager) KVDelete(key []byte) error {
	return m.db.Delete(key)
}

func rlpDecode(data []byte, out interface{}) error {
	return rlp.DecodeBytes(data, out)
}

// flag stores presence-only records.
func (m *Manager) flag(key []byte, set bool) error {
	if set {
		return m.db.Put(key, []byte{1})
	}
	return m.db.Delete(key)
}
