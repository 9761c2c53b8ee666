package storage

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrCacheClosed = errors.New("storage: cache already written or discarded")

type cacheEntry struct {
	value   []byte
	deleted bool
}

// CacheDB buffers writes over a parent database. Reads and iteration see the
// buffered view; nothing reaches the parent until Write, which applies every
// change in one batch. Discard drops the buffer.
type CacheDB struct {
	mu     sync.RWMutex
	parent Database
	dirty  map[string]cacheEntry
	closed bool
}

// NewCacheDB creates an overlay on top of parent.
func NewCacheDB(parent Database) *CacheDB {
	return &CacheDB{parent: parent, dirty: make(map[string]cacheEntry)}
}

func (c *CacheDB) Put(key []byte, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	c.dirty[string(key)] = cacheEntry{value: copyBytes(value)}
	return nil
}

func (c *CacheDB) Get(key []byte) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.dirty[string(key)]
	c.mu.RUnlock()
	if ok {
		if entry.deleted {
			return nil, ErrNotFound
		}
		return copyBytes(entry.value), nil
	}
	return c.parent.Get(key)
}

func (c *CacheDB) Has(key []byte) (bool, error) {
	c.mu.RLock()
	entry, ok := c.dirty[string(key)]
	c.mu.RUnlock()
	if ok {
		return !entry.deleted, nil
	}
	return c.parent.Has(key)
}

func (c *CacheDB) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	c.dirty[string(key)] = cacheEntry{deleted: true}
	return nil
}

// NewIterator merges buffered changes with the parent range.
func (c *CacheDB) NewIterator(prefix []byte, start []byte) Iterator {
	from := string(seekKey(prefix, start))
	p := string(prefix)
	c.mu.RLock()
	keys := make([]string, 0)
	for k := range c.dirty {
		if strings.HasPrefix(k, p) && k >= from {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	overlay := make([]kv, 0, len(keys))
	deleted := make([]bool, 0, len(keys))
	for _, k := range keys {
		entry := c.dirty[k]
		overlay = append(overlay, kv{key: []byte(k), value: copyBytes(entry.value)})
		deleted = append(deleted, entry.deleted)
	}
	c.mu.RUnlock()
	return &mergeIterator{
		parent:  c.parent.NewIterator(prefix, start),
		overlay: overlay,
		deleted: deleted,
	}
}

// NewBatch returns a batch that writes into the overlay.
func (c *CacheDB) NewBatch() Batch {
	return &cacheBatch{cache: c}
}

// Pending reports the number of buffered changes.
func (c *CacheDB) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dirty)
}

// Write flushes the buffered changes to the parent atomically and closes the
// overlay.
func (c *CacheDB) Write() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	batch := c.parent.NewBatch()
	keys := make([]string, 0, len(c.dirty))
	for k := range c.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := c.dirty[k]
		if entry.deleted {
			batch.Delete([]byte(k))
		} else {
			batch.Put([]byte(k), entry.value)
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}
	c.dirty = nil
	c.closed = true
	return nil
}

// Discard drops every buffered change.
func (c *CacheDB) Discard() {
	c.mu.Lock()
	c.dirty = nil
	c.closed = true
	c.mu.Unlock()
}

// Close discards the overlay. The parent stays open.
func (c *CacheDB) Close() error {
	c.Discard()
	return nil
}

type cacheBatch struct {
	cache *CacheDB
	ops   []batchOp
}

func (b *cacheBatch) Put(key []byte, value []byte) {
	b.ops = append(b.ops, batchOp{key: copyBytes(key), value: copyBytes(value)})
}

func (b *cacheBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: copyBytes(key), delete: true})
}

func (b *cacheBatch) Len() int { return len(b.ops) }

func (b *cacheBatch) Write() error {
	b.cache.mu.Lock()
	defer b.cache.mu.Unlock()
	if b.cache.closed {
		return ErrCacheClosed
	}
	for _, op := range b.ops {
		if op.delete {
			b.cache.dirty[string(op.key)] = cacheEntry{deleted: true}
		} else {
			b.cache.dirty[string(op.key)] = cacheEntry{value: op.value}
		}
	}
	return nil
}

func (b *cacheBatch) Reset() { b.ops = nil }

// mergeIterator yields the union of the parent range and the overlay, with
// overlay entries shadowing parent keys and deletions hiding them.
type mergeIterator struct {
	parent      Iterator
	parentValid bool
	parentReady bool

	overlay []kv
	deleted []bool
	pos     int

	key   []byte
	value []byte
	err   error
}

func (it *mergeIterator) advanceParent() {
	it.parentValid = it.parent.Next()
	it.parentReady = true
	if !it.parentValid {
		if err := it.parent.Error(); err != nil {
			it.err = err
		}
	}
}

func (it *mergeIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.parentReady {
		it.advanceParent()
	}
	for {
		if it.err != nil {
			return false
		}
		hasOverlay := it.pos < len(it.overlay)
		if !it.parentValid && !hasOverlay {
			it.key, it.value = nil, nil
			return false
		}
		var cmp int
		switch {
		case !it.parentValid:
			cmp = 1
		case !hasOverlay:
			cmp = -1
		default:
			cmp = bytes.Compare(it.parent.Key(), it.overlay[it.pos].key)
		}
		if cmp < 0 {
			it.key, it.value = it.parent.Key(), it.parent.Value()
			it.advanceParent()
			return true
		}
		if cmp == 0 {
			// Overlay shadows the parent entry.
			it.advanceParent()
		}
		entry, gone := it.overlay[it.pos], it.deleted[it.pos]
		it.pos++
		if gone {
			continue
		}
		it.key, it.value = copyBytes(entry.key), copyBytes(entry.value)
		return true
	}
}

func (it *mergeIterator) Key() []byte   { return copyBytes(it.key) }
func (it *mergeIterator) Value() []byte { return copyBytes(it.value) }
func (it *mergeIterator) Error() error  { return it.err }
func (it *mergeIterator) Release() {
	it.parent.Release()
	it.overlay = nil
}
