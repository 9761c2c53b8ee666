package rpc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"
)

// ErrIdempotencyMismatch is returned when a key is replayed with a
// different sender or body.
var ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")

// ErrIdempotencyInFlight is returned while another request holds the key.
var ErrIdempotencyInFlight = errors.New("request with this idempotency key is still executing")

// IdempotencyRecord stores the response of an execute call so a retried
// request with the same key replays it instead of running twice. Keys are
// scoped to their sender. A pending record marks a call still executing.
type IdempotencyRecord struct {
	Sender    string `gorm:"primaryKey;size:128"`
	Key       string `gorm:"primaryKey;size:128"`
	Digest    string `gorm:"size:64"`
	RequestID string `gorm:"size:64"`
	Pending   bool
	Status    int
	Response  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

// IdempotencyStore persists IdempotencyRecords through gorm.
type IdempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// OpenIdempotencyStore connects to sqlite or postgres and migrates the
// schema. A zero ttl keeps records forever.
func OpenIdempotencyStore(driver, dsn string, ttl time.Duration) (*IdempotencyStore, error) {
	var dialector gorm.Dialector
	single := false
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		if strings.TrimSpace(dsn) == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
		single = true
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("idempotency: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("idempotency: open: %w", err)
	}
	if single {
		// sqlite serialises writers; a single connection avoids lock errors.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return NewIdempotencyStore(db, ttl)
}

// NewIdempotencyStore wraps an existing connection.
func NewIdempotencyStore(db *gorm.DB, ttl time.Duration) (*IdempotencyStore, error) {
	if db == nil {
		return nil, errors.New("idempotency: nil database")
	}
	if err := db.AutoMigrate(&IdempotencyRecord{}); err != nil {
		return nil, fmt.Errorf("idempotency: migrate: %w", err)
	}
	return &IdempotencyStore{db: db, ttl: ttl, now: time.Now}, nil
}

func recordFilter(sender, key string) *IdempotencyRecord {
	return &IdempotencyRecord{Sender: sender, Key: key}
}

func (s *IdempotencyStore) expired(record *IdempotencyRecord) bool {
	return s.ttl > 0 && s.now().Sub(record.CreatedAt) > s.ttl
}

// Lookup returns the stored record for sender and key. Expired records are
// treated as absent.
func (s *IdempotencyStore) Lookup(ctx context.Context, sender, key string) (*IdempotencyRecord, bool, error) {
	var record IdempotencyRecord
	err := s.db.WithContext(ctx).Where(recordFilter(sender, key)).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if s.expired(&record) {
		return nil, false, nil
	}
	return &record, true, nil
}

// Claim inserts record as pending unless its sender and key are already
// taken. When claimed is false the existing record is returned.
func (s *IdempotencyStore) Claim(ctx context.Context, record *IdempotencyRecord) (*IdempotencyRecord, bool, error) {
	db := s.db.WithContext(ctx)
	if s.ttl > 0 {
		err := db.Where(recordFilter(record.Sender, record.Key)).
			Where("created_at < ?", s.now().Add(-s.ttl)).
			Delete(&IdempotencyRecord{}).Error
		if err != nil {
			return nil, false, err
		}
	}
	record.Pending = true
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return nil, true, nil
	}
	existing, found, err := s.Lookup(ctx, record.Sender, record.Key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, fmt.Errorf("idempotency: key %q vanished during claim", record.Key)
	}
	return existing, false, nil
}

// Complete stores the final response of a claimed record.
func (s *IdempotencyStore) Complete(ctx context.Context, record *IdempotencyRecord) error {
	return s.db.WithContext(ctx).Model(&IdempotencyRecord{}).
		Where(recordFilter(record.Sender, record.Key)).
		Updates(map[string]any{
			"pending":  false,
			"status":   record.Status,
			"response": record.Response,
		}).Error
}

// Release drops a pending claim so the key can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, sender, key string) error {
	return s.db.WithContext(ctx).
		Where(recordFilter(sender, key)).
		Where("pending = ?", true).
		Delete(&IdempotencyRecord{}).Error
}

// Prune deletes records older than the ttl and reports how many went.
func (s *IdempotencyStore) Prune(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("created_at < ?", s.now().Add(-s.ttl)).Delete(&IdempotencyRecord{})
	return res.RowsAffected, res.Error
}

// Close releases the underlying connection pool.
func (s *IdempotencyStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// requestDigest binds a key to the sender and exact request body.
func requestDigest(sender string, body []byte) string {
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(sender))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// keyLocks serialises requests that share an idempotency key within this
// process. The store's claim covers other processes.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l := k.locks[key]
	if l == nil {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
