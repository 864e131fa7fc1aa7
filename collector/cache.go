package collector

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow/metrics"
)

// DefaultCacheTTL is how long a fetched page stays cached.
const DefaultCacheTTL = 24 * time.Hour

// Cache stores fetched page bodies in badger, keyed by URL, with a TTL.
// It is safe for concurrent use.
type Cache struct {
	db      *badger.DB
	ttl     time.Duration
	metrics *metrics.Collector
	logger  *zap.Logger
}

// OpenCache opens the cache under dir, or in memory when dir is empty.
func OpenCache(dir string, ttl time.Duration, m *metrics.Collector, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{logger.Sugar()}).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening fetch cache: %w", err)
	}
	logger.Info("fetch cache opened", zap.String("dir", dir), zap.Duration("ttl", ttl))
	return &Cache{db: db, ttl: ttl, metrics: m, logger: logger}, nil
}

// Get returns the cached body for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn("fetch cache read failed", zap.String("key", key), zap.Error(err))
		}
		c.metrics.CacheMiss()
		return nil, false
	}
	c.metrics.CacheHit()
	return val, true
}

// Put stores value under key for the cache TTL.
func (c *Cache) Put(key string, value []byte) error {
	if c == nil {
		return nil
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(c.ttl))
	})
}

// Close flushes and closes the underlying database.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// badgerLogger routes badger's logging through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.Warnf(format, args...)
}
