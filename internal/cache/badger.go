// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// BadgerCache is an on-disk Cache that survives restarts. Badger enforces TTLs.
type BadgerCache struct {
	db     *badger.DB
	logger zerolog.Logger
	stats  counters
}

// OpenBadgerCache opens (or creates) a Badger database in dir.
// An empty dir runs Badger in memory.
func OpenBadgerCache(dir string, logger zerolog.Logger) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	logger.Info().Str("dir", dir).Msg("opened Badger cache")
	return &BadgerCache{db: db, logger: logger}, nil
}

// Get retrieves a value.
func (c *BadgerCache) Get(key string) ([]byte, bool) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn().Err(err).Str("key", key).Msg("badger get failed")
		}
		c.stats.misses.Add(1)
		return nil, false
	}
	c.stats.hits.Add(1)
	return out, true
}

// Set stores a value with TTL.
func (c *BadgerCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(ttl))
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger set failed")
		return
	}
	c.stats.sets.Add(1)
}

// Delete removes a value.
func (c *BadgerCache) Delete(key string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger delete failed")
	}
}

// Clear drops all data.
func (c *BadgerCache) Clear() {
	if err := c.db.DropAll(); err != nil {
		c.logger.Warn().Err(err).Msg("badger drop failed")
	}
}

// Stats counts live keys.
func (c *BadgerCache) Stats() CacheStats {
	size := 0
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			size++
		}
		return nil
	})
	return c.stats.snapshot(size)
}

// DeleteExpired runs value log GC. Expired keys are already invisible.
func (c *BadgerCache) DeleteExpired() int {
	if c.db.Opts().InMemory {
		return 0
	}
	for {
		if err := c.db.RunValueLogGC(0.5); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
				c.logger.Debug().Err(err).Msg("badger value log gc")
			}
			return 0
		}
	}
}

// Close closes the database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// HealthCheck fails once the database is closed.
func (c *BadgerCache) HealthCheck(context.Context) error {
	if c.db.IsClosed() {
		return errors.New("badger cache is closed")
	}
	return nil
}
