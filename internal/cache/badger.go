// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// BadgerCache persists cached results on local disk across restarts.
type BadgerCache struct {
	db      *badger.DB
	logger  zerolog.Logger
	stats   counters
	janitor *janitor
}

// NewBadgerCache opens (or creates) a Badger database in dir. A positive
// gcInterval runs value log garbage collection in the background.
func NewBadgerCache(dir string, gcInterval time.Duration, logger zerolog.Logger) (*BadgerCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("badger cache: directory is required")
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("badger cache: open %s: %w", dir, err)
	}

	c := &BadgerCache{db: db, logger: logger, stats: counters{backend: BackendBadger}}
	if gcInterval > 0 {
		c.janitor = newJanitor(gcInterval)
		go c.janitor.run(c.collectGarbage)
	}
	logger.Info().Str("dir", dir).Msg("opened Badger cache")
	return c, nil
}

func (c *BadgerCache) Get(_ context.Context, key string) ([]byte, bool) {
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
		c.stats.miss()
		return nil, false
	}
	c.stats.hit()
	return out, true
}

func (c *BadgerCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger set failed")
		return
	}
	c.stats.sets.Add(1)
}

func (c *BadgerCache) Delete(_ context.Context, keys ...string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Int("keys", len(keys)).Msg("badger delete failed")
		return
	}
	c.stats.evictions.Add(int64(len(keys)))
}

func (c *BadgerCache) Stats() Stats {
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

// Close stops garbage collection and closes the database.
func (c *BadgerCache) Close() error {
	if c.janitor != nil {
		c.janitor.stop()
	}
	return c.db.Close()
}

func (c *BadgerCache) collectGarbage() {
	for {
		// Returns ErrNoRewrite once nothing is left to collect.
		if err := c.db.RunValueLogGC(0.5); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
				c.logger.Warn().Err(err).Msg("badger value log gc failed")
			}
			return
		}
	}
}
