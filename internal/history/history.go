// TalkAlert - Chat Activity Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/talkalert

// Package history keeps a short, expiring log of dispatch results in an
// embedded BadgerDB so the UI can show recent alerts after a restart.
//
// Keys sort by time: "result:<unix-nanos, zero padded>:<id>". Entries carry
// a TTL and disappear on their own; the value log is garbage collected
// periodically while Record runs.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/talkalert/internal/logging"
	"github.com/tomtom215/talkalert/internal/metrics"
	"github.com/tomtom215/talkalert/internal/models"
)

const (
	keyPrefix  = "result:"
	gcInterval = 10 * time.Minute
	// MaxLimit caps Recent.
	MaxLimit = 1000
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history store closed")

// Config configures the store.
type Config struct {
	Path     string
	InMemory bool
	TTL      time.Duration
	// Limit is the default page size of Recent.
	Limit int
}

// Store is the dispatch history.
type Store struct {
	db     *badger.DB
	cfg    Config
	closed atomic.Bool
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	if cfg.Limit <= 0 {
		cfg.Limit = 200
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("ttl", cfg.TTL).
		Msg("Dispatch history opened")

	return &Store{db: db, cfg: cfg}, nil
}

func resultKey(r *models.DispatchResult) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", keyPrefix, r.At.UnixNano(), r.ID))
}

// Append stores r.
func (s *Store) Append(r *models.DispatchResult) error {
	if s.closed.Load() {
		return ErrClosed
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode dispatch result: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(resultKey(r), data)
		if s.cfg.TTL > 0 {
			e = e.WithTTL(s.cfg.TTL)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		metrics.HistoryWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("write dispatch result: %w", err)
	}
	metrics.HistoryWrites.WithLabelValues("ok").Inc()
	return nil
}

// Recent returns up to limit results, newest first. limit <= 0 uses the
// configured default; values above MaxLimit are capped.
func (s *Store) Recent(limit int) ([]models.DispatchResult, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = s.cfg.Limit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	out := make([]models.DispatchResult, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the last key <= seek.
		seek := append([]byte(keyPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(keyPrefix)) && len(out) < limit; it.Next() {
			var r models.DispatchResult
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping unreadable history entry")
				continue
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read dispatch history: %w", err)
	}
	return out, nil
}

// Record appends every result from results until ctx ends or the channel
// closes. Write errors are logged and counted, never returned.
func (s *Store) Record(ctx context.Context, results <-chan models.DispatchResult) error {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-results:
			if !ok {
				return nil
			}
			if err := s.Append(&r); err != nil {
				logging.Warn().Err(err).Str("result_id", r.ID).Msg("Failed to record dispatch result")
			}
		case <-ticker.C:
			if err := s.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("History GC failed")
			}
		}
	}
}

// RunGC reclaims value log space held by expired entries.
func (s *Store) RunGC() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.cfg.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the database. It is safe to call twice.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("Dispatch history closed")
	return nil
}
