// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package capture persists recent walk results in an embedded BadgerDB
// store, keyed by trace id.
//
// Captured walks back the GET /v1/api/walks/:traceId debugging endpoint:
// when a caller reports an unexpected question, the recorded response
// shows exactly what the engine returned, with which warnings and
// variable values. Entries expire via TTL; this is a short-window
// diagnostic buffer, not an audit log.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/flowgraph/services/flow/engine"
)

// ErrNotFound is returned when no walk is recorded under a trace id.
var ErrNotFound = errors.New("capture: walk not found")

// RecordedWalk is one captured walk: the request as received and the
// response as returned.
type RecordedWalk struct {
	TraceID    string         `json:"traceId"`
	SectionID  string         `json:"sectionId"`
	Params     map[string]any `json:"params"`
	Response   *engine.Result `json:"response"`
	RecordedAt time.Time      `json:"recordedAt"`
}

// Config holds configuration for the capture store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability. Captures are
	// diagnostics, so the default trades durability for latency.
	SyncWrites bool

	// TTL is how long a captured walk is retrievable.
	// Default: 24 hours.
	TTL time.Duration

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to a negative value to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5.
	GCDiscardRatio float64

	// Logger receives BadgerDB's internal logging. If nil, internal
	// logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults rooted at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		TTL:            24 * time.Hour,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		TTL:        24 * time.Hour,
		GCInterval: -1,
	}
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.GCInterval == 0 {
		c.GCInterval = 5 * time.Minute
	}
	if c.GCDiscardRatio <= 0 {
		c.GCDiscardRatio = 0.5
	}
	return c
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a TTL-bounded walk capture buffer.
//
// Thread Safety: safe for concurrent use; BadgerDB handles its own
// transaction isolation.
type Store struct {
	db     *badger.DB
	config Config
	stopGC chan struct{}
	doneGC chan struct{}
}

// Open opens the capture store, creating the directory if needed.
func Open(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("capture: path is required for persistent store")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("creating capture dir: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening capture store: %w", err)
	}

	s := &Store{
		db:     db,
		config: cfg,
		stopGC: make(chan struct{}),
		doneGC: make(chan struct{}),
	}
	go s.runGC()
	return s, nil
}

// Record persists a captured walk under its trace id with the store TTL.
func (s *Store) Record(walk *RecordedWalk) error {
	if walk == nil || walk.TraceID == "" {
		return errors.New("capture: walk with trace id required")
	}
	if walk.RecordedAt.IsZero() {
		walk.RecordedAt = time.Now().UTC()
	}

	data, err := json.Marshal(walk)
	if err != nil {
		return fmt.Errorf("encoding walk %s: %w", walk.TraceID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(walk.TraceID), data).WithTTL(s.config.TTL)
		return txn.SetEntry(entry)
	})
}

// Get returns the captured walk for a trace id, or ErrNotFound.
func (s *Store) Get(traceID string) (*RecordedWalk, error) {
	var walk RecordedWalk
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(traceID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, traceID)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &walk)
		})
	})
	if err != nil {
		return nil, err
	}
	return &walk, nil
}

// Close stops the GC loop and closes the database.
func (s *Store) Close() error {
	close(s.stopGC)
	<-s.doneGC
	return s.db.Close()
}

// runGC periodically reclaims value-log space from expired captures.
func (s *Store) runGC() {
	defer close(s.doneGC)
	if s.config.GCInterval < 0 || s.config.InMemory {
		<-s.stopGC
		return
	}

	ticker := time.NewTicker(s.config.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Repeat until a pass reclaims nothing.
			for s.db.RunValueLogGC(s.config.GCDiscardRatio) == nil {
			}
		case <-s.stopGC:
			return
		}
	}
}
