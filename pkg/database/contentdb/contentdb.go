// Mediagrove
// Copyright (c) 2026 The Mediagrove Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Mediagrove.
//
// Mediagrove is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Mediagrove is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Mediagrove.  If not, see <http://www.gnu.org/licenses/>.

// Package contentdb implements the SQLite-backed content directory store:
// the object tree served over UPnP ContentDirectory, its partial-knowledge
// cache, and the import-time insert buffer.
package contentdb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/mediagrove/mediagrove/pkg/database"
	"github.com/mediagrove/mediagrove/pkg/database/cds"
	"github.com/mediagrove/mediagrove/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var _ database.ContentDBI = (*Store)(nil)

// Config carries the tunables for a content store instance.
type Config struct {
	// Path is the SQLite database file location.
	Path string
	// Caching enables the in-memory object cache.
	Caching bool
	// CacheCapacity and CacheMaxFill override the cache defaults when > 0.
	CacheCapacity int
	CacheMaxFill  int
	// InsertBuffering enables write coalescing between BeginImport and
	// EndImport.
	InsertBuffering bool
	// BufferFlushRows overrides the buffered-row flush threshold when > 0.
	BufferFlushRows int
}

// Store is the content directory storage engine. All public operations are
// safe for concurrent use; writers are serialized on a single engine mutex.
type Store struct {
	sql   *sql.DB
	fsys  afero.Fs
	clock clockwork.Clock
	cfg   Config

	mu syncutil.Mutex

	cache *Cache
	buf   *insertBuffer
	// chainMemo short-circuits repeated virtual container chain adds during
	// one import run. Guarded by mu, dropped whenever the cache is cleared.
	chainMemo map[string]int64
	// importDepth counts nested BeginImport calls; buffering is active
	// while it is positive. Guarded by mu.
	importDepth int

	// lastID is the highest object id ever handed out. IDs are allocated
	// by the engine, never by SQLite, so buffered rows can reference each
	// other before they hit the database.
	lastID int64
	idMu   syncutil.Mutex
}

// NewStore creates an unopened store. The filesystem is used for database
// directory creation and object location checks; the clock feeds autoscan
// timestamps. Pass afero.NewOsFs() and clockwork.NewRealClock() outside of
// tests.
func NewStore(cfg Config, fsys afero.Fs, clock clockwork.Clock) *Store {
	s := &Store{
		fsys:      fsys,
		clock:     clock,
		cfg:       cfg,
		chainMemo: make(map[string]int64),
	}
	if cfg.Caching {
		capacity := cfg.CacheCapacity
		if capacity <= 0 {
			capacity = DefaultCacheCapacity
		}
		maxFill := cfg.CacheMaxFill
		if maxFill <= 0 || maxFill > capacity {
			maxFill = capacity * DefaultCacheMaxFill / DefaultCacheCapacity
		}
		s.cache = NewCache(capacity, maxFill)
	}
	if cfg.InsertBuffering {
		flushRows := cfg.BufferFlushRows
		if flushRows <= 0 {
			flushRows = defaultBufferFlushRows
		}
		s.buf = newInsertBuffer(flushRows)
	}
	return s
}

// Open connects to the database file, applies pending migrations, and
// primes the id allocator from the existing rows.
func (s *Store) Open() error {
	if err := s.fsys.MkdirAll(filepath.Dir(s.cfg.Path), 0o750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	sq, err := sql.Open("sqlite3", s.cfg.Path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open content database: %w", err)
	}
	s.sql = sq
	if err := s.Allocate(); err != nil {
		return err
	}
	if err := s.MigrateUp(); err != nil {
		return err
	}
	return s.loadLastID(context.Background())
}

// MigrateUp applies all pending schema migrations.
func (s *Store) MigrateUp() error {
	if s.sql == nil {
		return database.ErrNullSQL
	}
	return sqlMigrateUp(s.sql)
}

// Allocate pre-sizes SQLite page caching for the content workload.
func (s *Store) Allocate() error {
	if s.sql == nil {
		return database.ErrNullSQL
	}
	return sqlAllocate(s.sql)
}

func (s *Store) loadLastID(ctx context.Context) error {
	var maxID int64
	err := s.sql.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(ID), ?) FROM Objects", cds.IDFsRoot,
	).Scan(&maxID)
	if err != nil {
		return fmt.Errorf("failed to determine highest object id: %w", err)
	}
	s.idMu.Lock()
	if maxID < cds.IDFsRoot {
		maxID = cds.IDFsRoot
	}
	s.lastID = maxID
	s.idMu.Unlock()
	return nil
}

// nextID hands out the next object id. IDs are monotonically increasing and
// never reused within a database lifetime.
func (s *Store) nextID() int64 {
	s.idMu.Lock()
	s.lastID++
	id := s.lastID
	s.idMu.Unlock()
	return id
}

// Close flushes any buffered inserts and closes the database.
func (s *Store) Close() error {
	if s.sql == nil {
		return nil
	}
	s.mu.Lock()
	if err := s.flushInsertBuffer(context.Background()); err != nil {
		log.Warn().Err(err).Msg("failed to flush insert buffer on close")
	}
	s.mu.Unlock()
	if err := s.sql.Close(); err != nil {
		return fmt.Errorf("failed to close content database: %w", err)
	}
	s.sql = nil
	return nil
}

// BeginImport starts an import session. While a session is active, item
// inserts are coalesced into multi-row statements; any read against the
// store flushes pending rows first, so readers never observe a gap. Calls
// nest.
func (s *Store) BeginImport() {
	if s.buf == nil {
		return
	}
	s.mu.Lock()
	s.importDepth++
	s.mu.Unlock()
}

// EndImport closes an import session and, when the outermost session ends,
// flushes the remaining buffered rows.
func (s *Store) EndImport(ctx context.Context) error {
	if s.buf == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.importDepth > 0 {
		s.importDepth--
	}
	if s.importDepth == 0 {
		return s.flushInsertBuffer(ctx)
	}
	return nil
}

// importing reports whether inserts should go through the buffer.
// Callers must hold mu.
func (s *Store) importing() bool {
	return s.buf != nil && s.importDepth > 0
}

// flushInsertBuffer writes any coalesced rows out. Callers must hold mu.
func (s *Store) flushInsertBuffer(ctx context.Context) error {
	if s.buf == nil || s.buf.empty() {
		return nil
	}
	return s.buf.flush(ctx, s.sql)
}

// Truncate removes every object except the two fixed roots and resets the
// id allocator. Used by full rescans and tests.
func (s *Store) Truncate() error {
	ctx := context.Background()
	if s.sql == nil {
		return database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushInsertBuffer(ctx); err != nil {
		return err
	}
	if _, err := s.sql.ExecContext(ctx, "DELETE FROM ActiveItems"); err != nil {
		return fmt.Errorf("failed to truncate active items: %w", err)
	}
	if _, err := s.sql.ExecContext(ctx, "DELETE FROM Autoscan"); err != nil {
		return fmt.Errorf("failed to truncate autoscan directories: %w", err)
	}
	if _, err := s.sql.ExecContext(ctx, "DELETE FROM Objects WHERE ID > ?", cds.IDFsRoot); err != nil {
		return fmt.Errorf("failed to truncate objects: %w", err)
	}
	if _, err := s.sql.ExecContext(ctx, "UPDATE Objects SET UpdateID = 0"); err != nil {
		return fmt.Errorf("failed to reset container update ids: %w", err)
	}
	s.clearCache()
	s.idMu.Lock()
	s.lastID = cds.IDFsRoot
	s.idMu.Unlock()
	return nil
}

// Vacuum compacts the database file.
func (s *Store) Vacuum() error {
	if s.sql == nil {
		return database.ErrNullSQL
	}
	if _, err := s.sql.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum content database: %w", err)
	}
	return nil
}

// clearCache drops the object cache and the chain memo together; both map
// object ids that a bulk mutation may have invalidated. Callers must hold mu.
func (s *Store) clearCache() {
	s.chainMemo = make(map[string]int64)
	if s.cache == nil {
		return
	}
	guard := s.cache.Lock()
	guard.Clear()
	guard.Unlock()
}

// GetDBPath returns the database file location.
func (s *Store) GetDBPath() string {
	return s.cfg.Path
}

// UnsafeGetSQLDb exposes the raw handle for maintenance tooling. Callers
// bypass the engine mutex, cache, and insert buffer entirely.
func (s *Store) UnsafeGetSQLDb() *sql.DB {
	return s.sql
}

// SetSQLForTesting swaps in an externally opened handle, applies the schema,
// and primes the id allocator. Tests use this with temp-file SQLite databases
// or sqlmock handles.
func (s *Store) SetSQLForTesting(ctx context.Context, db *sql.DB, migrate bool) error {
	s.sql = db
	if !migrate {
		return nil
	}
	if err := s.MigrateUp(); err != nil {
		return err
	}
	return s.loadLastID(ctx)
}
