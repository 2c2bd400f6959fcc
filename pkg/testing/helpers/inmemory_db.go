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

// Package helpers provides shared test setup for the database packages.
package helpers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mediagrove/mediagrove/pkg/database/contentdb"
	"github.com/spf13/afero"
)

// NewTestStore opens a fully migrated content store backed by a temp-file
// SQLite database. The file (unlike :memory:) survives connection pool
// churn, matching production behavior.
func NewTestStore(t *testing.T, cfg contentdb.Config) (store *contentdb.Store, cleanup func()) {
	t.Helper()

	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "contentdb_test.db")
	cfg.Path = dbPath

	sqlDB, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=ON")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	store = contentdb.NewStore(cfg, afero.NewMemMapFs(), clockwork.NewFakeClock())
	if err := store.SetSQLForTesting(context.Background(), sqlDB, true); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			t.Errorf("Failed to close SQL database after setup error: %v", closeErr)
		}
		t.Fatalf("Failed to set up content store for testing: %v", err)
	}

	cleanup = func() {
		if err := store.Close(); err != nil {
			t.Errorf("Failed to close content store: %v", err)
		}
	}
	return store, cleanup
}

// NewCachedTestStore is NewTestStore with caching and insert buffering on.
func NewCachedTestStore(t *testing.T) (*contentdb.Store, func()) {
	t.Helper()
	return NewTestStore(t, contentdb.Config{
		Caching:         true,
		InsertBuffering: true,
	})
}
