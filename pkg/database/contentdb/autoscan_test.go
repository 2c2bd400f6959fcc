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

package contentdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/mediagrove/mediagrove/pkg/database"
	"github.com/mediagrove/mediagrove/pkg/database/cds"
	"github.com/mediagrove/mediagrove/pkg/database/contentdb"
	"github.com/mediagrove/mediagrove/pkg/testing/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoscanSetGetRemove(t *testing.T) {
	t.Parallel()
	store, cleanup := helpers.NewTestStore(t, contentdb.Config{})
	defer cleanup()
	ctx := context.Background()

	dirID, _, err := store.EnsurePathExistence(ctx, "/media/music")
	require.NoError(t, err)

	dir := &database.AutoscanDir{
		ObjectID:  dirID,
		ScanMode:  database.ScanModeTimed,
		ScanLevel: database.ScanLevelFull,
		Interval:  30 * time.Minute,
		Recursive: true,
	}
	require.NoError(t, store.SetAutoscanDirectory(ctx, dir))
	assert.Positive(t, dir.DBID)

	got, err := store.GetAutoscanDirectory(ctx, dirID)
	require.NoError(t, err)
	assert.Equal(t, dir.DBID, got.DBID)
	assert.Equal(t, "/media/music", got.Location)
	assert.Equal(t, 30*time.Minute, got.Interval)
	assert.True(t, got.Recursive)
	// the ancestor chain was recorded for overlap and rescue lookups
	assert.Contains(t, got.PathIDs, cds.IDFsRoot)

	require.NoError(t, store.RemoveAutoscanDirectory(ctx, dirID))
	_, err = store.GetAutoscanDirectory(ctx, dirID)
	assert.ErrorIs(t, err, database.ErrObjectNotFound)
}

func TestAutoscanRejectsNonContainer(t *testing.T) {
	t.Parallel()
	store, cleanup := helpers.NewTestStore(t, contentdb.Config{})
	defer cleanup()
	ctx := context.Background()

	item := addTestItem(t, store, "/media/music/track1.mp3", "Track 1")
	err := store.SetAutoscanDirectory(ctx, &database.AutoscanDir{
		ObjectID: item.ID,
		ScanMode: database.ScanModeTimed,
	})
	assert.ErrorIs(t, err, database.ErrInvalidObjectID)
}

func TestAutoscanOverlapDetection(t *testing.T) {
	t.Parallel()
	store, cleanup := helpers.NewTestStore(t, contentdb.Config{})
	defer cleanup()
	ctx := context.Background()

	parentID, _, err := store.EnsurePathExistence(ctx, "/media")
	require.NoError(t, err)
	childID, _, err := store.EnsurePathExistence(ctx, "/media/music")
	require.NoError(t, err)

	require.NoError(t, store.SetAutoscanDirectory(ctx, &database.AutoscanDir{
		ObjectID:  parentID,
		ScanMode:  database.ScanModeINotify,
		Recursive: true,
	}))

	// anything below a recursive watch is already covered
	err = store.SetAutoscanDirectory(ctx, &database.AutoscanDir{
		ObjectID: childID,
		ScanMode: database.ScanModeINotify,
	})
	assert.ErrorIs(t, err, database.ErrAutoscanOverlap)

	// a second watch on the same container is an overlap too
	err = store.SetAutoscanDirectory(ctx, &database.AutoscanDir{
		ObjectID: parentID,
		ScanMode: database.ScanModeTimed,
	})
	assert.ErrorIs(t, err, database.ErrAutoscanOverlap)
}

func TestAutoscanRecursiveAboveExistingOverlaps(t *testing.T) {
	t.Parallel()
	store, cleanup := helpers.NewTestStore(t, contentdb.Config{})
	defer cleanup()
	ctx := context.Background()

	parentID, _, err := store.EnsurePathExistence(ctx, "/media")
	require.NoError(t, err)
	childID, _, err := store.EnsurePathExistence(ctx, "/media/music")
	require.NoError(t, err)

	require.NoError(t, store.SetAutoscanDirectory(ctx, &database.AutoscanDir{
		ObjectID: childID,
		ScanMode: database.ScanModeTimed,
	}))

	err = store.SetAutoscanDirectory(ctx, &database.AutoscanDir{
		ObjectID:  parentID,
		ScanMode:  database.ScanModeTimed,
		Recursive: true,
	})
	assert.ErrorIs(t, err, database.ErrAutoscanOverlap)
}

func TestPersistentAutoscanSurvivesRemoval(t *testing.T) {
	t.Parallel()
	store, cleanup := helpers.NewTestStore(t, contentdb.Config{})
	defer cleanup()
	ctx := context.Background()

	dirID, _, err := store.EnsurePathExistence(ctx, "/media/watched")
	require.NoError(t, err)
	require.NoError(t, store.SetAutoscanDirectory(ctx, &database.AutoscanDir{
		ObjectID:   dirID,
		ScanMode:   database.ScanModeTimed,
		Persistent: true,
	}))

	otherID, _, err := store.EnsurePathExistence(ctx, "/media/transient")
	require.NoError(t, err)
	require.NoError(t, store.SetAutoscanDirectory(ctx, &database.AutoscanDir{
		ObjectID: otherID,
		ScanMode: database.ScanModeTimed,
	}))

	_, err = store.RemoveObject(ctx, dirID, false)
	require.NoError(t, err)
	_, err = store.RemoveObject(ctx, otherID, false)
	require.NoError(t, err)

	// the persistent watch became a location-only entry, the transient one
	// went down with its container
	list, err := store.GetAutoscanList(ctx, database.ScanModeTimed)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cds.InvalidObjectID, list[0].ObjectID)
	assert.Equal(t, "/media/watched", list[0].Location)
	assert.True(t, list[0].Persistent)
}

func TestUpdateAutoscanPersistentList(t *testing.T) {
	t.Parallel()
	store, cleanup := helpers.NewTestStore(t, contentdb.Config{})
	defer cleanup()
	ctx := context.Background()

	_, _, err := store.EnsurePathExistence(ctx, "/media/music")
	require.NoError(t, err)

	require.NoError(t, store.UpdateAutoscanPersistentList(ctx, database.ScanModeTimed,
		[]database.AutoscanDir{
			{Location: "/media/music", Recursive: true, Interval: time.Hour},
			{Location: "/media/photos"},
		}))

	list, err := store.GetAutoscanList(ctx, database.ScanModeTimed)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byLocation := make(map[string]database.AutoscanDir, len(list))
	for _, dir := range list {
		byLocation[dir.Location] = dir
	}
	// imported directories reattach to their container, others stay pending
	assert.NotEqual(t, cds.InvalidObjectID, byLocation["/media/music"].ObjectID)
	assert.Equal(t, cds.InvalidObjectID, byLocation["/media/photos"].ObjectID)
	musicDBID := byLocation["/media/music"].DBID

	// a second reconcile with one entry dropped sweeps the stale row and
	// matches the surviving entry by its attached object, keeping the row
	require.NoError(t, store.UpdateAutoscanPersistentList(ctx, database.ScanModeTimed,
		[]database.AutoscanDir{
			{Location: "/media/music", Recursive: true, Interval: 2 * time.Hour},
		}))

	list, err = store.GetAutoscanList(ctx, database.ScanModeTimed)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "/media/music", list[0].Location)
	assert.Equal(t, 2*time.Hour, list[0].Interval)
	assert.Equal(t, musicDBID, list[0].DBID)
}
