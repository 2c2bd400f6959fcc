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
	"fmt"
	"testing"

	"github.com/mediagrove/mediagrove/pkg/database"
	"github.com/mediagrove/mediagrove/pkg/database/cds"
	"github.com/mediagrove/mediagrove/pkg/database/contentdb"
	"github.com/mediagrove/mediagrove/pkg/testing/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countObjectRows(t *testing.T, store *contentdb.Store) int {
	t.Helper()
	var count int
	err := store.UnsafeGetSQLDb().QueryRow("SELECT COUNT(*) FROM Objects").Scan(&count)
	require.NoError(t, err)
	return count
}

func TestImportSessionBuffersInserts(t *testing.T) {
	t.Parallel()
	store, cleanup := helpers.NewCachedTestStore(t)
	defer cleanup()
	ctx := context.Background()

	parentID, _, err := store.EnsurePathExistence(ctx, "/media/music")
	require.NoError(t, err)
	baseline := countObjectRows(t, store)

	store.BeginImport()
	obj := cds.MustNewObject(cds.KindItem)
	obj.ParentID = parentID
	obj.Title = "Buffered Track"
	obj.Class = cds.ClassAudioItem
	obj.Location = "/media/music/buffered.mp3"
	obj.MimeType = "audio/mpeg"
	_, err = store.AddObject(ctx, obj)
	require.NoError(t, err)
	require.NotEqual(t, cds.InvalidObjectID, obj.ID)

	// the row is still pending in the buffer; the cache answers the parent
	// lookup so nothing forced a flush
	assert.Equal(t, baseline, countObjectRows(t, store))

	// a browse flushes pending inserts before querying
	result, err := store.Browse(ctx, database.BrowseParams{
		ObjectID:       parentID,
		Flag:           database.BrowseDirectChildren,
		RequestedCount: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), result.TotalMatches)
	assert.Equal(t, baseline+1, countObjectRows(t, store))

	require.NoError(t, store.EndImport(ctx))
}

func TestImportSessionEndFlushes(t *testing.T) {
	t.Parallel()
	store, cleanup := helpers.NewCachedTestStore(t)
	defer cleanup()
	ctx := context.Background()

	parentID, _, err := store.EnsurePathExistence(ctx, "/media/music")
	require.NoError(t, err)
	baseline := countObjectRows(t, store)

	store.BeginImport()
	store.BeginImport()
	for i := range 3 {
		obj := cds.MustNewObject(cds.KindItem)
		obj.ParentID = parentID
		obj.Title = fmt.Sprintf("Track %d", i)
		obj.Class = cds.ClassAudioItem
		obj.Location = fmt.Sprintf("/media/music/track%d.mp3", i)
		obj.MimeType = "audio/mpeg"
		_, err = store.AddObject(ctx, obj)
		require.NoError(t, err)
	}

	// ending the inner session keeps buffering
	require.NoError(t, store.EndImport(ctx))
	assert.Equal(t, baseline, countObjectRows(t, store))

	// ending the outermost session flushes everything
	require.NoError(t, store.EndImport(ctx))
	assert.Equal(t, baseline+3, countObjectRows(t, store))
}

func TestAddObjectWithoutSessionWritesDirectly(t *testing.T) {
	t.Parallel()
	store, cleanup := helpers.NewTestStore(t, contentdb.Config{
		InsertBuffering: true,
	})
	defer cleanup()

	baseline := countObjectRows(t, store)
	addTestItem(t, store, "/media/music/direct.mp3", "Direct Track")
	// two containers plus the item, none buffered outside a session
	assert.Equal(t, baseline+3, countObjectRows(t, store))
}
