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

package contentdb

import (
	"testing"

	"github.com/mediagrove/mediagrove/pkg/database/cds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheObjectPartialKnowledge(t *testing.T) {
	t.Parallel()

	co := &CacheObject{}
	assert.False(t, co.KnowsParentID())
	assert.False(t, co.KnowsObject())
	assert.False(t, co.KnowsNumChildren())

	co.SetParentID(3)
	assert.True(t, co.KnowsParentID())
	assert.Equal(t, int64(3), co.ParentID())
	// knowing the parent says nothing about the rest
	assert.False(t, co.KnowsObject())
	assert.False(t, co.KnowsLocation())
}

func TestCacheObjectSetObjectDerivesFields(t *testing.T) {
	t.Parallel()

	obj := cds.MustNewObject(cds.KindItem)
	obj.ID = 9
	obj.ParentID = 4
	obj.RefID = 2
	obj.Virtual = true

	co := &CacheObject{}
	co.SetObject(obj)
	assert.True(t, co.KnowsObject())
	assert.True(t, co.KnowsParentID())
	assert.Equal(t, int64(4), co.ParentID())
	assert.True(t, co.KnowsRefID())
	assert.Equal(t, int64(2), co.RefID())
	assert.True(t, co.KnowsObjectType())
	assert.True(t, co.KnowsVirtual())
	assert.True(t, co.Virtual())
}

func TestCacheFlushedFlagConsumeOnce(t *testing.T) {
	t.Parallel()

	cache := NewCache(8, 2)

	guard := cache.Lock()
	for id := int64(10); id < 14; id++ {
		guard.GetObjectDefinitely(id).SetParentID(1)
	}
	guard.EnsureFillLevelOK()
	guard.Unlock()

	// overflow evicted everything and raised the flag exactly once
	assert.True(t, cache.Flushed())
	assert.False(t, cache.Flushed())

	guard = cache.Lock()
	assert.Nil(t, guard.GetObject(10))
	guard.Unlock()
}

func TestCacheClearDoesNotRaiseFlushed(t *testing.T) {
	t.Parallel()

	cache := NewCache(8, 4)
	guard := cache.Lock()
	guard.GetObjectDefinitely(5).SetParentID(1)
	guard.Clear()
	guard.Unlock()

	assert.False(t, cache.Flushed())
}

func TestCacheLocationIndex(t *testing.T) {
	t.Parallel()

	cache := NewCache(16, 12)
	guard := cache.Lock()
	defer guard.Unlock()

	co := guard.GetObjectDefinitely(7)
	co.SetLocation("F/media/a.mp3")
	guard.CheckLocation(co)
	// re-registering the same entry must not duplicate the bucket
	guard.CheckLocation(co)

	bucket := guard.GetByLocation("F/media/a.mp3")
	require.Len(t, bucket, 1)
	assert.Same(t, co, bucket[0])

	// an alias at the same location shares the bucket
	alias := guard.GetObjectDefinitely(8)
	alias.SetLocation("F/media/a.mp3")
	guard.CheckLocation(alias)
	assert.Len(t, guard.GetByLocation("F/media/a.mp3"), 2)

	guard.Remove(7)
	bucket = guard.GetByLocation("F/media/a.mp3")
	require.Len(t, bucket, 1)
	assert.Same(t, alias, bucket[0])
	assert.Nil(t, guard.GetObject(7))
}

func TestCacheAddChild(t *testing.T) {
	t.Parallel()

	cache := NewCache(16, 12)
	guard := cache.Lock()
	defer guard.Unlock()

	parent := guard.GetObjectDefinitely(2)
	parent.SetNumChildren(3)
	guard.AddChild(2)
	assert.Equal(t, int32(4), parent.NumChildren())

	// unknown counts stay unknown rather than becoming wrong
	other := guard.GetObjectDefinitely(3)
	guard.AddChild(3)
	assert.False(t, other.KnowsNumChildren())

	// a miss is a no-op
	guard.AddChild(99)
}
