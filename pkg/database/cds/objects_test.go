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

package cds

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObjectRejectsOpenTypeMasks(t *testing.T) {
	t.Parallel()

	// only the closed kind combinations are constructible
	for _, kind := range []ObjectType{
		0,
		TypeActiveItem,
		TypeItemExternalURL,
		TypeContainer | TypeItem,
	} {
		_, err := NewObject(kind)
		assert.Error(t, err, "mask %#x", int(kind))
	}

	obj, err := NewObject(KindItemInternalURL)
	require.NoError(t, err)
	assert.True(t, obj.IsItem())
	assert.True(t, obj.IsExternalURL())
	assert.True(t, obj.IsInternalURL())
	assert.False(t, obj.IsPureItem())
}

func TestObjectPredicates(t *testing.T) {
	t.Parallel()

	container := MustNewObject(KindContainer)
	assert.True(t, container.IsContainer())
	assert.False(t, container.IsItem())

	item := MustNewObject(KindItem)
	assert.True(t, item.IsPureItem())
	assert.False(t, item.IsActiveItem())

	active := MustNewObject(KindActiveItem)
	assert.True(t, active.IsItem())
	assert.True(t, active.IsActiveItem())
	assert.False(t, active.IsPureItem())
}

func TestForbiddenIDs(t *testing.T) {
	t.Parallel()

	assert.True(t, IsForbiddenID(IDRoot))
	assert.True(t, IsForbiddenID(IDFsRoot))
	assert.True(t, IsForbiddenID(InvalidObjectID))
	assert.False(t, IsForbiddenID(2))
}

func TestObjectCloneEquals(t *testing.T) {
	t.Parallel()

	obj := MustNewObject(KindItem)
	obj.ID = 42
	obj.ParentID = 7
	obj.Title = "Track 1"
	obj.Class = ClassAudioItem
	obj.Location = "/media/music/track1.mp3"
	obj.MimeType = "audio/mpeg"
	obj.TrackNumber = 1
	obj.Metadata.Set(MetaArtist, "Some Band")
	res := NewResource()
	res.Attributes.Set(ResAttrProtocolInfo, "http-get:*:audio/mpeg:*")
	obj.AddResource(res)

	clone := obj.Clone()
	require.True(t, obj.Equals(clone, true))

	// a mutated clone must not reach back into the original
	clone.Metadata.Set(MetaArtist, "Other Band")
	clone.Resources[0].Attributes.Set(ResAttrSize, "1")
	assert.Equal(t, "Some Band", obj.Metadata.Get(MetaArtist))
	assert.False(t, obj.Resources[0].Attributes.Has(ResAttrSize))
	assert.False(t, obj.Equals(clone, true))
}

func TestObjectEqualsExactness(t *testing.T) {
	t.Parallel()

	obj := MustNewObject(KindItem)
	obj.ID = 5
	obj.ParentID = 2
	obj.Title = "A"
	obj.Class = ClassItem
	obj.Location = "/media/a"

	other := obj.Clone()
	other.Auxdata.Set("scan", "pending")

	// loose comparison ignores auxdata and location
	assert.True(t, obj.Equals(other, false))
	assert.False(t, obj.Equals(other, true))

	differentKind := MustNewObject(KindActiveItem)
	differentKind.ID = 5
	differentKind.ParentID = 2
	differentKind.Title = "A"
	differentKind.Class = ClassItem
	assert.False(t, obj.Equals(differentKind, false))
}

func TestObjectCopyToKeepsTargetKind(t *testing.T) {
	t.Parallel()

	item := MustNewObject(KindItem)
	item.Title = "Track"
	item.Class = ClassAudioItem
	item.MimeType = "audio/flac"
	item.TrackNumber = 3

	container := MustNewObject(KindContainer)
	item.CopyTo(container)

	assert.Equal(t, "Track", container.Title)
	assert.True(t, container.IsContainer())
	// item-only fields never cross into a container target
	assert.Empty(t, container.MimeType)
	assert.Zero(t, container.TrackNumber)
}

func TestObjectValidate(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/media/a.mp3", []byte("x"), 0o644))

	item := MustNewObject(KindItem)
	item.Title = "A"
	item.Class = ClassAudioItem
	item.Location = "/media/a.mp3"
	require.NoError(t, item.Validate(fsys))

	item.Location = "/media/missing.mp3"
	assert.Error(t, item.Validate(fsys))

	// virtual items defer the filesystem check to reference resolution
	item.Virtual = true
	assert.NoError(t, item.Validate(fsys))

	missingTitle := MustNewObject(KindContainer)
	missingTitle.Class = ClassContainer
	assert.Error(t, missingTitle.Validate(fsys))

	internal := MustNewObject(KindItemInternalURL)
	internal.Title = "Stream"
	internal.Class = ClassItem
	internal.Location = "http://example.com/stream"
	assert.Error(t, internal.Validate(fsys))
	internal.Location = "content/stream"
	assert.NoError(t, internal.Validate(fsys))

	active := MustNewObject(KindActiveItem)
	active.Title = "Script"
	active.Class = ClassItem
	active.Location = "/media/a.mp3"
	assert.Error(t, active.Validate(fsys), "active items need an action")
	active.Action = "/usr/bin/notify"
	assert.NoError(t, active.Validate(fsys))
}
