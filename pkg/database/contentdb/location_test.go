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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLocationPrefixRoundTrip(t *testing.T) {
	t.Parallel()

	for _, prefix := range []byte{locPrefixDir, locPrefixFile, locPrefixVirtual} {
		stored := addLocationPrefix(prefix, "/media/music")
		gotPrefix, path, err := stripLocationPrefix(stored)
		require.NoError(t, err)
		assert.Equal(t, prefix, gotPrefix)
		assert.Equal(t, "/media/music", path)
	}
}

func TestStripLocationPrefixEdgeCases(t *testing.T) {
	t.Parallel()

	// the empty stored value is legal and maps to the illegal marker
	prefix, path, err := stripLocationPrefix("")
	require.NoError(t, err)
	assert.Equal(t, locPrefixIllegal, prefix)
	assert.Empty(t, path)

	_, _, err = stripLocationPrefix("Q/media")
	assert.Error(t, err)
}

func TestLocationHashKnownValues(t *testing.T) {
	t.Parallel()

	// djb2-xor with an empty input is the bare seed
	assert.Equal(t, int32(5381), locationHash(""))

	// single byte: (5381*33) ^ 'a'
	expected := int32((uint32(5381) << 5) + 5381 ^ uint32('a'))
	assert.Equal(t, expected, locationHash("a"))
}

func TestLocationHashProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		// deterministic
		require.Equal(t, locationHash(s), locationHash(s))
		// prefix changes the hash input, keeping D and F buckets apart
		require.NotEqual(t,
			locationHash(addLocationPrefix(locPrefixDir, s)),
			locationHash(addLocationPrefix(locPrefixFile, s)),
		)
	})
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/", normalizePath(""))
	assert.Equal(t, "/", normalizePath("/"))
	assert.Equal(t, "/a/b", normalizePath("//a///b/"))
	assert.Equal(t, "/a", normalizePath("/a"))
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	parent, leaf := splitPath("/a/b/c")
	assert.Equal(t, "/a/b", parent)
	assert.Equal(t, "c", leaf)

	parent, leaf = splitPath("/a")
	assert.Equal(t, "/", parent)
	assert.Equal(t, "a", leaf)
}

func TestEscapeNameRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		name := rapid.String().Draw(t, "name")
		require.Equal(t, name, unescapeName(escapeName(name)))
	})
}

func TestSplitChainPathHonorsEscapes(t *testing.T) {
	t.Parallel()

	// "AC/DC" is one segment when its separator is escaped
	parent, leaf := splitChainPath("/Audio/Artists/AC\\/DC")
	assert.Equal(t, "/Audio/Artists", parent)
	assert.Equal(t, "AC\\/DC", leaf)
	assert.Equal(t, "AC/DC", unescapeName(leaf))

	parent, leaf = splitChainPath("/Audio")
	assert.Equal(t, "/", parent)
	assert.Equal(t, "Audio", leaf)
}
