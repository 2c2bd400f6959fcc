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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDictionaryInsertionOrder(t *testing.T) {
	t.Parallel()

	d := NewDictionary()
	d.Set("artist", "Some Band")
	d.Set("album", "First Album")
	d.Set("genre", "Rock")

	assert.Equal(t, []string{"artist", "album", "genre"}, d.Keys())

	// replacing a value keeps its original position
	d.Set("album", "Second Album")
	assert.Equal(t, []string{"artist", "album", "genre"}, d.Keys())
	assert.Equal(t, "Second Album", d.Get("album"))

	d.Delete("artist")
	assert.Equal(t, []string{"album", "genre"}, d.Keys())
	assert.False(t, d.Has("artist"))
	assert.Equal(t, 2, d.Len())
}

func TestDictionaryEncodeDecode(t *testing.T) {
	t.Parallel()

	d := NewDictionary()
	d.Set("title", "Tom & Jerry")
	d.Set("path", "/media/music/a=b")
	d.Set("empty", "")

	encoded := d.Encode()
	decoded, err := DecodeDictionary(encoded)
	require.NoError(t, err)
	assert.True(t, d.Equals(decoded))
	assert.Equal(t, d.Keys(), decoded.Keys())
}

func TestDictionaryEncodeEmpty(t *testing.T) {
	t.Parallel()

	d := NewDictionary()
	assert.Empty(t, d.Encode())

	decoded, err := DecodeDictionary("")
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.Len())
}

func TestDictionaryDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := DecodeDictionary("%zz=1")
	assert.Error(t, err)
}

func TestDictionaryCloneIsIndependent(t *testing.T) {
	t.Parallel()

	d := NewDictionary()
	d.Set("a", "1")
	clone := d.Clone()
	clone.Set("a", "2")
	clone.Set("b", "3")

	assert.Equal(t, "1", d.Get("a"))
	assert.False(t, d.Has("b"))
	assert.False(t, d.Equals(clone))
}

func TestDictionaryEncodeRoundTripProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		d := NewDictionary()
		keys := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[ -~]{1,16}`), 0, 8, rapid.ID[string],
		).Draw(t, "keys")
		for _, k := range keys {
			d.Set(k, rapid.StringMatching(`[ -~]{0,32}`).Draw(t, "value"))
		}

		decoded, err := DecodeDictionary(d.Encode())
		require.NoError(t, err)
		require.True(t, d.Equals(decoded))
		require.Equal(t, d.Keys(), decoded.Keys())
	})
}
