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
	"fmt"
	"strings"
)

// Stored location strings carry a one-character provenance prefix. The
// prefix is the sole discriminator between a real directory, a real file and
// a synthesized virtual path sharing the same text.
const (
	locPrefixDir     byte = 'D'
	locPrefixFile    byte = 'F'
	locPrefixVirtual byte = 'V'
	locPrefixIllegal byte = 'X'
)

func addLocationPrefix(prefix byte, location string) string {
	return string(prefix) + location
}

// stripLocationPrefix splits a stored location into its prefix and path.
// Empty locations yield the illegal prefix; unknown prefixes are an error
// because they indicate row corruption.
func stripLocationPrefix(stored string) (prefix byte, path string, err error) {
	if stored == "" {
		return locPrefixIllegal, "", nil
	}
	prefix = stored[0]
	switch prefix {
	case locPrefixDir, locPrefixFile, locPrefixVirtual:
		return prefix, stored[1:], nil
	default:
		return locPrefixIllegal, "", fmt.Errorf("unknown location prefix %q in %q", string(prefix), stored)
	}
}

// locationHash is the DJB2-xor string hash (seed 5381, h = h*33 ^ byte) over
// the PREFIXED location string. It is an index accelerant only: every lookup
// that filters on it also compares the exact string, so collisions are
// harmless.
func locationHash(prefixed string) int32 {
	var h uint32 = 5381
	for i := 0; i < len(prefixed); i++ {
		h = ((h << 5) + h) ^ uint32(prefixed[i])
	}
	return int32(h)
}

// normalizePath collapses repeated separators and trims a trailing one.
// The root path stays "/".
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	var b strings.Builder
	b.Grow(len(path))
	prevSep := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSep {
				continue
			}
			prevSep = true
		} else {
			prevSep = false
		}
		b.WriteByte(c)
	}
	n := b.String()
	if len(n) > 1 {
		n = strings.TrimSuffix(n, "/")
	}
	if n == "" {
		n = "/"
	}
	return n
}

// splitPath returns the parent path and leaf segment of a normalized path.
func splitPath(path string) (parent, leaf string) {
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return "/", strings.TrimPrefix(path, "/")
	}
	return path[:idx], path[idx+1:]
}

// escapeName makes a container title safe for embedding in a slash-joined
// virtual chain path. '\' escapes itself and '/'.
func escapeName(name string) string {
	name = strings.ReplaceAll(name, `\`, `\\`)
	return strings.ReplaceAll(name, "/", `\/`)
}

// unescapeName reverses escapeName.
func unescapeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	escaped := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// splitChainPath splits a virtual chain path on unescaped separators.
func splitChainPath(path string) (parent, leaf string) {
	escaped := false
	last := -1
	for i := 0; i < len(path); i++ {
		c := path[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '/' {
			last = i
		}
	}
	if last <= 0 {
		return "/", strings.TrimPrefix(path, "/")
	}
	return path[:last], path[last+1:]
}
