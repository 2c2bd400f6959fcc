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
	"fmt"
	"net/url"
	"strings"
)

// Dictionary is an insertion-ordered string map used for object metadata,
// auxdata and resource attributes. Order matters for DIDL-Lite rendering, so
// a plain Go map is not enough.
type Dictionary struct {
	values map[string]string
	keys   []string
}

// NewDictionary returns an empty ordered dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{values: make(map[string]string)}
}

// Set adds or replaces a key. Replacing keeps the key's original position.
func (d *Dictionary) Set(key, value string) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value for key, or "" when absent.
func (d *Dictionary) Get(key string) string {
	return d.values[key]
}

// Has reports whether key is present.
func (d *Dictionary) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Delete removes a key if present.
func (d *Dictionary) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	return len(d.keys)
}

// Keys returns the keys in insertion order. The returned slice is shared;
// callers must not modify it.
func (d *Dictionary) Keys() []string {
	return d.keys
}

// Clone returns a deep copy with its own underlying storage.
func (d *Dictionary) Clone() *Dictionary {
	c := NewDictionary()
	for _, k := range d.keys {
		c.Set(k, d.values[k])
	}
	return c
}

// Equals compares contents and order.
func (d *Dictionary) Equals(other *Dictionary) bool {
	if other == nil || len(d.keys) != len(other.keys) {
		return false
	}
	for i, k := range d.keys {
		if other.keys[i] != k || other.values[k] != d.values[k] {
			return false
		}
	}
	return true
}

// Encode serializes the dictionary as query-escaped key=value pairs joined
// by '&'. Escaping keeps the separators out of the payload, so any key or
// value round-trips.
func (d *Dictionary) Encode() string {
	if len(d.keys) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(d.keys))
	for _, k := range d.keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(d.values[k]))
	}
	return strings.Join(pairs, "&")
}

// DecodeDictionary parses the Encode format back into an ordered dictionary.
func DecodeDictionary(encoded string) (*Dictionary, error) {
	d := NewDictionary()
	if encoded == "" {
		return d, nil
	}
	for _, pair := range strings.Split(encoded, "&") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("malformed dictionary pair %q", pair)
		}
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("failed to unescape dictionary key %q: %w", key, err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("failed to unescape dictionary value %q: %w", value, err)
		}
		d.Set(k, v)
	}
	return d, nil
}
