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
	"strings"
)

// Well-known resource attribute keys.
const (
	ResAttrProtocolInfo = "protocolInfo"
	ResAttrSize         = "size"
	ResAttrDuration     = "duration"
	ResAttrBitrate      = "bitrate"
	ResAttrResolution   = "resolution"
)

const (
	resourceFieldSep = "|"
	resourceSep      = "\n"
)

// Resource is one renderable representation of an item: the canonical media
// file, a transcode target, album art. Attributes end up as res@ attributes
// in DIDL-Lite; parameters and options are internal to URL generation.
type Resource struct {
	Attributes *Dictionary
	Parameters *Dictionary
	Options    *Dictionary
}

// NewResource returns an empty resource.
func NewResource() *Resource {
	return &Resource{
		Attributes: NewDictionary(),
		Parameters: NewDictionary(),
		Options:    NewDictionary(),
	}
}

// Clone returns a deep copy.
func (r *Resource) Clone() *Resource {
	return &Resource{
		Attributes: r.Attributes.Clone(),
		Parameters: r.Parameters.Clone(),
		Options:    r.Options.Clone(),
	}
}

// Equals compares all three dictionaries.
func (r *Resource) Equals(other *Resource) bool {
	if other == nil {
		return false
	}
	return r.Attributes.Equals(other.Attributes) &&
		r.Parameters.Equals(other.Parameters) &&
		r.Options.Equals(other.Options)
}

// Encode serializes the resource's three dictionaries joined by '|'. The
// dictionary encoding query-escapes its contents, so the separator cannot
// collide with payload bytes.
func (r *Resource) Encode() string {
	return r.Attributes.Encode() + resourceFieldSep +
		r.Parameters.Encode() + resourceFieldSep +
		r.Options.Encode()
}

// DecodeResource parses one Encode result.
func DecodeResource(encoded string) (*Resource, error) {
	parts := strings.Split(encoded, resourceFieldSep)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed resource encoding %q: expected 3 fields, got %d", encoded, len(parts))
	}
	attrs, err := DecodeDictionary(parts[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode resource attributes: %w", err)
	}
	params, err := DecodeDictionary(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode resource parameters: %w", err)
	}
	opts, err := DecodeDictionary(parts[2])
	if err != nil {
		return nil, fmt.Errorf("failed to decode resource options: %w", err)
	}
	return &Resource{Attributes: attrs, Parameters: params, Options: opts}, nil
}

// EncodeResources serializes an ordered resource list, one resource per line.
func EncodeResources(resources []*Resource) string {
	if len(resources) == 0 {
		return ""
	}
	encoded := make([]string, 0, len(resources))
	for _, r := range resources {
		encoded = append(encoded, r.Encode())
	}
	return strings.Join(encoded, resourceSep)
}

// DecodeResources parses an EncodeResources result, preserving order.
func DecodeResources(encoded string) ([]*Resource, error) {
	if encoded == "" {
		return nil, nil
	}
	lines := strings.Split(encoded, resourceSep)
	resources := make([]*Resource, 0, len(lines))
	for i, line := range lines {
		r, err := DecodeResource(line)
		if err != nil {
			return nil, fmt.Errorf("failed to decode resource %d: %w", i, err)
		}
		resources = append(resources, r)
	}
	return resources, nil
}
