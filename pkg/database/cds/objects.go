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

// Package cds models the Content Directory Service object tree: containers,
// items and their resource/metadata payloads, with the copy, equality and
// validation contracts the storage engine and the DIDL-Lite renderer rely on.
package cds

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// ObjectType is a bitmask type tag. Internal-URL items are a strict subtype
// of external-URL items, which are a strict subtype of items, so type checks
// are bitmask tests, never equality tests.
type ObjectType int

const (
	TypeContainer ObjectType = 1 << iota
	TypeItem
	TypeActiveItem
	TypeItemExternalURL
	TypeItemInternalURL
)

// The concrete object kinds accepted by NewObject.
const (
	KindContainer       = TypeContainer
	KindItem            = TypeItem
	KindActiveItem      = TypeItem | TypeActiveItem
	KindItemExternalURL = TypeItem | TypeItemExternalURL
	KindItemInternalURL = TypeItem | TypeItemExternalURL | TypeItemInternalURL
)

// InvalidObjectID marks an object that has not been persisted yet.
const InvalidObjectID int64 = -1

// Reserved object IDs. IDs at or below IDFsRoot are forbidden targets for
// generic mutation and deletion.
const (
	IDRoot   int64 = 0 // CDS root container
	IDFsRoot int64 = 1 // filesystem root container ("PC Directory")
)

// IsForbiddenID reports whether id belongs to the reserved root range.
func IsForbiddenID(id int64) bool {
	return id <= IDFsRoot
}

// Object flags.
const (
	FlagRestricted uint32 = 1 << iota
	FlagSearchable
	FlagUseResourceRef
	FlagPersistentContainer
	FlagPlaylistRef
	FlagProxyURL
	FlagOnlineService
	FlagOggTheora
)

// Common UPnP classes.
const (
	ClassContainer  = "object.container"
	ClassItem       = "object.item"
	ClassAudioItem  = "object.item.audioItem.musicTrack"
	ClassPlaylist   = "object.container.playlistContainer"
	ClassMusicAlbum = "object.container.album.musicAlbum"
)

// Well-known metadata keys (DIDL-Lite property names).
const (
	MetaTitle       = "dc:title"
	MetaDate        = "dc:date"
	MetaDescription = "dc:description"
	MetaArtist      = "upnp:artist"
	MetaAlbum       = "upnp:album"
	MetaGenre       = "upnp:genre"
)

// Object is one node of the content tree. The Type mask decides which field
// groups are meaningful; the per-kind helpers below guard access the same way
// the storage engine does.
type Object struct {
	Metadata  *Dictionary
	Auxdata   *Dictionary
	Title     string
	Class     string
	Location  string
	MimeType  string
	ServiceID string
	Action    string
	State     string
	Resources []*Resource
	ID        int64
	ParentID  int64
	RefID     int64
	Type      ObjectType
	Flags     uint32
	UpdateID  uint32
	// ChildCount is transient, computed on browse. -1 means unknown.
	ChildCount  int32
	TrackNumber int32
	Restricted  bool
	Virtual     bool
	Searchable  bool
}

// NewObject creates an object of one of the closed kinds. Unknown bit
// patterns are rejected.
func NewObject(kind ObjectType) (*Object, error) {
	switch kind {
	case KindContainer, KindItem, KindActiveItem, KindItemExternalURL, KindItemInternalURL:
	default:
		return nil, fmt.Errorf("unknown object type mask %#x", int(kind))
	}
	return &Object{
		ID:         InvalidObjectID,
		ParentID:   InvalidObjectID,
		Type:       kind,
		Metadata:   NewDictionary(),
		Auxdata:    NewDictionary(),
		ChildCount: -1,
	}, nil
}

// MustNewObject is NewObject for the fixed kind constants; it panics on an
// invalid mask and exists for test and seed-data construction.
func MustNewObject(kind ObjectType) *Object {
	obj, err := NewObject(kind)
	if err != nil {
		panic(err)
	}
	return obj
}

// IsContainer reports whether the object is a container.
func (o *Object) IsContainer() bool { return o.Type&TypeContainer != 0 }

// IsItem reports whether the object is any kind of item.
func (o *Object) IsItem() bool { return o.Type&TypeItem != 0 }

// IsPureItem reports whether the object is a plain filesystem-backed item:
// an item with none of the subtype bits set.
func (o *Object) IsPureItem() bool { return o.Type == TypeItem }

// IsActiveItem reports whether the object carries an action/state pair.
func (o *Object) IsActiveItem() bool { return o.Type&TypeActiveItem != 0 }

// IsExternalURL reports whether the object's location is a URL rather than a
// filesystem path. True for internal-URL items as well.
func (o *Object) IsExternalURL() bool { return o.Type&TypeItemExternalURL != 0 }

// IsInternalURL reports whether the object's location is relative to this
// server.
func (o *Object) IsInternalURL() bool { return o.Type&TypeItemInternalURL != 0 }

// IsVirtual reports whether the object is a synthesized tree node with no
// direct filesystem counterpart.
func (o *Object) IsVirtual() bool { return o.Virtual }

// HasFlag tests a single flag bit.
func (o *Object) HasFlag(flag uint32) bool { return o.Flags&flag != 0 }

// SetFlag sets a single flag bit.
func (o *Object) SetFlag(flag uint32) { o.Flags |= flag }

// ClearFlag clears a single flag bit.
func (o *Object) ClearFlag(flag uint32) { o.Flags &^= flag }

// HasResource reports whether a resource exists at index.
func (o *Object) HasResource(index int) bool {
	return index >= 0 && index < len(o.Resources)
}

// AddResource appends a resource; index 0 is the canonical media resource.
func (o *Object) AddResource(r *Resource) {
	o.Resources = append(o.Resources, r)
}

// CopyTo copies this object's fields onto target. Shared fields are always
// copied; each field group is additionally guarded by a type check of the
// TARGET, so copying a subset of common fields across mismatched-but-related
// kinds is a silent partial copy, not an error. Dictionaries and resources
// are cloned, never shared.
func (o *Object) CopyTo(target *Object) {
	target.ID = o.ID
	target.ParentID = o.ParentID
	target.RefID = o.RefID
	target.Title = o.Title
	target.Class = o.Class
	target.Location = o.Location
	target.Flags = o.Flags
	target.Restricted = o.Restricted
	target.Virtual = o.Virtual
	target.Metadata = o.Metadata.Clone()
	target.Auxdata = o.Auxdata.Clone()
	target.Resources = make([]*Resource, 0, len(o.Resources))
	for _, r := range o.Resources {
		target.Resources = append(target.Resources, r.Clone())
	}

	if o.IsContainer() && target.IsContainer() {
		target.UpdateID = o.UpdateID
		target.Searchable = o.Searchable
	}
	if o.IsItem() && target.IsItem() {
		target.MimeType = o.MimeType
		target.TrackNumber = o.TrackNumber
		target.ServiceID = o.ServiceID
	}
	if o.IsActiveItem() && target.IsActiveItem() {
		target.Action = o.Action
		target.State = o.State
	}
}

// Clone returns a new object of the same kind with all fields copied.
func (o *Object) Clone() *Object {
	c := MustNewObject(o.Type)
	o.CopyTo(c)
	return c
}

// Equals performs the structural comparison contract: two objects are equal
// when their kind, identity, restriction, title, class, resource list
// (pairwise) and metadata match. With exactly set, location, the virtual
// flag and auxdata are compared as well. Shared fields are checked first and
// mismatches short-circuit before any kind-specific comparison.
func (o *Object) Equals(other *Object, exactly bool) bool {
	if other == nil || o.Type != other.Type {
		return false
	}
	if o.ID != other.ID ||
		o.ParentID != other.ParentID ||
		o.Restricted != other.Restricted ||
		o.Title != other.Title ||
		o.Class != other.Class {
		return false
	}
	if len(o.Resources) != len(other.Resources) {
		return false
	}
	for i, r := range o.Resources {
		if !r.Equals(other.Resources[i]) {
			return false
		}
	}
	if !o.Metadata.Equals(other.Metadata) {
		return false
	}
	if exactly {
		if o.Location != other.Location ||
			o.Virtual != other.Virtual ||
			!o.Auxdata.Equals(other.Auxdata) {
			return false
		}
	}

	if o.IsItem() {
		if o.MimeType != other.MimeType ||
			o.TrackNumber != other.TrackNumber ||
			o.ServiceID != other.ServiceID {
			return false
		}
	}
	if o.IsActiveItem() {
		if o.Action != other.Action || o.State != other.State {
			return false
		}
	}
	return true
}

// Validate enforces the required-field contract before persistence. Shared
// checks run first; each kind then adds its own. Pure items must point at an
// existing filesystem path on fsys; URL items only need a non-empty location,
// and internal-URL items reject absolute http:// locations.
func (o *Object) Validate(fsys afero.Fs) error {
	if o.Title == "" {
		return fmt.Errorf("%s validation failed: empty title", o.kindName())
	}
	if o.Class == "" {
		return fmt.Errorf("%s validation failed: empty upnp class", o.kindName())
	}

	if !o.IsItem() {
		return nil
	}

	if o.Location == "" {
		return fmt.Errorf("%s validation failed: empty location", o.kindName())
	}

	switch {
	case o.IsInternalURL():
		if strings.HasPrefix(o.Location, "http://") || strings.HasPrefix(o.Location, "https://") {
			return fmt.Errorf("%s validation failed: location %q must be relative to this server", o.kindName(), o.Location)
		}
	case o.IsExternalURL():
		// non-empty is all that is required
	case o.IsVirtual():
		// location is inherited from the reference target; the engine
		// resolves and verifies it on add
	default:
		if fsys == nil {
			return errors.New("item validation failed: no filesystem to check location against")
		}
		ok, err := afero.Exists(fsys, o.Location)
		if err != nil {
			return fmt.Errorf("%s validation failed: cannot stat location %q: %w", o.kindName(), o.Location, err)
		}
		if !ok {
			return fmt.Errorf("%s validation failed: location %q does not exist", o.kindName(), o.Location)
		}
	}

	if o.IsActiveItem() && o.Action == "" {
		return errors.New("active item validation failed: empty action")
	}
	return nil
}

func (o *Object) kindName() string {
	switch {
	case o.IsContainer():
		return "container"
	case o.IsInternalURL():
		return "internal url item"
	case o.IsExternalURL():
		return "external url item"
	case o.IsActiveItem():
		return "active item"
	default:
		return "item"
	}
}
