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
	"github.com/mediagrove/mediagrove/pkg/database/cds"
	"github.com/mediagrove/mediagrove/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// CacheObject mirrors one Objects row's frequently-needed fields. Every
// field has a paired "knows" flag because entries are populated
// incrementally: a child-count query may register only numChildren, a full
// load registers everything.
type CacheObject struct {
	obj            *cds.Object
	location       string
	parentID       int64
	refID          int64
	objectType     cds.ObjectType
	numChildren    int32
	virtual        bool
	hasParentID    bool
	hasRefID       bool
	hasObject      bool
	hasNumChildren bool
	hasObjectType  bool
	hasLocation    bool
	hasVirtual     bool
}

func (co *CacheObject) SetParentID(id int64)            { co.parentID, co.hasParentID = id, true }
func (co *CacheObject) SetRefID(id int64)               { co.refID, co.hasRefID = id, true }
func (co *CacheObject) SetObjectType(t cds.ObjectType)  { co.objectType, co.hasObjectType = t, true }
func (co *CacheObject) SetNumChildren(n int32)          { co.numChildren, co.hasNumChildren = n, true }
func (co *CacheObject) SetVirtual(v bool)               { co.virtual, co.hasVirtual = v, true }
func (co *CacheObject) SetLocation(prefixedLoc string)  { co.location, co.hasLocation = prefixedLoc, true }

// SetObject registers the fully loaded object and derives every lightweight
// field from it.
func (co *CacheObject) SetObject(obj *cds.Object) {
	co.obj, co.hasObject = obj, true
	co.SetParentID(obj.ParentID)
	co.SetRefID(obj.RefID)
	co.SetObjectType(obj.Type)
	co.SetVirtual(obj.Virtual)
}

func (co *CacheObject) KnowsParentID() bool    { return co.hasParentID }
func (co *CacheObject) KnowsRefID() bool       { return co.hasRefID }
func (co *CacheObject) KnowsObject() bool      { return co.hasObject }
func (co *CacheObject) KnowsNumChildren() bool { return co.hasNumChildren }
func (co *CacheObject) KnowsObjectType() bool  { return co.hasObjectType }
func (co *CacheObject) KnowsLocation() bool    { return co.hasLocation }
func (co *CacheObject) KnowsVirtual() bool     { return co.hasVirtual }

func (co *CacheObject) ParentID() int64           { return co.parentID }
func (co *CacheObject) RefID() int64              { return co.refID }
func (co *CacheObject) Object() *cds.Object       { return co.obj }
func (co *CacheObject) NumChildren() int32        { return co.numChildren }
func (co *CacheObject) ObjectType() cds.ObjectType { return co.objectType }
func (co *CacheObject) Location() string          { return co.location }
func (co *CacheObject) Virtual() bool             { return co.virtual }

// Cache is the process-wide memo of recently touched objects: an id index
// plus a secondary index from prefixed-location string to the cache objects
// at that location. It is bounded: when either index exceeds maxFill the
// whole cache is dropped and the flushed flag is raised so insert-buffering
// callers know to flush pending writes.
//
// All access goes through a CacheGuard obtained from Lock; the guard is the
// proof that the cache mutex is held for the whole read-modify sequence.
type Cache struct {
	idMap      map[int64]*CacheObject
	locMap     map[string][]*CacheObject
	mu         syncutil.Mutex
	capacity   int
	maxFill    int
	hasFlushed bool
}

// Default sizing, overridable through config.
const (
	DefaultCacheCapacity = 4096
	DefaultCacheMaxFill  = 3072
)

// NewCache returns an empty cache. capacity sizes the maps; maxFill is the
// entry count that triggers the evict-all policy.
func NewCache(capacity, maxFill int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if maxFill <= 0 || maxFill > capacity {
		maxFill = capacity * 3 / 4
	}
	return &Cache{
		capacity: capacity,
		maxFill:  maxFill,
		idMap:    make(map[int64]*CacheObject, capacity),
		locMap:   make(map[string][]*CacheObject, capacity),
	}
}

// Lock acquires the cache mutex and returns the guard exposing the cache
// operations. The caller must Unlock the guard when the whole read-modify
// sequence is done.
func (c *Cache) Lock() *CacheGuard {
	c.mu.Lock()
	return &CacheGuard{c: c}
}

// Flushed reports whether the cache had to evict everything since the last
// call. Reading it consumes the flag.
func (c *Cache) Flushed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.hasFlushed
	c.hasFlushed = false
	return f
}

// CacheGuard is the token proving the cache lock is held. Only it exposes
// the get-or-create operations, turning the caller-holds-the-lock convention
// into a type-level requirement.
type CacheGuard struct {
	c *Cache
}

// Unlock releases the cache mutex. The guard must not be used afterwards.
func (g *CacheGuard) Unlock() {
	g.c.mu.Unlock()
}

// GetObject returns the cache entry for id, or nil on a miss.
func (g *CacheGuard) GetObject(id int64) *CacheObject {
	return g.c.idMap[id]
}

// GetObjectDefinitely never misses: absent entries are created and
// registered empty, on the assumption that the caller is about to populate
// at least one field.
func (g *CacheGuard) GetObjectDefinitely(id int64) *CacheObject {
	co, ok := g.c.idMap[id]
	if !ok {
		co = &CacheObject{}
		g.c.idMap[id] = co
	}
	return co
}

// CheckLocation idempotently registers co under its already-known location
// key. The existing bucket is scanned to avoid duplicate entries; real-world
// fan-out per location is a handful of aliases at most.
func (g *CacheGuard) CheckLocation(co *CacheObject) {
	if !co.hasLocation {
		return
	}
	bucket := g.c.locMap[co.location]
	for _, existing := range bucket {
		if existing == co {
			return
		}
	}
	g.c.locMap[co.location] = append(bucket, co)
}

// GetByLocation returns the cache objects registered at a prefixed location.
func (g *CacheGuard) GetByLocation(prefixedLoc string) []*CacheObject {
	return g.c.locMap[prefixedLoc]
}

// AddChild bumps the parent's known child count, if it is known.
func (g *CacheGuard) AddChild(parentID int64) {
	if co, ok := g.c.idMap[parentID]; ok && co.hasNumChildren {
		co.numChildren++
	}
}

// Remove drops an entry from both indexes.
func (g *CacheGuard) Remove(id int64) {
	co, ok := g.c.idMap[id]
	if !ok {
		return
	}
	delete(g.c.idMap, id)
	if !co.hasLocation {
		return
	}
	bucket := g.c.locMap[co.location]
	for i, existing := range bucket {
		if existing == co {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(g.c.locMap, co.location)
	} else {
		g.c.locMap[co.location] = bucket
	}
}

// Clear drops everything without raising the flushed flag; used after
// recursive removal, where the caller already knows the world changed.
func (g *CacheGuard) Clear() {
	g.c.idMap = make(map[int64]*CacheObject, g.c.capacity)
	g.c.locMap = make(map[string][]*CacheObject, g.c.capacity)
}

// EnsureFillLevelOK enforces the bound: if either index exceeds maxFill the
// whole cache is dropped (not LRU) and the flushed flag is raised.
func (g *CacheGuard) EnsureFillLevelOK() {
	if len(g.c.idMap) <= g.c.maxFill && len(g.c.locMap) <= g.c.maxFill {
		return
	}
	log.Debug().
		Int("id_entries", len(g.c.idMap)).
		Int("location_entries", len(g.c.locMap)).
		Int("max_fill", g.c.maxFill).
		Msg("object cache overflow, dropping all entries")
	g.Clear()
	g.c.hasFlushed = true
}
