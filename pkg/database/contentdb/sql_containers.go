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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mediagrove/mediagrove/pkg/database"
	"github.com/mediagrove/mediagrove/pkg/database/cds"
)

// EnsurePathExistence makes sure every directory component of the given
// filesystem path exists as a physical container, creating missing ones on
// demand. It returns the container for the path itself and, when anything
// was created, the deepest pre-existing ancestor that received a new child
// (cds.InvalidObjectID otherwise).
func (s *Store) EnsurePathExistence(ctx context.Context, path string) (int64, int64, error) {
	if s.sql == nil {
		return cds.InvalidObjectID, cds.InvalidObjectID, database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensurePathExistence(ctx, path)
}

func (s *Store) ensurePathExistence(ctx context.Context, path string) (containerID, changed int64, err error) {
	changed = cds.InvalidObjectID
	path = normalizePath(path)
	if path == "/" {
		return cds.IDFsRoot, changed, nil
	}

	obj, err := s.findObjectByPath(ctx, path)
	if err == nil {
		return obj.ID, changed, nil
	}
	if !errors.Is(err, database.ErrObjectNotFound) {
		return cds.InvalidObjectID, changed, err
	}

	dir, name := splitPath(path)
	parentID, subChanged, err := s.ensurePathExistence(ctx, dir)
	if err != nil {
		return cds.InvalidObjectID, cds.InvalidObjectID, err
	}
	changed = subChanged
	if changed == cds.InvalidObjectID {
		// first creation along the walk: this ancestor already existed and
		// is the one whose child list changes
		changed = parentID
	}

	id, err := s.createContainer(ctx, parentID, name, path, false, "", 0)
	if err != nil {
		return cds.InvalidObjectID, cds.InvalidObjectID, err
	}
	return id, changed, nil
}

// CreateContainer inserts a single container row under an existing parent.
// Most callers want EnsurePathExistence or AddContainerChain instead; this
// is the shared primitive underneath both.
func (s *Store) CreateContainer(ctx context.Context, parentID int64, name, path string, virtual bool, class string, refID int64) (int64, error) {
	if s.sql == nil {
		return cds.InvalidObjectID, database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createContainer(ctx, parentID, name, path, virtual, class, refID)
}

// createContainer writes the container row directly; container creation is
// never buffered because later inserts in the same import resolve parents
// through path lookups.
func (s *Store) createContainer(ctx context.Context, parentID int64, name, path string, virtual bool, class string, refID int64) (int64, error) {
	if class == "" {
		class = cds.ClassContainer
	}
	var refVal any
	if refID > 0 {
		if _, err := s.loadObject(ctx, refID); err != nil {
			return cds.InvalidObjectID, fmt.Errorf("%w: container reference %d: %v", database.ErrInvalidReference, refID, err)
		}
		refVal = refID
	}

	prefix := locPrefixDir
	if virtual {
		prefix = locPrefixVirtual
	}
	stored := addLocationPrefix(prefix, path)

	id := s.nextID()
	_, err := s.sql.ExecContext(ctx,
		`INSERT INTO Objects
			(ID, ParentID, RefID, ObjectType, UpnpClass, Title, Location, LocationHash, UpdateID, Flags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		id, parentID, refVal, int64(cds.TypeContainer), class, name,
		stored, int64(locationHash(stored)), int64(cds.FlagRestricted))
	if err != nil {
		return cds.InvalidObjectID, fmt.Errorf("failed to create container %q: %w", name, err)
	}

	if s.cache != nil {
		// cache the complete object, not just the location; path lookups
		// for children added under this container then resolve from the
		// cache instead of forcing a buffer flush per insert
		obj := cds.MustNewObject(cds.KindContainer)
		obj.ID = id
		obj.ParentID = parentID
		if refID > 0 {
			obj.RefID = refID
		}
		obj.Class = class
		obj.Title = name
		obj.Location = path
		obj.Virtual = virtual
		obj.Flags = uint32(cds.FlagRestricted)
		obj.Restricted = true

		guard := s.cache.Lock()
		guard.AddChild(parentID)
		co := guard.GetObjectDefinitely(id)
		co.SetObject(obj)
		co.SetParentID(parentID)
		co.SetObjectType(cds.TypeContainer)
		co.SetVirtual(virtual)
		co.SetNumChildren(0)
		co.SetLocation(stored)
		guard.CheckLocation(co)
		guard.EnsureFillLevelOK()
		guard.Unlock()
		if s.cache.Flushed() {
			if err := s.flushInsertBuffer(ctx); err != nil {
				return cds.InvalidObjectID, err
			}
		}
	}
	return id, nil
}

// AddContainerChain materializes a virtual container chain such as
// "/Audio/Artists/Some\/Band/Album". Segment separators inside titles are
// backslash-escaped. Only the leaf receives the given class and reference;
// intermediate containers are plain. It returns the leaf container and,
// when anything was created, the deepest pre-existing ancestor that received
// a new child.
//
// Lookups are memoized per import run, so the common "same chain for every
// track of an album" pattern costs one query.
func (s *Store) AddContainerChain(ctx context.Context, path, lastClass string, lastRefID int64) (int64, int64, error) {
	if s.sql == nil {
		return cds.InvalidObjectID, cds.InvalidObjectID, database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addContainerChain(ctx, path, lastClass, lastRefID)
}

func (s *Store) addContainerChain(ctx context.Context, path, lastClass string, lastRefID int64) (containerID, changed int64, err error) {
	changed = cds.InvalidObjectID
	path = normalizePath(path)
	if path == "/" {
		return cds.IDRoot, changed, nil
	}

	if id, ok := s.chainMemo[path]; ok {
		return id, changed, nil
	}

	stored := addLocationPrefix(locPrefixVirtual, path)
	id, found, err := s.findVirtualContainerID(ctx, stored)
	if err != nil {
		return cds.InvalidObjectID, changed, err
	}
	if found {
		s.chainMemo[path] = id
		return id, changed, nil
	}

	dir, escapedName := splitChainPath(path)
	parentID, subChanged, err := s.addContainerChain(ctx, dir, "", 0)
	if err != nil {
		return cds.InvalidObjectID, cds.InvalidObjectID, err
	}
	changed = subChanged
	if changed == cds.InvalidObjectID {
		changed = parentID
	}

	id, err = s.createContainer(ctx, parentID, unescapeName(escapedName), path, true, lastClass, lastRefID)
	if err != nil {
		return cds.InvalidObjectID, cds.InvalidObjectID, err
	}
	s.chainMemo[path] = id
	return id, changed, nil
}

// findVirtualContainerID looks a chain container up by its stored location.
// The hash narrows the index scan; the exact string comparison decides.
func (s *Store) findVirtualContainerID(ctx context.Context, stored string) (int64, bool, error) {
	if err := s.flushInsertBuffer(ctx); err != nil {
		return cds.InvalidObjectID, false, err
	}
	var id int64
	err := s.sql.QueryRowContext(ctx,
		"SELECT ID FROM Objects WHERE LocationHash = ? AND Location = ? AND ObjectType = ? LIMIT 1",
		int64(locationHash(stored)), stored, int64(cds.TypeContainer),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return cds.InvalidObjectID, false, nil
	}
	if err != nil {
		return cds.InvalidObjectID, false, fmt.Errorf("failed to look up container chain: %w", err)
	}
	return id, true, nil
}

// IncrementUpdateIDs bumps the UPnP update id of each given container and
// returns the "id,updateID,id,updateID,..." string the ContentDirectory
// eventing layer publishes. An empty id set produces an empty string and no
// writes at all.
func (s *Store) IncrementUpdateIDs(ctx context.Context, ids []int64) (string, error) {
	if s.sql == nil {
		return "", database.ErrNullSQL
	}
	if len(ids) == 0 {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushInsertBuffer(ctx); err != nil {
		return "", err
	}

	placeholders := prepareVariadic("?", ",", len(ids))
	args := int64sToAny(ids)
	//nolint:gosec // placeholders only, ids bound as arguments
	updateSQL := fmt.Sprintf("UPDATE Objects SET UpdateID = UpdateID + 1 WHERE ID IN (%s)", placeholders)
	if _, err := s.sql.ExecContext(ctx, updateSQL, args...); err != nil {
		return "", fmt.Errorf("failed to increment container update ids: %w", err)
	}

	//nolint:gosec // placeholders only, ids bound as arguments
	selectSQL := fmt.Sprintf("SELECT ID, UpdateID FROM Objects WHERE ID IN (%s)", placeholders)
	rows, err := s.sql.QueryContext(ctx, selectSQL, args...)
	if err != nil {
		return "", fmt.Errorf("failed to read incremented update ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var b strings.Builder
	for rows.Next() {
		var id, updateID int64
		if err := rows.Scan(&id, &updateID); err != nil {
			return "", fmt.Errorf("failed to scan update id row: %w", err)
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(updateID, 10))
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to iterate update id rows: %w", err)
	}

	// cached copies now carry stale update ids
	if s.cache != nil {
		guard := s.cache.Lock()
		for _, id := range ids {
			guard.Remove(id)
		}
		guard.Unlock()
	}
	return b.String(), nil
}
