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

	"github.com/mediagrove/mediagrove/pkg/database"
	"github.com/mediagrove/mediagrove/pkg/database/cds"
)

// FindObjectByPath resolves a filesystem path to its canonical object: the
// row that owns the location rather than one of its virtual aliases.
func (s *Store) FindObjectByPath(ctx context.Context, path string) (*cds.Object, error) {
	if s.sql == nil {
		return nil, database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findObjectByPath(ctx, path)
}

func (s *Store) findObjectByPath(ctx context.Context, path string) (*cds.Object, error) {
	path = normalizePath(path)
	if path == "/" {
		return s.loadObject(ctx, cds.IDFsRoot)
	}

	// a path names either a file item or a physical directory container;
	// URL and virtual locations are never canonical
	for _, prefix := range []byte{locPrefixFile, locPrefixDir} {
		stored := addLocationPrefix(prefix, path)

		if s.cache != nil {
			guard := s.cache.Lock()
			for _, co := range guard.GetByLocation(stored) {
				if co.KnowsObject() && co.Object().RefID <= 0 {
					obj := co.Object()
					guard.Unlock()
					return obj, nil
				}
			}
			guard.Unlock()
		}

		if err := s.flushInsertBuffer(ctx); err != nil {
			return nil, err
		}
		query := "SELECT " + objectSelectColumns + " " + objectSelectFrom +
			" WHERE o.LocationHash = ? AND o.Location = ? AND o.RefID IS NULL LIMIT 1"
		obj, storedLoc, err := scanObjectRow(
			s.sql.QueryRowContext(ctx, query, int64(locationHash(stored)), stored))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up path %q: %w", path, err)
		}
		if err := s.addObjectToCache(ctx, obj, storedLoc); err != nil {
			return nil, err
		}
		return obj, nil
	}
	return nil, fmt.Errorf("%w: path %q", database.ErrObjectNotFound, path)
}

// IsFolderInDatabase reports whether the path exists as a physical
// directory container.
func (s *Store) IsFolderInDatabase(ctx context.Context, path string) (bool, error) {
	if s.sql == nil {
		return false, database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, err := s.findObjectByPath(ctx, path)
	if errors.Is(err, database.ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return obj.IsContainer(), nil
}

// IsFileInDatabase reports whether the path exists as an imported file item.
func (s *Store) IsFileInDatabase(ctx context.Context, path string) (bool, error) {
	if s.sql == nil {
		return false, database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, err := s.findObjectByPath(ctx, path)
	if errors.Is(err, database.ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return obj.IsItem(), nil
}

// Browse answers one UPnP ContentDirectory browse request. In metadata mode
// the requested object itself is returned; in direct-children mode one page
// of the container's children, ordered containers-first by title. Browsing
// children of a non-container yields an empty page, as the protocol expects.
func (s *Store) Browse(ctx context.Context, params database.BrowseParams) (*database.BrowseResult, error) {
	if s.sql == nil {
		return nil, database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushInsertBuffer(ctx); err != nil {
		return nil, err
	}

	obj, err := s.loadObject(ctx, params.ObjectID)
	if err != nil {
		return nil, err
	}

	result := &database.BrowseResult{}
	if obj.IsContainer() {
		result.UpdateID = obj.UpdateID
	} else if parent, perr := s.loadObject(ctx, obj.ParentID); perr == nil {
		result.UpdateID = parent.UpdateID
	}

	if params.Flag == database.BrowseMetadata {
		if obj.IsContainer() {
			if err := s.fillChildCount(ctx, obj); err != nil {
				return nil, err
			}
		}
		result.Objects = []*cds.Object{obj}
		result.TotalMatches = 1
		return result, nil
	}

	if !obj.IsContainer() {
		return result, nil
	}

	where := "o.ParentID = ?"
	args := []any{obj.ID}
	if obj.ID == cds.IDRoot && params.HideFsRoot {
		where += " AND o.ID != ?"
		args = append(args, cds.IDFsRoot)
	}
	if params.ContainersOnly {
		where += " AND (o.ObjectType & ?) != 0"
		args = append(args, int64(cds.TypeContainer))
	}

	//nolint:gosec // fixed fragments only, values are bound
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM Objects o WHERE %s", where)
	if err := s.sql.QueryRowContext(ctx, countSQL, args...).Scan(&result.TotalMatches); err != nil {
		return nil, fmt.Errorf("failed to count children of %d: %w", obj.ID, err)
	}

	order := "(o.ObjectType & 1) DESC, o.Title"
	if params.TrackSort {
		order = "o.TrackNumber, o.Title"
	}
	limit := int64(-1)
	if params.RequestedCount > 0 {
		limit = int64(params.RequestedCount)
	}
	pageArgs := append(append([]any{}, args...), limit, int64(params.StartingIndex))
	//nolint:gosec // fixed fragments only, values are bound
	pageSQL := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY %s LIMIT ? OFFSET ?",
		objectSelectColumns, objectSelectFrom, where, order)

	objects, err := s.queryObjects(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, err
	}
	for _, child := range objects {
		if child.IsContainer() {
			if err := s.fillChildCount(ctx, child); err != nil {
				return nil, err
			}
		}
	}
	result.Objects = objects
	return result, nil
}

// Search returns one page of objects under the given container whose title
// or class matches the filters, walking the full subtree.
func (s *Store) Search(ctx context.Context, params database.SearchParams) (*database.BrowseResult, error) {
	if s.sql == nil {
		return nil, database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushInsertBuffer(ctx); err != nil {
		return nil, err
	}

	container, err := s.loadObject(ctx, params.ContainerID)
	if err != nil {
		return nil, err
	}

	const subtreeCTE = `WITH RECURSIVE subtree(ID) AS (
		SELECT ?
		UNION ALL
		SELECT c.ID FROM Objects c JOIN subtree s ON c.ParentID = s.ID
	)`
	where := "o.ID IN (SELECT ID FROM subtree) AND o.ID != ?"
	args := []any{params.ContainerID, params.ContainerID}
	if params.Title != "" {
		where += " AND COALESCE(o.Title, r.Title) LIKE ?"
		args = append(args, "%"+params.Title+"%")
	}
	if params.Class != "" {
		where += " AND COALESCE(o.UpnpClass, r.UpnpClass) LIKE ?"
		args = append(args, params.Class+"%")
	}

	result := &database.BrowseResult{UpdateID: container.UpdateID}

	//nolint:gosec // fixed fragments only, values are bound
	countSQL := fmt.Sprintf("%s SELECT COUNT(*) %s WHERE %s", subtreeCTE, objectSelectFrom, where)
	if err := s.sql.QueryRowContext(ctx, countSQL, args...).Scan(&result.TotalMatches); err != nil {
		return nil, fmt.Errorf("failed to count search matches: %w", err)
	}

	limit := int64(-1)
	if params.RequestedCount > 0 {
		limit = int64(params.RequestedCount)
	}
	pageArgs := append(append([]any{}, args...), limit, int64(params.StartingIndex))
	//nolint:gosec // fixed fragments only, values are bound
	pageSQL := fmt.Sprintf(
		"%s SELECT %s %s WHERE %s ORDER BY COALESCE(o.Title, r.Title) LIMIT ? OFFSET ?",
		subtreeCTE, objectSelectColumns, objectSelectFrom, where)

	objects, err := s.queryObjects(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, err
	}
	result.Objects = objects
	return result, nil
}

// queryObjects runs a multi-row objectSelectColumns query and materializes
// every row, including active-item side fields and cache registration.
func (s *Store) queryObjects(ctx context.Context, query string, args ...any) ([]*cds.Object, error) {
	rows, err := s.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var objects []*cds.Object
	storedLocs := make(map[int64]string)
	for rows.Next() {
		obj, storedLoc, err := scanObjectRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan object row: %w", err)
		}
		objects = append(objects, obj)
		storedLocs[obj.ID] = storedLoc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate object rows: %w", err)
	}

	// side-table reads and cache writes happen after the cursor is drained
	for _, obj := range objects {
		if obj.IsActiveItem() {
			if err := s.loadActiveItemFields(ctx, obj); err != nil {
				return nil, err
			}
		}
		if err := s.addObjectToCache(ctx, obj, storedLocs[obj.ID]); err != nil {
			return nil, err
		}
	}
	return objects, nil
}

// fillChildCount sets the container's live child count, serving repeat
// lookups from the cache.
func (s *Store) fillChildCount(ctx context.Context, obj *cds.Object) error {
	if s.cache != nil {
		guard := s.cache.Lock()
		if co := guard.GetObject(obj.ID); co != nil && co.KnowsNumChildren() {
			obj.ChildCount = co.NumChildren()
			guard.Unlock()
			return nil
		}
		guard.Unlock()
	}

	var count int32
	err := s.sql.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM Objects WHERE ParentID = ?", obj.ID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count children of %d: %w", obj.ID, err)
	}
	obj.ChildCount = count

	if s.cache != nil {
		guard := s.cache.Lock()
		guard.GetObjectDefinitely(obj.ID).SetNumChildren(count)
		guard.EnsureFillLevelOK()
		guard.Unlock()
	}
	if s.cache != nil && s.cache.Flushed() {
		return s.flushInsertBuffer(ctx)
	}
	return nil
}
