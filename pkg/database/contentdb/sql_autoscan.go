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
	"time"

	"github.com/mediagrove/mediagrove/pkg/database"
	"github.com/mediagrove/mediagrove/pkg/database/cds"
)

const autoscanColumns = `DBID, ObjID, ScanLevel, ScanMode, Recursive, Hidden,
	IntervalSec, LastModified, Persistent, Location, PathIDs, Touched`

func scanAutoscanRow(scanner rowScanner) (*database.AutoscanDir, error) {
	var (
		dir          database.AutoscanDir
		objID        sql.NullInt64
		intervalSec  int64
		lastModified int64
		pathIDs      stringOrNull
		location     stringOrNull
	)
	err := scanner.Scan(
		&dir.DBID, &objID, &dir.ScanLevel, &dir.ScanMode, &dir.Recursive,
		&dir.Hidden, &intervalSec, &lastModified, &dir.Persistent,
		&location, &pathIDs, &dir.Touched,
	)
	if err != nil {
		return nil, err
	}
	dir.ObjectID = cds.InvalidObjectID
	if objID.Valid {
		dir.ObjectID = objID.Int64
	}
	dir.Interval = time.Duration(intervalSec) * time.Second
	if lastModified > 0 {
		dir.LastModified = time.Unix(lastModified, 0)
	}
	dir.Location = location.string
	dir.PathIDs = decodePathIDs(pathIDs.string)
	return &dir, nil
}

// GetAutoscanDirectory returns the watch attached to the given container.
func (s *Store) GetAutoscanDirectory(ctx context.Context, objectID int64) (*database.AutoscanDir, error) {
	if s.sql == nil {
		return nil, database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := scanAutoscanRow(s.sql.QueryRowContext(ctx,
		"SELECT "+autoscanColumns+" FROM Autoscan WHERE ObjID = ?", objectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no autoscan on object %d", database.ErrObjectNotFound, objectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load autoscan for object %d: %w", objectID, err)
	}
	return dir, nil
}

// GetAutoscanList returns every watch for one scan mode, detached
// location-only entries included.
func (s *Store) GetAutoscanList(ctx context.Context, scanMode string) ([]database.AutoscanDir, error) {
	if s.sql == nil {
		return nil, database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.sql.QueryContext(ctx,
		"SELECT "+autoscanColumns+" FROM Autoscan WHERE ScanMode = ? ORDER BY DBID", scanMode)
	if err != nil {
		return nil, fmt.Errorf("failed to list autoscans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dirs []database.AutoscanDir
	for rows.Next() {
		dir, err := scanAutoscanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan autoscan row: %w", err)
		}
		dirs = append(dirs, *dir)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate autoscan rows: %w", err)
	}
	return dirs, nil
}

// SetAutoscanDirectory inserts or updates a watch. A watch carries the id
// chain from its container up to the root so overlap checks and rescue
// lookups never have to walk the tree again. Overlapping recursive watches
// are rejected before anything is written.
func (s *Store) SetAutoscanDirectory(ctx context.Context, dir *database.AutoscanDir) error {
	if s.sql == nil {
		return database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAutoscanDirectory(ctx, dir)
}

func (s *Store) setAutoscanDirectory(ctx context.Context, dir *database.AutoscanDir) error {
	if err := s.flushInsertBuffer(ctx); err != nil {
		return err
	}

	var objVal any
	if dir.ObjectID != cds.InvalidObjectID {
		obj, err := s.loadObject(ctx, dir.ObjectID)
		if err != nil {
			return err
		}
		if !obj.IsContainer() {
			return fmt.Errorf("%w: autoscan target %d is not a container", database.ErrInvalidObjectID, dir.ObjectID)
		}
		if dir.Location == "" {
			dir.Location = obj.Location
		}
		pathIDs, err := s.getPathIDs(ctx, dir.ObjectID)
		if err != nil {
			return err
		}
		dir.PathIDs = pathIDs
		if err := s.checkOverlappingAutoscans(ctx, dir); err != nil {
			return err
		}
		objVal = dir.ObjectID
	}

	if dir.LastModified.IsZero() {
		dir.LastModified = s.clock.Now()
	}

	if dir.DBID > 0 {
		_, err := s.sql.ExecContext(ctx,
			`UPDATE Autoscan SET ObjID = ?, ScanLevel = ?, ScanMode = ?, Recursive = ?,
				Hidden = ?, IntervalSec = ?, LastModified = ?, Persistent = ?,
				Location = ?, PathIDs = ?, Touched = 1
			 WHERE DBID = ?`,
			objVal, dir.ScanLevel, dir.ScanMode, dir.Recursive, dir.Hidden,
			int64(dir.Interval/time.Second), dir.LastModified.Unix(), dir.Persistent,
			dir.Location, encodePathIDs(dir.PathIDs), dir.DBID)
		if err != nil {
			return fmt.Errorf("failed to update autoscan %d: %w", dir.DBID, err)
		}
		return nil
	}

	res, err := s.sql.ExecContext(ctx,
		`INSERT INTO Autoscan
			(ObjID, ScanLevel, ScanMode, Recursive, Hidden, IntervalSec,
			 LastModified, Persistent, Location, PathIDs, Touched)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		objVal, dir.ScanLevel, dir.ScanMode, dir.Recursive, dir.Hidden,
		int64(dir.Interval/time.Second), dir.LastModified.Unix(), dir.Persistent,
		dir.Location, encodePathIDs(dir.PathIDs))
	if err != nil {
		return fmt.Errorf("failed to insert autoscan: %w", err)
	}
	dbID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new autoscan id: %w", err)
	}
	dir.DBID = dbID
	return nil
}

// RemoveAutoscanDirectory drops the watch attached to the given container.
func (s *Store) RemoveAutoscanDirectory(ctx context.Context, objectID int64) error {
	if s.sql == nil {
		return database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.sql.ExecContext(ctx, "DELETE FROM Autoscan WHERE ObjID = ?", objectID); err != nil {
		return fmt.Errorf("failed to remove autoscan for object %d: %w", objectID, err)
	}
	return nil
}

// UpdateAutoscanPersistentList reconciles the config-file watches for one
// scan mode against the stored rows: existing rows are updated in place,
// new ones inserted, and rows the config no longer mentions are dropped.
// Watches added at runtime (non-persistent) are left alone.
func (s *Store) UpdateAutoscanPersistentList(ctx context.Context, scanMode string, dirs []database.AutoscanDir) error {
	if s.sql == nil {
		return database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushInsertBuffer(ctx); err != nil {
		return err
	}

	_, err := s.sql.ExecContext(ctx,
		"UPDATE Autoscan SET Touched = 0 WHERE ScanMode = ? AND Persistent = 1", scanMode)
	if err != nil {
		return fmt.Errorf("failed to untouch persistent autoscans: %w", err)
	}

	for i := range dirs {
		dir := &dirs[i]
		dir.ScanMode = scanMode
		dir.Persistent = true

		// config-built entries arrive with a zero ObjectID, which is the CDS
		// root, not a real attachment; treat anything non-positive except the
		// roots as unattached and reattach through the location
		if dir.ObjectID <= cds.IDFsRoot {
			dir.ObjectID = cds.InvalidObjectID
			if obj, ferr := s.findObjectByPath(ctx, dir.Location); ferr == nil && obj.IsContainer() {
				dir.ObjectID = obj.ID
			}
		}

		// match an existing persistent row by attached object first, by
		// location string for entries whose container is not imported yet
		var dbID int64
		err := sql.ErrNoRows
		if dir.ObjectID != cds.InvalidObjectID {
			err = s.sql.QueryRowContext(ctx,
				"SELECT DBID FROM Autoscan WHERE ScanMode = ? AND ObjID = ? AND Persistent = 1",
				scanMode, dir.ObjectID).Scan(&dbID)
		}
		if errors.Is(err, sql.ErrNoRows) {
			err = s.sql.QueryRowContext(ctx,
				"SELECT DBID FROM Autoscan WHERE ScanMode = ? AND Location = ? AND Persistent = 1",
				scanMode, dir.Location).Scan(&dbID)
		}
		switch {
		case errors.Is(err, sql.ErrNoRows):
			dir.DBID = 0
		case err != nil:
			return fmt.Errorf("failed to match autoscan row: %w", err)
		default:
			dir.DBID = dbID
		}

		if err := s.setAutoscanDirectory(ctx, dir); err != nil {
			return err
		}
	}

	_, err = s.sql.ExecContext(ctx,
		"DELETE FROM Autoscan WHERE ScanMode = ? AND Persistent = 1 AND Touched = 0", scanMode)
	if err != nil {
		return fmt.Errorf("failed to sweep stale persistent autoscans: %w", err)
	}
	return nil
}

// getPathIDs collects the id chain from the object's parent up to the root.
func (s *Store) getPathIDs(ctx context.Context, objectID int64) ([]int64, error) {
	var pathIDs []int64
	id := objectID
	for i := 0; i < maxRemoveRounds; i++ {
		obj, err := s.loadObject(ctx, id)
		if err != nil {
			return nil, err
		}
		if obj.ParentID == cds.InvalidObjectID || obj.ID == cds.IDRoot {
			return pathIDs, nil
		}
		pathIDs = append(pathIDs, obj.ParentID)
		id = obj.ParentID
	}
	return nil, fmt.Errorf("%w: parent chain of object %d does not terminate", database.ErrRecursionLimit, objectID)
}

// checkOverlappingAutoscans rejects configurations where two watches would
// observe the same subtree: a second watch on the same container, a
// recursive watch above an existing one, or any watch underneath a new
// recursive watch.
func (s *Store) checkOverlappingAutoscans(ctx context.Context, dir *database.AutoscanDir) error {
	var existing sql.NullInt64

	err := s.sql.QueryRowContext(ctx,
		"SELECT DBID FROM Autoscan WHERE ObjID = ? AND DBID != ?",
		dir.ObjectID, dir.DBID).Scan(&existing)
	if err == nil {
		return fmt.Errorf("%w: object %d already has an autoscan", database.ErrAutoscanOverlap, dir.ObjectID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check autoscan overlap: %w", err)
	}

	if dir.Recursive {
		// nothing may live underneath a recursive watch
		pattern := "%," + strconv.FormatInt(dir.ObjectID, 10) + ",%"
		err = s.sql.QueryRowContext(ctx,
			"SELECT DBID FROM Autoscan WHERE PathIDs LIKE ? AND DBID != ?",
			pattern, dir.DBID).Scan(&existing)
		if err == nil {
			return fmt.Errorf("%w: an autoscan exists below recursive watch on object %d",
				database.ErrAutoscanOverlap, dir.ObjectID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check autoscan overlap: %w", err)
		}
	}

	if len(dir.PathIDs) > 0 {
		// a recursive watch on any ancestor already covers this directory
		placeholders := prepareVariadic("?", ",", len(dir.PathIDs))
		args := append(int64sToAny(dir.PathIDs), dir.DBID)
		//nolint:gosec // placeholders only, ids bound as arguments
		query := fmt.Sprintf(
			"SELECT DBID FROM Autoscan WHERE Recursive = 1 AND ObjID IN (%s) AND DBID != ?",
			placeholders)
		err = s.sql.QueryRowContext(ctx, query, args...).Scan(&existing)
		if err == nil {
			return fmt.Errorf("%w: a recursive autoscan already covers object %d",
				database.ErrAutoscanOverlap, dir.ObjectID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check autoscan overlap: %w", err)
		}
	}
	return nil
}

// encodePathIDs renders an id chain as ",5,1,0," so a single LIKE with a
// ",id," needle finds every watch underneath a given container.
func encodePathIDs(pathIDs []int64) string {
	if len(pathIDs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte(',')
	for _, id := range pathIDs {
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte(',')
	}
	return b.String()
}

func decodePathIDs(encoded string) []int64 {
	trimmed := strings.Trim(encoded, ",")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
