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
	"path/filepath"
	"strings"

	"github.com/mediagrove/mediagrove/pkg/database"
	"github.com/mediagrove/mediagrove/pkg/database/cds"
	"github.com/rs/zerolog/log"
)

// objectColumnList is the full Objects column set in insert order.
var objectColumnList = []string{
	"ID", "ParentID", "RefID", "ObjectType", "UpnpClass", "Title",
	"Location", "LocationHash", "Metadata", "Auxdata", "Resources",
	"UpdateID", "MimeType", "Flags", "TrackNumber", "ServiceID",
}

// objectSelectColumns pairs each nullable column with its reference row's
// counterpart so deferred (NULL) values can be back-filled from the alias
// target in one query.
const objectSelectColumns = `o.ID, o.ParentID, o.RefID, o.ObjectType,
	o.UpnpClass, r.UpnpClass, o.Title, r.Title, o.Location, r.Location,
	o.Metadata, r.Metadata, o.Auxdata, r.Auxdata, o.Resources, r.Resources,
	o.UpdateID, o.MimeType, r.MimeType, o.Flags,
	o.TrackNumber, r.TrackNumber, o.ServiceID, r.ServiceID`

const objectSelectFrom = `FROM Objects o LEFT JOIN Objects r ON o.RefID = r.ID`

// objectRow is the output of prepareObjectRow: per-table column/value maps
// ready for INSERT or UPDATE, plus the container touched by on-demand path
// materialization.
type objectRow struct {
	vals       map[string]any
	activeVals map[string]any
	storedLoc  string
	changed    int64
}

// fallbackString prefers the object's own column and falls back to its
// reference row's. This is the read half of the NULL-deferral deduplication.
func fallbackString(own, ref sql.NullString) string {
	if own.Valid {
		return own.String
	}
	if ref.Valid {
		return ref.String
	}
	return ""
}

func fallbackInt64(own, ref sql.NullInt64) int64 {
	if own.Valid {
		return own.Int64
	}
	if ref.Valid {
		return ref.Int64
	}
	return 0
}

// nullUnlessDiffers is the write half: when the object has a resolved
// reference and its value matches the reference's, SQL NULL is stored and
// the value is served from the reference row at read time.
func nullUnlessDiffers(own string, ref string, hasRef bool) any {
	if own == "" {
		return nil
	}
	if hasRef && own == ref {
		return nil
	}
	return own
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanObjectRow materializes one objectSelectColumns row into a fully
// fallback-resolved object. It returns the stored (prefixed) location for
// cache registration.
func scanObjectRow(scanner rowScanner) (*cds.Object, string, error) {
	var (
		id, parentID                           int64
		refID                                  sql.NullInt64
		objectType, flags, updateID            int64
		class, refClass, title, refTitle       sql.NullString
		location, refLocation                  sql.NullString
		metadata, refMetadata                  sql.NullString
		auxdata, refAuxdata                    sql.NullString
		resources, refResources                sql.NullString
		mimeType, refMimeType                  sql.NullString
		trackNumber, refTrackNumber            sql.NullInt64
		serviceID, refServiceID                sql.NullString
	)

	err := scanner.Scan(
		&id, &parentID, &refID, &objectType,
		&class, &refClass, &title, &refTitle, &location, &refLocation,
		&metadata, &refMetadata, &auxdata, &refAuxdata, &resources, &refResources,
		&updateID, &mimeType, &refMimeType, &flags,
		&trackNumber, &refTrackNumber, &serviceID, &refServiceID,
	)
	if err != nil {
		return nil, "", err
	}

	obj, err := cds.NewObject(cds.ObjectType(objectType))
	if err != nil {
		return nil, "", fmt.Errorf("corrupt object row %d: %w", id, err)
	}
	obj.ID = id
	obj.ParentID = parentID
	if refID.Valid {
		obj.RefID = refID.Int64
	}
	obj.Flags = uint32(flags)
	obj.Restricted = obj.HasFlag(cds.FlagRestricted)
	obj.Searchable = obj.HasFlag(cds.FlagSearchable)
	obj.Class = fallbackString(class, refClass)
	obj.Title = fallbackString(title, refTitle)
	obj.UpdateID = uint32(updateID)
	obj.MimeType = fallbackString(mimeType, refMimeType)
	obj.TrackNumber = int32(fallbackInt64(trackNumber, refTrackNumber))
	obj.ServiceID = fallbackString(serviceID, refServiceID)

	storedLoc := fallbackString(location, refLocation)
	switch {
	case storedLoc == "":
		// roots and reference rows without a resolvable location
	case obj.IsExternalURL():
		// URL locations are stored raw, without a provenance prefix
		obj.Location = storedLoc
		obj.Virtual = true
	default:
		prefix, path, stripErr := stripLocationPrefix(storedLoc)
		if stripErr != nil {
			return nil, "", fmt.Errorf("corrupt object row %d: %w", id, stripErr)
		}
		obj.Location = path
		obj.Virtual = prefix == locPrefixVirtual
	}
	// an item serving its location from the reference row is an alias
	if obj.IsItem() && !location.Valid && obj.RefID > 0 {
		obj.Virtual = true
	}

	if metaEnc := fallbackString(metadata, refMetadata); metaEnc != "" {
		dict, decErr := cds.DecodeDictionary(metaEnc)
		if decErr != nil {
			return nil, "", fmt.Errorf("corrupt metadata in object row %d: %w", id, decErr)
		}
		obj.Metadata = dict
	}
	if auxEnc := fallbackString(auxdata, refAuxdata); auxEnc != "" {
		dict, decErr := cds.DecodeDictionary(auxEnc)
		if decErr != nil {
			return nil, "", fmt.Errorf("corrupt auxdata in object row %d: %w", id, decErr)
		}
		obj.Auxdata = dict
	}
	if resEnc := fallbackString(resources, refResources); resEnc != "" {
		res, decErr := cds.DecodeResources(resEnc)
		if decErr != nil {
			return nil, "", fmt.Errorf("corrupt resources in object row %d: %w", id, decErr)
		}
		obj.Resources = res
	}

	return obj, storedLoc, nil
}

// LoadObject returns the object with the given id, cache-first.
func (s *Store) LoadObject(ctx context.Context, id int64) (*cds.Object, error) {
	if s.sql == nil {
		return nil, database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadObject(ctx, id)
}

func (s *Store) loadObject(ctx context.Context, id int64) (*cds.Object, error) {
	if s.cache != nil {
		guard := s.cache.Lock()
		if co := guard.GetObject(id); co != nil && co.KnowsObject() {
			obj := co.Object()
			guard.Unlock()
			return obj, nil
		}
		guard.Unlock()
	}

	if err := s.flushInsertBuffer(ctx); err != nil {
		return nil, err
	}

	query := "SELECT " + objectSelectColumns + " " + objectSelectFrom + " WHERE o.ID = ?"
	obj, storedLoc, err := scanObjectRow(s.sql.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", database.ErrObjectNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load object %d: %w", id, err)
	}

	if obj.IsActiveItem() {
		if err := s.loadActiveItemFields(ctx, obj); err != nil {
			return nil, err
		}
	}

	if err := s.addObjectToCache(ctx, obj, storedLoc); err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *Store) loadActiveItemFields(ctx context.Context, obj *cds.Object) error {
	err := s.sql.QueryRowContext(ctx,
		"SELECT Action, State FROM ActiveItems WHERE ID = ?", obj.ID,
	).Scan(&obj.Action, &obj.State)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: active item %d has no action/state row", database.ErrObjectNotFound, obj.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to load active item fields for %d: %w", obj.ID, err)
	}
	return nil
}

// addObjectToCache registers a loaded or inserted object. Per the buffering
// contract, a cache eviction triggered by this insert forces a buffer flush.
func (s *Store) addObjectToCache(ctx context.Context, obj *cds.Object, storedLoc string) error {
	if s.cache == nil {
		return nil
	}
	guard := s.cache.Lock()
	co := guard.GetObjectDefinitely(obj.ID)
	co.SetObject(obj)
	if storedLoc != "" {
		co.SetLocation(storedLoc)
		guard.CheckLocation(co)
	}
	guard.EnsureFillLevelOK()
	guard.Unlock()

	if s.cache.Flushed() {
		if err := s.flushInsertBuffer(ctx); err != nil {
			return err
		}
	}
	return nil
}

// AddObject persists a new object. The object must not have an ID yet; its
// ID field is set on success. The returned container ID is the container
// touched by on-demand path materialization, or cds.InvalidObjectID.
//
// Adding a virtual reference object that duplicates an existing row (same
// parent, same reference target, same title) is a silent no-op so re-scans
// stay idempotent.
func (s *Store) AddObject(ctx context.Context, obj *cds.Object) (int64, error) {
	if s.sql == nil {
		return cds.InvalidObjectID, database.ErrNullSQL
	}
	if obj.ID != cds.InvalidObjectID {
		return cds.InvalidObjectID, fmt.Errorf("%w: add called for object with id %d already set", database.ErrInvalidObjectID, obj.ID)
	}
	if obj.ParentID == cds.InvalidObjectID {
		return cds.InvalidObjectID, fmt.Errorf("%w: add called without a parent id", database.ErrInvalidObjectID)
	}
	if obj.IsContainer() {
		return cds.InvalidObjectID, fmt.Errorf("%w: containers are created through EnsurePathExistence or AddContainerChain", database.ErrInvalidObjectID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, skip, err := s.prepareObjectRow(ctx, obj, false)
	if err != nil {
		return cds.InvalidObjectID, err
	}
	if skip {
		log.Debug().
			Int64("parent_id", obj.ParentID).
			Int64("ref_id", obj.RefID).
			Str("title", obj.Title).
			Msg("suppressed duplicate reference object")
		return row.changed, nil
	}

	obj.ID = s.nextID()
	row.vals["ID"] = obj.ID
	if row.activeVals != nil {
		row.activeVals["ID"] = obj.ID
	}

	if s.importing() {
		if err := s.bufferObjectRow(ctx, row); err != nil {
			return cds.InvalidObjectID, err
		}
	} else if err := s.execObjectInsert(ctx, row); err != nil {
		return cds.InvalidObjectID, err
	}

	if s.cache != nil {
		guard := s.cache.Lock()
		guard.AddChild(obj.ParentID)
		guard.Unlock()
	}
	// a reference row defers columns to its target, so the caller's copy is
	// not what a read resolves; the first load caches the resolved form
	if obj.RefID <= 0 {
		if err := s.addObjectToCache(ctx, obj, row.storedLoc); err != nil {
			return cds.InvalidObjectID, err
		}
	}
	return row.changed, nil
}

func (s *Store) bufferObjectRow(ctx context.Context, row *objectRow) error {
	ordered := make([]any, len(objectColumnList))
	for i, col := range objectColumnList {
		ordered[i] = row.vals[col]
	}
	needsFlush, err := s.buf.addObject(ordered)
	if err != nil {
		return err
	}
	if row.activeVals != nil {
		moreFlush, addErr := s.buf.addActiveItem([]any{
			row.activeVals["ID"], row.activeVals["Action"], row.activeVals["State"],
		})
		if addErr != nil {
			return addErr
		}
		needsFlush = needsFlush || moreFlush
	}
	if needsFlush {
		return s.flushInsertBuffer(ctx)
	}
	return nil
}

func (s *Store) execObjectInsert(ctx context.Context, row *objectRow) error {
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn().Err(rbErr).Msg("failed to roll back insert transaction")
		}
	}()

	cols := strings.Join(objectColumnList, ", ")
	placeholders := prepareVariadic("?", ",", len(objectColumnList))
	args := make([]any, len(objectColumnList))
	for i, col := range objectColumnList {
		args[i] = row.vals[col]
	}
	//nolint:gosec // column names and placeholders only, no user data interpolated
	insertSQL := fmt.Sprintf("INSERT INTO Objects (%s) VALUES (%s)", cols, placeholders)
	if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("failed to insert object row: %w", err)
	}

	if row.activeVals != nil {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO ActiveItems (ID, Action, State) VALUES (?, ?, ?)",
			row.activeVals["ID"], row.activeVals["Action"], row.activeVals["State"])
		if err != nil {
			return fmt.Errorf("failed to insert active item row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert transaction: %w", err)
	}
	return nil
}

// UpdateObject rewrites an existing object's rows and refreshes its cache
// entry. Pending buffered inserts are flushed first so the update sees its
// own import session's writes.
func (s *Store) UpdateObject(ctx context.Context, obj *cds.Object) (int64, error) {
	if s.sql == nil {
		return cds.InvalidObjectID, database.ErrNullSQL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushInsertBuffer(ctx); err != nil {
		return cds.InvalidObjectID, err
	}

	// the filesystem root has a fixed id and never goes through the
	// generic column mapping; only its presentation is editable
	if obj.ID == cds.IDFsRoot {
		_, err := s.sql.ExecContext(ctx,
			"UPDATE Objects SET Title = ?, UpnpClass = ? WHERE ID = ?",
			obj.Title, obj.Class, cds.IDFsRoot)
		if err != nil {
			return cds.InvalidObjectID, fmt.Errorf("failed to update filesystem root: %w", err)
		}
		s.evictFromCache(obj.ID)
		return cds.InvalidObjectID, nil
	}
	if cds.IsForbiddenID(obj.ID) {
		return cds.InvalidObjectID, fmt.Errorf("%w: update of object %d", database.ErrForbiddenObjectID, obj.ID)
	}
	if obj.ParentID == cds.InvalidObjectID {
		return cds.InvalidObjectID, fmt.Errorf("%w: update called without a parent id", database.ErrInvalidObjectID)
	}

	row, _, err := s.prepareObjectRow(ctx, obj, true)
	if err != nil {
		return cds.InvalidObjectID, err
	}

	setCols := make([]string, 0, len(objectColumnList)-1)
	args := make([]any, 0, len(objectColumnList))
	for _, col := range objectColumnList {
		if col == "ID" {
			continue
		}
		setCols = append(setCols, col+" = ?")
		args = append(args, row.vals[col])
	}
	args = append(args, obj.ID)
	//nolint:gosec // column names only, no user data interpolated
	updateSQL := fmt.Sprintf("UPDATE Objects SET %s WHERE ID = ?", strings.Join(setCols, ", "))
	if _, err := s.sql.ExecContext(ctx, updateSQL, args...); err != nil {
		return cds.InvalidObjectID, fmt.Errorf("failed to update object %d: %w", obj.ID, err)
	}

	if row.activeVals != nil {
		_, err := s.sql.ExecContext(ctx,
			"INSERT OR REPLACE INTO ActiveItems (ID, Action, State) VALUES (?, ?, ?)",
			obj.ID, row.activeVals["Action"], row.activeVals["State"])
		if err != nil {
			return cds.InvalidObjectID, fmt.Errorf("failed to update active item %d: %w", obj.ID, err)
		}
	}

	s.evictFromCache(obj.ID)
	// same rule as AddObject: reference rows re-enter the cache on the next
	// load, already resolved against their target
	if obj.RefID <= 0 {
		if err := s.addObjectToCache(ctx, obj, row.storedLoc); err != nil {
			return cds.InvalidObjectID, err
		}
	}
	return row.changed, nil
}

func (s *Store) evictFromCache(id int64) {
	if s.cache == nil {
		return
	}
	guard := s.cache.Lock()
	guard.Remove(id)
	guard.Unlock()
}

// prepareObjectRow is the central column-mapping step shared by add and
// update. It resolves the object's reference (when one applies), performs
// duplicate-reference suppression on add (signaled by skip), defers
// reference-identical columns to NULL, and materializes the parent directory
// container for pure items.
func (s *Store) prepareObjectRow(ctx context.Context, obj *cds.Object, isUpdate bool) (row *objectRow, skip bool, err error) {
	var refObj *cds.Object
	hasReference := false

	switch {
	case obj.HasFlag(cds.FlagPlaylistRef):
		// playlist entries keep their own columns but still record the
		// target in RefID so cascade deletion follows them
		if obj.RefID <= 0 {
			return nil, false, fmt.Errorf("%w: playlist-ref flag set without a reference id", database.ErrInvalidReference)
		}
		refObj, err = s.loadObject(ctx, obj.RefID)
		if err != nil {
			return nil, false, fmt.Errorf("%w: playlist reference %d: %v", database.ErrInvalidReference, obj.RefID, err)
		}
		refObj = nil // columns stored in full
	case obj.IsVirtual() && obj.IsPureItem():
		refObj, err = s.checkRefID(ctx, obj)
		if err != nil {
			return nil, false, err
		}
		obj.RefID = refObj.ID
		hasReference = true
	case obj.RefID > 0 && obj.HasFlag(cds.FlagOnlineService):
		refObj, err = s.loadObject(ctx, obj.RefID)
		if err != nil {
			return nil, false, fmt.Errorf("%w: online service reference %d: %v", database.ErrInvalidReference, obj.RefID, err)
		}
		hasReference = true
	case obj.RefID > 0 && obj.IsContainer():
		// playlist container: reference recorded, nothing to resolve
	case obj.RefID > 0:
		return nil, false, fmt.Errorf("%w: refID %d set on object type %d but makes no sense here", database.ErrInvalidReference, obj.RefID, obj.Type)
	}

	if !isUpdate && hasReference {
		dup, dupErr := s.referenceRowExists(ctx, obj.ParentID, obj.RefID, obj.Title)
		if dupErr != nil {
			return nil, false, dupErr
		}
		if dup {
			return &objectRow{changed: cds.InvalidObjectID}, true, nil
		}
	}

	row = &objectRow{
		vals:    make(map[string]any, len(objectColumnList)),
		changed: cds.InvalidObjectID,
	}

	// sync the convenience bools into the stored flag word
	if obj.Restricted {
		obj.SetFlag(cds.FlagRestricted)
	} else {
		obj.ClearFlag(cds.FlagRestricted)
	}
	if obj.Searchable {
		obj.SetFlag(cds.FlagSearchable)
	} else {
		obj.ClearFlag(cds.FlagSearchable)
	}

	var refClass, refTitle, refMeta, refAux, refRes, refMime, refService string
	var refTrack int32
	if hasReference {
		refClass = refObj.Class
		refTitle = refObj.Title
		refMeta = refObj.Metadata.Encode()
		refAux = refObj.Auxdata.Encode()
		refRes = cds.EncodeResources(refObj.Resources)
		refMime = refObj.MimeType
		refService = refObj.ServiceID
		refTrack = refObj.TrackNumber
	}

	row.vals["ParentID"] = obj.ParentID
	row.vals["ObjectType"] = int64(obj.Type)
	if obj.RefID > 0 {
		row.vals["RefID"] = obj.RefID
	} else {
		row.vals["RefID"] = nil
	}
	row.vals["UpnpClass"] = nullUnlessDiffers(obj.Class, refClass, hasReference)
	row.vals["Title"] = nullUnlessDiffers(obj.Title, refTitle, hasReference)
	row.vals["Metadata"] = nullUnlessDiffers(obj.Metadata.Encode(), refMeta, hasReference)
	row.vals["Auxdata"] = nullUnlessDiffers(obj.Auxdata.Encode(), refAux, hasReference)
	row.vals["Resources"] = nullUnlessDiffers(cds.EncodeResources(obj.Resources), refRes, hasReference)
	row.vals["UpdateID"] = int64(obj.UpdateID)
	row.vals["MimeType"] = nullUnlessDiffers(obj.MimeType, refMime, hasReference)
	row.vals["Flags"] = int64(obj.Flags)
	if obj.TrackNumber != 0 && !(hasReference && obj.TrackNumber == refTrack) {
		row.vals["TrackNumber"] = int64(obj.TrackNumber)
	} else {
		row.vals["TrackNumber"] = nil
	}
	row.vals["ServiceID"] = nullUnlessDiffers(obj.ServiceID, refService, hasReference)

	if err := s.prepareObjectLocation(ctx, obj, hasReference, refObj, row); err != nil {
		return nil, false, err
	}

	if obj.IsActiveItem() {
		row.activeVals = map[string]any{
			"ID":     obj.ID,
			"Action": obj.Action,
			"State":  obj.State,
		}
	}
	return row, false, nil
}

func (s *Store) prepareObjectLocation(ctx context.Context, obj *cds.Object, hasReference bool, refObj *cds.Object, row *objectRow) error {
	row.vals["Location"] = nil
	row.vals["LocationHash"] = nil

	switch {
	case obj.IsContainer():
		if obj.Location == "" {
			return nil
		}
		prefix := locPrefixDir
		if obj.IsVirtual() {
			prefix = locPrefixVirtual
		}
		stored := addLocationPrefix(prefix, obj.Location)
		row.vals["Location"] = stored
		row.vals["LocationHash"] = int64(locationHash(stored))
		row.storedLoc = stored
	case obj.IsExternalURL():
		// URLs have no filesystem provenance; stored raw, never hashed
		row.vals["Location"] = obj.Location
	case hasReference:
		// alias items defer their location to the reference row unless it
		// differs, which checkRefID already rules out
		if refObj != nil && obj.Location != refObj.Location {
			stored := addLocationPrefix(locPrefixFile, obj.Location)
			row.vals["Location"] = stored
			row.vals["LocationHash"] = int64(locationHash(stored))
			row.storedLoc = stored
		}
	default:
		// pure item: absolute path whose parent directory must exist as a
		// container, created on demand
		loc := filepath.Clean(obj.Location)
		if !filepath.IsAbs(loc) {
			return fmt.Errorf("%w: item location %q is not absolute", database.ErrInvalidObjectID, obj.Location)
		}
		obj.Location = loc
		_, changed, err := s.ensurePathExistence(ctx, filepath.Dir(loc))
		if err != nil {
			return err
		}
		if row.changed == cds.InvalidObjectID {
			row.changed = changed
		}
		stored := addLocationPrefix(locPrefixFile, loc)
		row.vals["Location"] = stored
		row.vals["LocationHash"] = int64(locationHash(stored))
		row.storedLoc = stored
	}
	return nil
}

func (s *Store) referenceRowExists(ctx context.Context, parentID, refID int64, title string) (bool, error) {
	if err := s.flushInsertBuffer(ctx); err != nil {
		return false, err
	}
	// an alias row whose title equals its reference's stores NULL, so the
	// comparison has to resolve the deferral the same way reads do
	var id int64
	err := s.sql.QueryRowContext(ctx,
		`SELECT o.ID FROM Objects o LEFT JOIN Objects r ON o.RefID = r.ID
		 WHERE o.ParentID = ? AND o.RefID = ? AND COALESCE(o.Title, r.Title) = ? LIMIT 1`,
		parentID, refID, title,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate reference: %w", err)
	}
	return true, nil
}

// checkRefID resolves the reference target of a virtual item: by RefID when
// it points at a row with the same location, by path lookup otherwise.
// Failure indicates caller-side corruption and is never tolerated silently.
func (s *Store) checkRefID(ctx context.Context, obj *cds.Object) (*cds.Object, error) {
	if !obj.IsVirtual() {
		return nil, fmt.Errorf("%w: tried to check refID of non-virtual object", database.ErrInvalidReference)
	}
	if obj.Location == "" {
		return nil, fmt.Errorf("%w: virtual item without a location", database.ErrInvalidReference)
	}

	if obj.RefID > 0 {
		refObj, err := s.loadObject(ctx, obj.RefID)
		if err == nil && refObj.Location == obj.Location {
			return refObj, nil
		}
		if err != nil && !errors.Is(err, database.ErrObjectNotFound) {
			return nil, err
		}
		log.Warn().
			Int64("ref_id", obj.RefID).
			Str("location", obj.Location).
			Msg("refID did not resolve to a matching location, falling back to path lookup")
	}

	refObj, err := s.findObjectByPath(ctx, obj.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: could not resolve reference for location %q", database.ErrInvalidReference, obj.Location)
	}
	return refObj, nil
}
