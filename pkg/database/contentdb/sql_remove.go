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
	"github.com/rs/zerolog/log"
)

const (
	// maxRemoveRounds caps the alias/child expansion loop. A healthy tree
	// is never this deep; hitting the cap means reference cycles, which is
	// corruption, not load.
	maxRemoveRounds = 500
	// removeBatchSize bounds how many collected ids accumulate before a
	// partial delete is flushed to keep statement sizes sane.
	removeBatchSize = 10000
	// removeChunkSize bounds ids per IN(...) clause.
	removeChunkSize = 900
)

// removeState accumulates the working sets of one recursive removal.
type removeState struct {
	// pendingItems/pendingContainers await expansion: items for aliases
	// pointing at them, containers for their children.
	pendingItems      map[int64]struct{}
	pendingContainers map[int64]struct{}
	// deleteItems/deleteContainers are scheduled for deletion.
	deleteItems      map[int64]struct{}
	deleteContainers map[int64]struct{}
	// changedUI/changedUPnP collect parents whose child lists changed.
	changedUI   map[int64]struct{}
	changedUPnP map[int64]struct{}
}

func newRemoveState() *removeState {
	return &removeState{
		pendingItems:      make(map[int64]struct{}),
		pendingContainers: make(map[int64]struct{}),
		deleteItems:       make(map[int64]struct{}),
		deleteContainers:  make(map[int64]struct{}),
		changedUI:         make(map[int64]struct{}),
		changedUPnP:       make(map[int64]struct{}),
	}
}

func (st *removeState) scheduleItem(id, parentID int64) {
	if _, done := st.deleteItems[id]; done {
		return
	}
	st.deleteItems[id] = struct{}{}
	st.pendingItems[id] = struct{}{}
	st.markChanged(parentID)
}

func (st *removeState) scheduleContainer(id, parentID int64) {
	if _, done := st.deleteContainers[id]; done {
		return
	}
	st.deleteContainers[id] = struct{}{}
	st.pendingContainers[id] = struct{}{}
	st.markChanged(parentID)
}

func (st *removeState) markChanged(parentID int64) {
	if cds.IsForbiddenID(parentID) {
		return
	}
	st.changedUI[parentID] = struct{}{}
	st.changedUPnP[parentID] = struct{}{}
}

func (st *removeState) deleteCount() int {
	return len(st.deleteItems) + len(st.deleteContainers)
}

// RemoveObject deletes one object and everything that hangs off it. See
// RemoveObjects.
func (s *Store) RemoveObject(ctx context.Context, id int64, all bool) (*database.ChangedContainers, error) {
	return s.RemoveObjects(ctx, []int64{id}, all)
}

// RemoveObjects deletes the given objects, all their descendants, and every
// virtual alias referencing any removed item. With all set, removing an
// alias removes its canonical target instead, taking the whole alias group
// down with it.
//
// It returns the disjoint changed-container sets: UPnP lists every surviving
// container whose child list changed, including persistent containers that
// were emptied; UI omits containers no longer worth showing in the web tree.
// The object cache is cleared afterwards, since cascade deletion invalidates
// an unbounded slice of it.
func (s *Store) RemoveObjects(ctx context.Context, ids []int64, all bool) (*database.ChangedContainers, error) {
	if s.sql == nil {
		return nil, database.ErrNullSQL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushInsertBuffer(ctx); err != nil {
		return nil, err
	}

	st := newRemoveState()
	for _, id := range ids {
		if cds.IsForbiddenID(id) {
			return nil, fmt.Errorf("%w: refusing to remove object %d", database.ErrForbiddenObjectID, id)
		}
		obj, err := s.loadObject(ctx, id)
		if err != nil {
			return nil, err
		}
		if all && !obj.IsContainer() && obj.RefID > 0 {
			// take the whole alias group down through its canonical object
			ref, err := s.loadObject(ctx, obj.RefID)
			if err != nil {
				return nil, fmt.Errorf("%w: canonical object %d of alias %d: %v",
					database.ErrInvalidReference, obj.RefID, id, err)
			}
			obj = ref
		}
		if obj.IsContainer() {
			st.scheduleContainer(obj.ID, obj.ParentID)
		} else {
			st.scheduleItem(obj.ID, obj.ParentID)
		}
	}

	rounds := 0
	for len(st.pendingItems) > 0 || len(st.pendingContainers) > 0 {
		rounds++
		if rounds > maxRemoveRounds {
			return nil, fmt.Errorf("%w: removal still expanding after %d rounds",
				database.ErrRecursionLimit, maxRemoveRounds)
		}
		if len(st.pendingItems) > 0 {
			if err := s.expandItemAliases(ctx, st); err != nil {
				return nil, err
			}
		} else if err := s.expandContainerChildren(ctx, st); err != nil {
			return nil, err
		}
		if st.deleteCount() >= removeBatchSize {
			if err := s.flushRemovals(ctx, st); err != nil {
				return nil, err
			}
		}
	}
	if err := s.flushRemovals(ctx, st); err != nil {
		return nil, err
	}

	changed, err := s.purgeEmptyContainers(ctx, st)
	if err != nil {
		return nil, err
	}

	s.clearCache()
	return changed, nil
}

// expandItemAliases pulls every virtual alias referencing a pending item
// into the delete set.
func (s *Store) expandItemAliases(ctx context.Context, st *removeState) error {
	ids := drainIDSet(st.pendingItems)
	for _, chunk := range chunkIDs(ids, removeChunkSize) {
		//nolint:gosec // placeholders only, ids bound as arguments
		query := fmt.Sprintf(
			"SELECT DISTINCT ID, ParentID FROM Objects WHERE RefID IN (%s)",
			prepareVariadic("?", ",", len(chunk)))
		rows, err := s.sql.QueryContext(ctx, query, int64sToAny(chunk)...)
		if err != nil {
			return fmt.Errorf("failed to collect item aliases: %w", err)
		}
		for rows.Next() {
			var id, parentID int64
			if err := rows.Scan(&id, &parentID); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan alias row: %w", err)
			}
			st.scheduleItem(id, parentID)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return fmt.Errorf("failed to iterate alias rows: %w", err)
		}
	}
	return nil
}

// expandContainerChildren pulls every direct child of a pending container
// into the delete set, feeding items back through alias expansion.
func (s *Store) expandContainerChildren(ctx context.Context, st *removeState) error {
	ids := drainIDSet(st.pendingContainers)
	for _, chunk := range chunkIDs(ids, removeChunkSize) {
		//nolint:gosec // placeholders only, ids bound as arguments
		query := fmt.Sprintf(
			"SELECT ID, ParentID, ObjectType FROM Objects WHERE ParentID IN (%s)",
			prepareVariadic("?", ",", len(chunk)))
		rows, err := s.sql.QueryContext(ctx, query, int64sToAny(chunk)...)
		if err != nil {
			return fmt.Errorf("failed to collect container children: %w", err)
		}
		for rows.Next() {
			var id, parentID, objectType int64
			if err := rows.Scan(&id, &parentID, &objectType); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan child row: %w", err)
			}
			if cds.ObjectType(objectType)&cds.TypeContainer != 0 {
				st.scheduleContainer(id, parentID)
			} else {
				st.scheduleItem(id, parentID)
			}
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return fmt.Errorf("failed to iterate child rows: %w", err)
		}
	}
	return nil
}

// flushRemovals deletes the collected ids: autoscan watches are rescued or
// dropped first, then active-item side rows, then the object rows.
func (s *Store) flushRemovals(ctx context.Context, st *removeState) error {
	if st.deleteCount() == 0 {
		return nil
	}
	items := drainIDSet(st.deleteItems)
	containers := drainIDSet(st.deleteContainers)
	// deleted containers never appear in the changed sets
	for _, id := range containers {
		delete(st.changedUI, id)
		delete(st.changedUPnP, id)
	}

	if err := s.rescueAutoscans(ctx, containers); err != nil {
		return err
	}

	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin removal transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn().Err(rbErr).Msg("failed to roll back removal transaction")
		}
	}()

	for _, chunk := range chunkIDs(items, removeChunkSize) {
		//nolint:gosec // placeholders only, ids bound as arguments
		query := fmt.Sprintf("DELETE FROM ActiveItems WHERE ID IN (%s)",
			prepareVariadic("?", ",", len(chunk)))
		if _, err := tx.ExecContext(ctx, query, int64sToAny(chunk)...); err != nil {
			return fmt.Errorf("failed to delete active item rows: %w", err)
		}
	}
	all := make([]int64, 0, len(items)+len(containers))
	all = append(all, items...)
	all = append(all, containers...)
	for _, chunk := range chunkIDs(all, removeChunkSize) {
		//nolint:gosec // placeholders only, ids bound as arguments
		query := fmt.Sprintf("DELETE FROM Objects WHERE ID IN (%s)",
			prepareVariadic("?", ",", len(chunk)))
		if _, err := tx.ExecContext(ctx, query, int64sToAny(chunk)...); err != nil {
			return fmt.Errorf("failed to delete object rows: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit removal transaction: %w", err)
	}
	return nil
}

// rescueAutoscans handles watches attached to containers about to vanish.
// Persistent watches survive as location-only entries and reattach when the
// directory is imported again; transient ones are dropped with the object.
func (s *Store) rescueAutoscans(ctx context.Context, containers []int64) error {
	for _, chunk := range chunkIDs(containers, removeChunkSize) {
		//nolint:gosec // placeholders only, ids bound as arguments
		query := fmt.Sprintf(
			`SELECT a.DBID, a.Persistent, o.Location
			 FROM Autoscan a JOIN Objects o ON a.ObjID = o.ID
			 WHERE a.ObjID IN (%s)`,
			prepareVariadic("?", ",", len(chunk)))
		rows, err := s.sql.QueryContext(ctx, query, int64sToAny(chunk)...)
		if err != nil {
			return fmt.Errorf("failed to find autoscans on removed containers: %w", err)
		}
		type rescue struct {
			dbID       int64
			location   string
			persistent bool
		}
		var rescues []rescue
		var drops []int64
		for rows.Next() {
			var r rescue
			var loc string
			if err := rows.Scan(&r.dbID, &r.persistent, &loc); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan autoscan rescue row: %w", err)
			}
			if !r.persistent {
				drops = append(drops, r.dbID)
				continue
			}
			_, path, stripErr := stripLocationPrefix(loc)
			if stripErr != nil {
				_ = rows.Close()
				return fmt.Errorf("autoscan container has corrupt location: %w", stripErr)
			}
			r.location = path
			rescues = append(rescues, r)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return fmt.Errorf("failed to iterate autoscan rescue rows: %w", err)
		}

		for _, r := range rescues {
			_, err := s.sql.ExecContext(ctx,
				"UPDATE Autoscan SET ObjID = NULL, Location = ?, Touched = 0 WHERE DBID = ?",
				r.location, r.dbID)
			if err != nil {
				return fmt.Errorf("failed to detach persistent autoscan %d: %w", r.dbID, err)
			}
			log.Info().Int64("autoscan_id", r.dbID).Str("location", r.location).
				Msg("kept persistent autoscan as location-only entry")
		}
		if len(drops) > 0 {
			//nolint:gosec // placeholders only, ids bound as arguments
			dropSQL := fmt.Sprintf("DELETE FROM Autoscan WHERE DBID IN (%s)",
				prepareVariadic("?", ",", len(drops)))
			if _, err := s.sql.ExecContext(ctx, dropSQL, int64sToAny(drops)...); err != nil {
				return fmt.Errorf("failed to drop transient autoscans: %w", err)
			}
		}
	}
	return nil
}

// purgeEmptyContainers removes containers the deletion emptied. Persistent
// containers are kept, but their change is still published over UPnP; the UI
// set drops them since an empty kept container is not shown.
func (s *Store) purgeEmptyContainers(ctx context.Context, st *removeState) (*database.ChangedContainers, error) {
	rounds := 0
	for {
		rounds++
		if rounds > maxRemoveRounds {
			return nil, fmt.Errorf("%w: empty-container purge still expanding after %d rounds",
				database.ErrRecursionLimit, maxRemoveRounds)
		}

		candidates := make([]int64, 0, len(st.changedUI))
		for id := range st.changedUI {
			candidates = append(candidates, id)
		}
		if len(candidates) == 0 {
			break
		}

		purged := false
		for _, chunk := range chunkIDs(candidates, removeChunkSize) {
			//nolint:gosec // placeholders only, ids bound as arguments
			query := fmt.Sprintf(
				`SELECT o.ID, o.ParentID, o.Flags,
					(SELECT COUNT(*) FROM Objects c WHERE c.ParentID = o.ID)
				 FROM Objects o
				 WHERE o.ID IN (%s) AND o.ObjectType = ?`,
				prepareVariadic("?", ",", len(chunk)))
			args := append(int64sToAny(chunk), int64(cds.TypeContainer))
			rows, err := s.sql.QueryContext(ctx, query, args...)
			if err != nil {
				return nil, fmt.Errorf("failed to check emptied containers: %w", err)
			}
			type emptied struct {
				id, parentID int64
				flags        int64
			}
			var toPurge []emptied
			for rows.Next() {
				var e emptied
				var childCount int64
				if err := rows.Scan(&e.id, &e.parentID, &e.flags, &childCount); err != nil {
					_ = rows.Close()
					return nil, fmt.Errorf("failed to scan emptied container row: %w", err)
				}
				if childCount > 0 || cds.IsForbiddenID(e.id) {
					continue
				}
				if uint32(e.flags)&cds.FlagPersistentContainer != 0 {
					// kept but reported: clients must refresh the emptied view
					delete(st.changedUI, e.id)
					continue
				}
				toPurge = append(toPurge, e)
			}
			err = rows.Err()
			_ = rows.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to iterate emptied container rows: %w", err)
			}

			for _, e := range toPurge {
				if _, err := s.sql.ExecContext(ctx, "DELETE FROM Objects WHERE ID = ?", e.id); err != nil {
					return nil, fmt.Errorf("failed to purge empty container %d: %w", e.id, err)
				}
				delete(st.changedUI, e.id)
				delete(st.changedUPnP, e.id)
				st.markChanged(e.parentID)
				purged = true
			}
		}
		if !purged {
			break
		}
	}

	changed := &database.ChangedContainers{
		UPnP: make([]int64, 0, len(st.changedUPnP)),
		UI:   make([]int64, 0, len(st.changedUI)),
	}
	for id := range st.changedUPnP {
		changed.UPnP = append(changed.UPnP, id)
	}
	for id := range st.changedUI {
		changed.UI = append(changed.UI, id)
	}
	return changed, nil
}

// stringOrNull scans a nullable text column into an empty-string default.
type stringOrNull struct{ string }

func (sn *stringOrNull) Scan(value any) error {
	sn.string = ""
	switch v := value.(type) {
	case nil:
	case string:
		sn.string = v
	case []byte:
		sn.string = string(v)
	default:
		return fmt.Errorf("cannot scan %T into string", value)
	}
	return nil
}

func drainIDSet(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	for id := range set {
		delete(set, id)
	}
	return ids
}

func chunkIDs(ids []int64, size int) [][]int64 {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
