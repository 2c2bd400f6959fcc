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
	"strings"

	"github.com/mediagrove/mediagrove/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// insertBuffer coalesces object inserts during an import session. Rows are
// accumulated per table and written as multi-row INSERT statements in one
// transaction, Objects before ActiveItems so the side table never references
// a missing row. Object IDs are engine-allocated, so buffered rows already
// carry their final IDs and the cache can be wired up before commit.
type insertBuffer struct {
	objects     *tableBuffer
	activeItems *tableBuffer
	mu          syncutil.Mutex
	flushRows   int
}

// tableBuffer is one table's pending rows, flattened column-major like the
// statement placeholders expect.
type tableBuffer struct {
	table       string
	columns     []string
	buffer      []any
	columnCount int
	rowCount    int
}

// defaultBufferFlushRows is the pending-row threshold that triggers an
// automatic flush mid-session.
const defaultBufferFlushRows = 1000

// SQLite's default SQLITE_MAX_VARIABLE_NUMBER is 32766; stay under it with a
// safety margin when generating one statement.
const maxSQLiteVars = 32000

func newInsertBuffer(flushRows int) *insertBuffer {
	if flushRows <= 0 {
		flushRows = defaultBufferFlushRows
	}
	return &insertBuffer{
		flushRows:   flushRows,
		objects:     newTableBuffer("Objects", objectColumnList),
		activeItems: newTableBuffer("ActiveItems", []string{"ID", "Action", "State"}),
	}
}

func newTableBuffer(table string, columns []string) *tableBuffer {
	return &tableBuffer{
		table:       table,
		columns:     columns,
		columnCount: len(columns),
	}
}

func (tb *tableBuffer) add(values []any) error {
	if len(values) != tb.columnCount {
		return fmt.Errorf("expected %d values for %s columns, got %d", tb.columnCount, tb.table, len(values))
	}
	tb.buffer = append(tb.buffer, values...)
	tb.rowCount++
	return nil
}

func (tb *tableBuffer) reset() {
	tb.buffer = tb.buffer[:0]
	tb.rowCount = 0
}

// addObject queues one Objects row. It reports whether the buffer crossed
// its flush threshold; the caller decides when to actually flush, because a
// flush must happen outside the cache lock.
func (b *insertBuffer) addObject(values []any) (needsFlush bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.objects.add(values); err != nil {
		return false, err
	}
	return b.objects.rowCount >= b.flushRows, nil
}

// addActiveItem queues one ActiveItems row.
func (b *insertBuffer) addActiveItem(values []any) (needsFlush bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.activeItems.add(values); err != nil {
		return false, err
	}
	return b.activeItems.rowCount >= b.flushRows, nil
}

func (b *insertBuffer) empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects.rowCount == 0 && b.activeItems.rowCount == 0
}

// flush writes all pending rows in dependency order inside one transaction.
func (b *insertBuffer) flush(ctx context.Context, db *sql.DB) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects.rowCount == 0 && b.activeItems.rowCount == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert buffer transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn().Err(rbErr).Msg("failed to roll back insert buffer transaction")
		}
	}()

	for _, tb := range []*tableBuffer{b.objects, b.activeItems} {
		if err := tb.flushTx(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert buffer transaction: %w", err)
	}

	log.Debug().
		Int("objects", b.objects.rowCount).
		Int("active_items", b.activeItems.rowCount).
		Msg("flushed insert buffer")

	b.objects.reset()
	b.activeItems.reset()
	return nil
}

// flushTx writes this table's rows, chunked to stay under the sqlite
// variable limit.
func (tb *tableBuffer) flushTx(ctx context.Context, tx *sql.Tx) error {
	if tb.rowCount == 0 {
		return nil
	}

	maxRowsPerChunk := maxSQLiteVars / tb.columnCount
	rowsRemaining := tb.rowCount
	offset := 0

	for rowsRemaining > 0 {
		chunkSize := rowsRemaining
		if chunkSize > maxRowsPerChunk {
			chunkSize = maxRowsPerChunk
		}
		chunkEnd := offset + chunkSize*tb.columnCount

		stmt, err := tx.PrepareContext(ctx, tb.multiRowInsertSQL(chunkSize))
		if err != nil {
			return fmt.Errorf("failed to prepare batch insert for %s: %w", tb.table, err)
		}
		_, execErr := stmt.ExecContext(ctx, tb.buffer[offset:chunkEnd]...)
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close batch insert statement")
		}
		if execErr != nil {
			return fmt.Errorf("failed to execute batch insert for %s: %w", tb.table, execErr)
		}

		rowsRemaining -= chunkSize
		offset = chunkEnd
	}
	return nil
}

// multiRowInsertSQL generates the INSERT statement for rowCount rows.
func (tb *tableBuffer) multiRowInsertSQL(rowCount int) string {
	colNames := strings.Join(tb.columns, ", ")
	placeholder := "(" + strings.Repeat("?, ", tb.columnCount-1) + "?)"
	placeholders := strings.Repeat(placeholder+",\n    ", rowCount-1) + placeholder
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES\n    %s", tb.table, colNames, placeholders)
}
