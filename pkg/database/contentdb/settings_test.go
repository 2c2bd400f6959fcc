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

package contentdb_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/mediagrove/mediagrove/pkg/database/contentdb"
	mocksql "github.com/mediagrove/mediagrove/pkg/testing/sqlmock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*contentdb.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := mocksql.NewSQLMock()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := contentdb.NewStore(contentdb.Config{}, afero.NewMemMapFs(), clockwork.NewFakeClock())
	require.NoError(t, store.SetSQLForTesting(context.Background(), db, false))
	return store, mock
}

func TestGetSettingQueriesByName(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT Value FROM Settings WHERE Name = \\?").
		WithArgs(contentdb.SettingServerUDN).
		WillReturnRows(sqlmock.NewRows([]string{"Value"}).AddRow("uuid:abc"))

	value, err := store.GetSetting(context.Background(), contentdb.SettingServerUDN)
	require.NoError(t, err)
	assert.Equal(t, "uuid:abc", value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSettingMissingKeyIsEmpty(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT Value FROM Settings WHERE Name = \\?").
		WithArgs("NoSuchKey").
		WillReturnRows(sqlmock.NewRows([]string{"Value"}))

	value, err := store.GetSetting(context.Background(), "NoSuchKey")
	require.NoError(t, err)
	assert.Empty(t, value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetSettingReplaces(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT OR REPLACE INTO Settings \\(Name, Value\\) VALUES \\(\\?, \\?\\)").
		WithArgs(contentdb.SettingLastRescan, "12345").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SetSetting(context.Background(), contentdb.SettingLastRescan, "12345")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
