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
)

// Well-known setting names.
const (
	SettingSchemaCreated = "SchemaCreated"
	SettingLastRescan    = "LastRescan"
	SettingServerUDN     = "ServerUDN"
)

// GetSetting reads a key/value setting. A missing key returns an empty
// string, not an error.
func (s *Store) GetSetting(ctx context.Context, name string) (string, error) {
	if s.sql == nil {
		return "", database.ErrNullSQL
	}
	var value string
	err := s.sql.QueryRowContext(ctx,
		"SELECT Value FROM Settings WHERE Name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %q: %w", name, err)
	}
	return value, nil
}

// SetSetting writes a key/value setting, replacing any existing value.
func (s *Store) SetSetting(ctx context.Context, name, value string) error {
	if s.sql == nil {
		return database.ErrNullSQL
	}
	_, err := s.sql.ExecContext(ctx,
		"INSERT OR REPLACE INTO Settings (Name, Value) VALUES (?, ?)", name, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %q: %w", name, err)
	}
	return nil
}
