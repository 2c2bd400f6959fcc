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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigWritesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, CfgFile))
	require.NoError(t, err)

	assert.Equal(t, "Mediagrove", cfg.FriendlyName())
	assert.Equal(t, 49152, cfg.Port())
	assert.Equal(t, 30*time.Minute, cfg.ScanInterval())
	assert.True(t, cfg.Storage().Caching)
	assert.Equal(t, filepath.Join(dir, DBFile), cfg.DBPath())
	// a UDN is generated on first save and survives reloads
	assert.True(t, strings.HasPrefix(cfg.UDN(), "uuid:"))

	again, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, cfg.UDN(), again.UDN())
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, CfgFile)
	require.NoError(t, os.WriteFile(path, []byte(
		"config_schema = 1\n\n[server]\nfriendly_name = \"Den\"\n"), 0o600))

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, "Den", cfg.FriendlyName())
	assert.Equal(t, 49152, cfg.Port())
	assert.True(t, cfg.Storage().InsertBuffering)
}

func TestLoadRejectsSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, CfgFile)
	require.NoError(t, os.WriteFile(path, []byte("config_schema = 99\n"), 0o600))

	_, err := NewConfig(dir, BaseDefaults)
	assert.Error(t, err)
}

func TestEnvOverridesConfigPath(t *testing.T) {
	envDir := t.TempDir()
	envPath := filepath.Join(envDir, "custom.toml")
	require.NoError(t, os.WriteFile(envPath, []byte(
		"config_schema = 1\n\n[server]\nfriendly_name = \"EnvBox\"\n"), 0o600))
	t.Setenv(CfgEnv, envPath)

	cfg, err := NewConfig(t.TempDir(), BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, "EnvBox", cfg.FriendlyName())
}

func TestSetDebugLoggingPersists(t *testing.T) {
	dir := t.TempDir()
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)
	assert.False(t, cfg.DebugLogging())

	cfg.SetDebugLogging(true)
	require.NoError(t, cfg.Save())

	reloaded, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)
	assert.True(t, reloaded.DebugLogging())
}
