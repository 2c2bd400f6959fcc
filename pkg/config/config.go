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

// Package config holds the on-disk TOML configuration and its typed access
// layer. All getters are safe for concurrent use.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mediagrove/mediagrove/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "MEDIAGROVE_CFG"
	CfgFile       = "config.toml"
	DBFile        = "content.db"
)

type Values struct {
	Server       Server  `toml:"server,omitempty"`
	Storage      Storage `toml:"storage,omitempty"`
	Import       Import  `toml:"import,omitempty"`
	ConfigSchema int     `toml:"config_schema"`
	DebugLogging bool    `toml:"debug_logging"`
}

type Server struct {
	// FriendlyName is what control points display for this server.
	FriendlyName string `toml:"friendly_name"`
	// UDN is the device's unique identifier, generated on first save.
	UDN  string `toml:"udn,omitempty"`
	Port int    `toml:"port"`
}

type Storage struct {
	CacheCapacity   int  `toml:"cache_capacity,omitempty"`
	CacheMaxFill    int  `toml:"cache_max_fill,omitempty"`
	BufferFlushRows int  `toml:"buffer_flush_rows,omitempty"`
	Caching         bool `toml:"caching"`
	InsertBuffering bool `toml:"insert_buffering"`
}

type Import struct {
	HiddenFiles  bool `toml:"hidden_files"`
	FollowLinks  bool `toml:"follow_symlinks"`
	ScanInterval int  `toml:"scan_interval_seconds,omitempty"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Server: Server{
		FriendlyName: "Mediagrove",
		Port:         49152,
	},
	Storage: Storage{
		Caching:         true,
		InsertBuffering: true,
	},
	Import: Import{
		ScanInterval: 1800,
	},
}

type Instance struct {
	dataDir  string
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads the config file under configDir, writing the defaults to
// disk first when no file exists yet.
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		mu:       syncutil.RWMutex{},
		dataDir:  configDir,
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		if err := os.MkdirAll(filepath.Dir(cfgPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}
	if _, err := os.Stat(c.cfgPath); err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top.
	// This ensures fields not present in the file retain their default values.
	newVals := c.defaults
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema, SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	c.vals = newVals
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	// generate a device UDN if one doesn't exist
	if c.vals.Server.UDN == "" {
		newUDN := "uuid:" + uuid.New().String()
		c.vals.Server.UDN = newUDN
		log.Info().Msgf("generated new server udn: %s", newUDN)
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) DBPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filepath.Join(c.dataDir, DBFile)
}

func (c *Instance) FriendlyName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Server.FriendlyName
}

func (c *Instance) UDN() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Server.UDN
}

func (c *Instance) Port() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Server.Port
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}

func (c *Instance) Storage() Storage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Storage
}

func (c *Instance) Import() Import {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Import
}

func (c *Instance) ScanInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Import.ScanInterval) * time.Second
}
