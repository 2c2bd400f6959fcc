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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/mediagrove/mediagrove/pkg/config"
	"github.com/mediagrove/mediagrove/pkg/database/contentdb"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "mediagrove")
	}
	return ".mediagrove"
}

func run() error {
	dataDir := flag.String("data", defaultDataDir(), "data and config directory")
	debug := flag.Bool("debug", false, "enable debug logging")
	vacuum := flag.Bool("vacuum", false, "compact the content database and exit")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.NewConfig(*dataDir, config.BaseDefaults)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if *debug || cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	storageCfg := cfg.Storage()
	store := contentdb.NewStore(contentdb.Config{
		Path:            cfg.DBPath(),
		Caching:         storageCfg.Caching,
		CacheCapacity:   storageCfg.CacheCapacity,
		CacheMaxFill:    storageCfg.CacheMaxFill,
		InsertBuffering: storageCfg.InsertBuffering,
		BufferFlushRows: storageCfg.BufferFlushRows,
	}, afero.NewOsFs(), clockwork.NewRealClock())
	if err := store.Open(); err != nil {
		return fmt.Errorf("error opening content database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("error closing content database")
		}
	}()
	log.Info().Str("path", store.GetDBPath()).Msg("content database ready")

	if *vacuum {
		if err := store.Vacuum(); err != nil {
			return fmt.Errorf("error compacting content database: %w", err)
		}
		log.Info().Msg("content database compacted")
		return nil
	}

	if err := store.SetSetting(context.Background(), contentdb.SettingServerUDN, cfg.UDN()); err != nil {
		return fmt.Errorf("error storing server udn: %w", err)
	}
	log.Info().
		Str("friendly_name", cfg.FriendlyName()).
		Int("port", cfg.Port()).
		Msg("mediagrove started")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info().Msg("shutting down")
	return nil
}
