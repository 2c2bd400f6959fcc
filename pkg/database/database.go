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

// Package database holds the shared row structs, parameter types and
// interfaces used by the concrete database implementations. Keeping them at
// this level avoids circular imports between the storage engine and its
// callers (UPnP request handlers, the import pipeline, the web UI).
package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mediagrove/mediagrove/pkg/database/cds"
)

// ErrNullSQL is returned when a database is used before it is connected.
var ErrNullSQL = errors.New("database is not connected")

// ErrObjectNotFound is the catchable "no such object" kind. The UPnP layer
// maps it to error code 701 instead of a server fault.
var ErrObjectNotFound = errors.New("object not found")

// ErrInvalidObjectID marks operations attempted on an object whose ID is
// unset or already set when it must not be.
var ErrInvalidObjectID = errors.New("invalid object id")

// ErrForbiddenObjectID marks mutation attempts against the reserved root IDs.
var ErrForbiddenObjectID = errors.New("forbidden object id")

// ErrInvalidReference marks reference-integrity failures: a refID that cannot
// be resolved, or one whose target location does not match. These indicate
// caller-side data corruption.
var ErrInvalidReference = errors.New("invalid object reference")

// ErrRecursionLimit is returned when recursive removal exceeds its round cap.
// It is treated as a corruption signal, never retried.
var ErrRecursionLimit = errors.New("recursion round limit exceeded")

// ErrAutoscanOverlap marks autoscan configurations that would watch the same
// subtree twice.
var ErrAutoscanOverlap = errors.New("overlapping autoscan directories")

// BrowseFlag selects between the two UPnP browse modes.
type BrowseFlag int

const (
	// BrowseMetadata returns exactly the requested object.
	BrowseMetadata BrowseFlag = iota
	// BrowseDirectChildren returns a page of the container's children.
	BrowseDirectChildren
)

// BrowseParams describes one browse request window.
type BrowseParams struct {
	ObjectID       int64
	Flag           BrowseFlag
	StartingIndex  uint32
	RequestedCount uint32
	// TrackSort orders children by track number then title instead of the
	// default containers-first grouping.
	TrackSort bool
	// HideFsRoot excludes the filesystem root container when browsing the
	// CDS root, for servers configured to expose virtual layout only.
	HideFsRoot bool
	// ContainersOnly restricts the page to subcontainers, used by tree views
	// that lazily expand directories.
	ContainersOnly bool
}

// BrowseResult is one page of browse output.
type BrowseResult struct {
	Objects      []*cds.Object
	TotalMatches uint32
	UpdateID     uint32
}

// SearchParams describes a paged title/class search under a container.
type SearchParams struct {
	ContainerID    int64
	Title          string
	Class          string
	StartingIndex  uint32
	RequestedCount uint32
}

// ChangedContainers carries the two disjoint "containers changed" sets
// produced by recursive removal. UPnP includes persistent containers that
// were emptied but kept; UI lists only containers that remain visible in the
// web tree.
type ChangedContainers struct {
	UPnP []int64
	UI   []int64
}

// Autoscan scan modes and levels.
const (
	ScanModeTimed   = "timed"
	ScanModeINotify = "inotify"
	ScanLevelBasic  = "basic"
	ScanLevelFull   = "full"
)

// AutoscanDir is one watched directory. ObjectID is cds.InvalidObjectID while
// the watch is a pending, location-only entry (its object was removed but the
// watch is persistent).
type AutoscanDir struct {
	LastModified time.Time
	ScanLevel    string
	ScanMode     string
	Location     string
	PathIDs      []int64
	DBID         int64
	ObjectID     int64
	Interval     time.Duration
	Recursive    bool
	Hidden       bool
	Persistent   bool
	Touched      bool
}

// GenericDBI is the portable lifecycle interface every database implements.
type GenericDBI interface {
	Open() error
	UnsafeGetSQLDb() *sql.DB
	Truncate() error
	Allocate() error
	MigrateUp() error
	Vacuum() error
	Close() error
	GetDBPath() string
}

// ContentDBI is the content-directory storage contract consumed by the
// import pipeline and the UPnP browse layer.
type ContentDBI interface {
	GenericDBI

	AddObject(ctx context.Context, obj *cds.Object) (changedContainer int64, err error)
	UpdateObject(ctx context.Context, obj *cds.Object) (changedContainer int64, err error)
	LoadObject(ctx context.Context, id int64) (*cds.Object, error)
	Browse(ctx context.Context, params BrowseParams) (*BrowseResult, error)
	Search(ctx context.Context, params SearchParams) (*BrowseResult, error)
	FindObjectByPath(ctx context.Context, path string) (*cds.Object, error)
	EnsurePathExistence(ctx context.Context, path string) (containerID, updateID int64, err error)
	AddContainerChain(ctx context.Context, path, lastClass string, lastRefID int64) (containerID, updateID int64, err error)
	RemoveObject(ctx context.Context, id int64, all bool) (*ChangedContainers, error)
	RemoveObjects(ctx context.Context, ids []int64, all bool) (*ChangedContainers, error)
	IncrementUpdateIDs(ctx context.Context, ids []int64) (string, error)

	GetAutoscanDirectory(ctx context.Context, objectID int64) (*AutoscanDir, error)
	GetAutoscanList(ctx context.Context, scanMode string) ([]AutoscanDir, error)
	SetAutoscanDirectory(ctx context.Context, dir *AutoscanDir) error
	RemoveAutoscanDirectory(ctx context.Context, objectID int64) error
	UpdateAutoscanPersistentList(ctx context.Context, scanMode string, dirs []AutoscanDir) error

	GetSetting(ctx context.Context, name string) (string, error)
	SetSetting(ctx context.Context, name, value string) error
}
