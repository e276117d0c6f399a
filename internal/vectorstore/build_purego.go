//go:build !sqlite_vec
// +build !sqlite_vec

package vectorstore

// This file is compiled when building without the sqlite_vec tag. It
// uses a pure Go SQLite implementation; cosine similarity is computed
// in Go over the candidate rows.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if the sqlite-vec extension is
	// available for SQL-side cosine distance.
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
