// Package sqlite provides a SQLite-based implementation of the driven
// storage ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. One database file backs every store:
//
//   - RequestStore: the append-only request log, with result sets stored as
//     zstd-compressed JSON
//   - WatchStore: saved watches and their schedule state
//   - WatermarkStore: per-watch channel watermarks
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Applied versions are tracked in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.chanscout/data/chanscout.db
//
// # Thread Safety
//
// All operations are thread-safe. The store relies on SQLite locking in
// WAL mode.
package sqlite
