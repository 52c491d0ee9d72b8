// Package migrations embeds the SQL schema migrations for the SQLite store.
// Files are named NNN_name.up.sql / NNN_name.down.sql.
package migrations

import "embed"

// FS holds the migrations, applied in version order.
//
//go:embed *.sql
var FS embed.FS
