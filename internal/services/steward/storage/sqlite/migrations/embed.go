package migrations

import "embed"

// FS contains embedded SQLite migrations for steward storage.
//
//go:embed *.sql
var FS embed.FS
