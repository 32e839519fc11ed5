package migrations

import "embed"

// FS contains embedded SQLite migrations for the mood history store.
//
//go:embed *.sql
var FS embed.FS
