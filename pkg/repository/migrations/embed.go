package migrations

import "embed"

// FS holds the SQLite schema migrations, applied in file name order
//
//go:embed *.up.sql
var FS embed.FS
