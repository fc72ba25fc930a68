// Package migrations embeds the engine database schema migrations.
package migrations

import "embed"

// FS holds the *.up.sql / *.down.sql migration files.
//
//go:embed *.sql
var FS embed.FS
