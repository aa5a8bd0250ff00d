// Package migrations embeds the single fixed schema version of the field-notes database.
package migrations

import "embed"

// Files exposes the compiled-in migration SQL files.
//
//go:embed *.sql
var Files embed.FS
