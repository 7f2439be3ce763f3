// Package migrations embeds the PostgreSQL schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Dir is the directory of FS holding the migration files
const Dir = "."
