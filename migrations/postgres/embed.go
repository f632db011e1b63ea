// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contains the PostgreSQL migrations.
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory within FS where migrations live.
const Dir = "."
