package db

import "embed"

// EmbedMigrations contains the run catalog schema migrations.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
