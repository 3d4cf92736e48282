// Package migrations embeds the goose schema migrations for every supported
// database dialect.
package migrations

import "embed"

// Migrations holds one directory per dialect: "sqlite" and "postgres".
//
//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS

const (
	DirSQLite   = "sqlite"
	DirPostgres = "postgres"
)
