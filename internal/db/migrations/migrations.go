// Package migrations holds the bun migration set for the Postgres schema.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
