// Package migrations holds the Postgres schema, applied with bun's migrator.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
