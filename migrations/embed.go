// Package migrations carries the birdhouse schema as SQL files compiled into
// the binary. Importing it, usually for side effects, points the database
// package at these files so Migrate needs nothing on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/database"
)

// Files holds every YYYYMMDD_HHMMSS_name.{up,down}.sql in this directory.
//
//go:embed *.sql
var Files embed.FS

func init() {
	database.MigrationsFS = Files
	database.MigrationsDir = "."
}
