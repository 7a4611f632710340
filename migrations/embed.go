// Package migrations embeds the node's SQL schema into the binary.
//
// Importing this package registers the files with the database package so
// that Migrate works without the .sql files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
