// Package migrations embeds SQL migration files into the binary.
//
// The service runs its journal migrations without needing the SQL files
// present on the filesystem.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
