// Package migrations embeds the rulewalk SQL migrations into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
