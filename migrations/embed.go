// Package migrations embeds the SQL schema of the command audit database so
// the binary can migrate without the files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/castbridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
