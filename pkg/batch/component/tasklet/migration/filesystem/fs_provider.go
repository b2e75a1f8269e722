// Package filesystem embeds the schema of the job repository tables.
package filesystem

import (
	"embed"
	"io/fs"
)

//go:embed resource
var rawFrameworkMigrationFS embed.FS

// FrameworkMigrationsFS returns the framework migrations, one directory per
// database type ("sqlite", "mysql", "postgres").
func FrameworkMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawFrameworkMigrationFS, "resource")
	if err != nil {
		// The directory is embedded at build time.
		panic(err)
	}
	return subFS
}
