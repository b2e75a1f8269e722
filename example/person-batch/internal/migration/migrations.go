// Package migration embeds the person table migrations, one directory per
// database type.
package migration

import (
	"embed"
	"io/fs"
)

//go:embed all:resources
var rawMigrationsFS embed.FS

// FS returns the migrations rooted at the database type directories.
func FS() fs.FS {
	sub, err := fs.Sub(rawMigrationsFS, "resources")
	if err != nil {
		panic(err)
	}
	return sub
}
