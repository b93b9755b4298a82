// Package db provides embedded database migrations and seed data.
package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SeedProducts is the default catalog loaded by seed-db.
//
//go:embed seed/products.json
var SeedProducts []byte

// Migrations returns the goose migration files rooted at the migrations
// directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}
