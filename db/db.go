package db

import "embed"

// Migrations holds the ordered SQL files applied by internal/db.Migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// SeedFiles holds the default scoring schema and prompt template.
//
//go:embed seed/*.*
var SeedFiles embed.FS
