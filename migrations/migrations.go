// Package migrations embeds the PostgreSQL schema for the auth service.
package migrations

import "embed"

// FS holds every *.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
