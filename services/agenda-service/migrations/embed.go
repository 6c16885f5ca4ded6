// Package migrations embeds the agenda-service schema for golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
