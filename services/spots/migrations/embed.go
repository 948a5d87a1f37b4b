// Package migrations embeds the spots service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
