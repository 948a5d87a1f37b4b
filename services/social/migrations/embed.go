// Package migrations embeds the social service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
