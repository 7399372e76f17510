// Package migrations embeds the SQL schema migrations so the migrate binary
// carries them without filesystem access.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
