// Package migrations embeds the SQL schema migrations applied per tenant.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
