// Package migrations embebe las migraciones SQL de PostgreSQL.
package migrations

import "embed"

// FS contiene las migraciones.
//
//go:embed *.sql
var FS embed.FS

// Dir es el directorio dentro de FS donde viven las migraciones.
const Dir = "."
