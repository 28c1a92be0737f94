// Package migrations lleva el schema Postgres de toolgate dentro del binario,
// así `toolgate migrate` no depende de archivos junto al ejecutable.
// Los nombres siguen NNNN_descripcion.sql; pg.ParseMigrations los ordena por NNNN.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Dir es la raíz de FS donde pg.Migrate busca los .sql.
const Dir = "."
