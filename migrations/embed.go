// Package migrations SQL-схема сервиса публикации, встроенная в бинарник
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
