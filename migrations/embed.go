// migrations содержит SQL-миграции служебных таблиц витрины.
// Сырая таблица сюда не входит: её схема выводится из первого выложенного файла.
package migrations

import "embed"

// FS — файлы миграций вида <N>_<name>.up.sql.
//
//go:embed *.up.sql
var FS embed.FS
