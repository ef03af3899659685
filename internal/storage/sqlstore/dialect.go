package sqlstore

import (
	"strconv"
	"strings"

	"github.com/julianstephens/lectern/internal/migration"
)

// Dialect captures the differences between the SQL backends. Queries are
// written with ? placeholders and rebound for numbered-placeholder backends.
type Dialect struct {
	Name     string
	Driver   migration.Driver
	numbered bool
}

var (
	SQLite   = Dialect{Name: "sqlite", Driver: migration.DriverSQLite}
	Postgres = Dialect{Name: "postgres", Driver: migration.DriverPostgres, numbered: true}
)

// Rebind rewrites ? placeholders as $1, $2, ... when the backend needs it.
func (d Dialect) Rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
