package migrate

import (
	"strconv"
	"strings"

	"github.com/modfin/henry/slicez"
)

type Dialect string

const (
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgresql"
)

// ParseDialect maps driver and URL scheme names onto a Dialect. A driver
// suffix such as "mysql+pymysql" is ignored.
func ParseDialect(name string) (Dialect, error) {
	base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(name)), "+")
	switch base {
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return "", &DialectUnsupportedError{Dialect: name}
}

func (d Dialect) known() bool {
	switch d {
	case MySQL, SQLite, Postgres:
		return true
	}
	return false
}

// TransactionalDDL reports whether schema changes can be rolled back as part
// of a transaction. MySQL commits implicitly on every DDL statement.
func (d Dialect) TransactionalDDL() bool {
	return d == SQLite || d == Postgres
}

// Rebind rewrites '?' placeholders into the numbered form PostgreSQL expects.
// Only the engine's own queries go through Rebind; they never contain
// literal question marks.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Adapt decides whether s runs under d. Untagged statements always run;
// tagged statements run only on a matching dialect and are skipped
// elsewhere. The SQL text is never rewritten.
func Adapt(s Statement, d Dialect) (query string, skip bool, err error) {
	if !d.known() {
		return "", false, &DialectUnsupportedError{Dialect: string(d)}
	}
	if len(s.Dialects) == 0 {
		return s.SQL, false, nil
	}
	for _, tag := range s.Dialects {
		if !tag.known() {
			return "", false, &DialectUnsupportedError{Dialect: string(tag)}
		}
	}
	if !slicez.Contains(s.Dialects, d) {
		return "", true, nil
	}
	return s.SQL, false, nil
}
