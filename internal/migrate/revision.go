// Package migrate applies and reverts revisions of a database schema.
//
// A Revision holds ordered up and down statements and points at its parent.
// Build links a set of revisions into a Graph; a Runner walks the graph from
// the revision recorded in the target database's ledger table to a target,
// executing statements through the dialect adapter and moving the ledger
// one revision at a time.
//
//	g, err := migrate.Build(revisions...)
//	r, err := migrate.NewRunner(g, migrate.SQLite)
//	summary, err := r.Upgrade(ctx, db, migrate.Head)
package migrate

// Symbolic targets understood by Graph.Resolve.
const (
	Head = "head"
	Base = "base"
)

type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "downgrade"
	}
	return "upgrade"
}

type Revision struct {
	ID string
	// Parent is the revision this one revises, empty for the base revision.
	Parent  string
	Message string
	Up      []Statement
	Down    []Statement
}

// Statement is one executable unit of a revision. When Dialects is empty the
// statement runs everywhere.
type Statement struct {
	SQL      string
	Dialects []Dialect
}

func Exec(sql string) Statement {
	return Statement{SQL: sql}
}

// ForDialect returns a statement that only runs on d and is a no-op on
// every other dialect.
func ForDialect(d Dialect, sql string) Statement {
	return Statement{SQL: sql, Dialects: []Dialect{d}}
}

func (r *Revision) statements(dir Direction) []Statement {
	if dir == Down {
		return r.Down
	}
	return r.Up
}
