package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const DefaultLedgerTable = "migra_version"

// Entry is the ledger row: the revision a database last applied. The zero
// Entry means nothing has been applied.
type Entry struct {
	Revision  string
	AppliedAt time.Time
}

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type ledger struct {
	table   string
	dialect Dialect
}

func (l ledger) createSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    version_num VARCHAR(64) NOT NULL,
    applied_at  TIMESTAMP NOT NULL,
    PRIMARY KEY (version_num)
)`, l.table)
}

func (l ledger) ensure(ctx context.Context, q querier) error {
	if _, err := q.ExecContext(ctx, l.createSQL()); err != nil {
		return fmt.Errorf("create ledger table %s: %w", l.table, err)
	}
	return nil
}

func (l ledger) current(ctx context.Context, q querier) (Entry, error) {
	query := fmt.Sprintf(`SELECT version_num, applied_at FROM %s`, l.table)

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return Entry{}, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var items []Entry
	for rows.Next() {
		var i Entry
		var appliedAt any
		if err := rows.Scan(&i.Revision, &appliedAt); err != nil {
			return Entry{}, fmt.Errorf("scan ledger: %w", err)
		}
		i.AppliedAt = parseTimestamp(appliedAt)
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return Entry{}, err
	}
	if err := rows.Err(); err != nil {
		return Entry{}, err
	}

	switch len(items) {
	case 0:
		return Entry{}, nil
	case 1:
		return items[0], nil
	}
	return Entry{}, fmt.Errorf("ledger table %s holds %d rows, expected at most one", l.table, len(items))
}

// set replaces the ledger row. An empty revision clears it, which records
// that the database is back at base.
func (l ledger) set(ctx context.Context, q querier, revision string, at time.Time) error {
	if _, err := q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, l.table)); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	if revision == "" {
		return nil
	}

	insert := l.dialect.Rebind(fmt.Sprintf(`INSERT INTO %s (version_num, applied_at) VALUES (?, ?)`, l.table))
	if _, err := q.ExecContext(ctx, insert, revision, at.UTC()); err != nil {
		return fmt.Errorf("record revision %s: %w", revision, err)
	}
	return nil
}

// render returns the literal statements set would run, for offline scripts.
func (l ledger) render(revision string) []string {
	stmts := []string{fmt.Sprintf(`DELETE FROM %s`, l.table)}
	if revision == "" {
		return stmts
	}
	return append(stmts, fmt.Sprintf(`INSERT INTO %s (version_num, applied_at) VALUES ('%s', CURRENT_TIMESTAMP)`,
		l.table, strings.ReplaceAll(revision, "'", "''")))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts whatever the driver hands back for a TIMESTAMP
// column: time.Time from MySQL (parseTime) and pgx, text from SQLite.
func parseTimestamp(v any) time.Time {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
