package migrate

import (
	"errors"
	"testing"
	"time"
)

func TestParseDialect(t *testing.T) {
	testCases := []struct {
		input   string
		want    Dialect
		wantErr bool
	}{
		{input: "mysql", want: MySQL},
		{input: "mysql+pymysql", want: MySQL},
		{input: "MariaDB", want: MySQL},
		{input: "sqlite", want: SQLite},
		{input: "sqlite3", want: SQLite},
		{input: "postgresql+psycopg2", want: Postgres},
		{input: "pgx", want: Postgres},
		{input: "oracle", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseDialect(tc.input)
			if tc.wantErr {
				var unsupported *DialectUnsupportedError
				if !errors.As(err, &unsupported) {
					t.Fatalf("expected DialectUnsupportedError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseDialect(%q) = %s, want %s", tc.input, got, tc.want)
			}
		})
	}
}

func TestAdapt(t *testing.T) {
	charset := ForDialect(MySQL, "ALTER TABLE users CONVERT TO CHARACTER SET utf8mb4")
	plain := Exec("CREATE TABLE t (id INT)")

	testCases := []struct {
		name     string
		stmt     Statement
		dialect  Dialect
		wantSkip bool
		wantErr  bool
	}{
		{name: "Untagged on sqlite", stmt: plain, dialect: SQLite},
		{name: "Untagged on mysql", stmt: plain, dialect: MySQL},
		{name: "MySQL only on mysql", stmt: charset, dialect: MySQL},
		{name: "MySQL only on sqlite", stmt: charset, dialect: SQLite, wantSkip: true},
		{name: "MySQL only on postgres", stmt: charset, dialect: Postgres, wantSkip: true},
		{name: "Several dialects", stmt: Statement{SQL: "SELECT 1", Dialects: []Dialect{SQLite, Postgres}}, dialect: Postgres},
		{name: "Unknown target dialect", stmt: plain, dialect: "oracle", wantErr: true},
		{name: "Unknown tag", stmt: Statement{SQL: "SELECT 1", Dialects: []Dialect{"oracle"}}, dialect: SQLite, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			query, skip, err := Adapt(tc.stmt, tc.dialect)
			if tc.wantErr {
				var unsupported *DialectUnsupportedError
				if !errors.As(err, &unsupported) {
					t.Fatalf("expected DialectUnsupportedError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("adapt: %v", err)
			}
			if skip != tc.wantSkip {
				t.Fatalf("skip = %v, want %v", skip, tc.wantSkip)
			}
			if !skip && query != tc.stmt.SQL {
				t.Errorf("query rewritten: %q", query)
			}
		})
	}
}

func TestRebind(t *testing.T) {
	q := "INSERT INTO t (a, b) VALUES (?, ?)"
	if got := Postgres.Rebind(q); got != "INSERT INTO t (a, b) VALUES ($1, $2)" {
		t.Errorf("postgres rebind = %q", got)
	}
	if got := MySQL.Rebind(q); got != q {
		t.Errorf("mysql rebind = %q", got)
	}
}

func TestTransactionalDDL(t *testing.T) {
	if MySQL.TransactionalDDL() {
		t.Error("mysql commits DDL implicitly")
	}
	if !SQLite.TransactionalDDL() || !Postgres.TransactionalDDL() {
		t.Error("sqlite and postgres support transactional DDL")
	}
}

func TestHashLockKey(t *testing.T) {
	testCases := []struct {
		key1 string
		key2 string
		same bool
	}{
		{"migra", "migra", true},
		{"migra", "other", false},
		{"", "", true},
	}

	for _, tc := range testCases {
		h1, h2 := hashLockKey(tc.key1), hashLockKey(tc.key2)
		if (h1 == h2) != tc.same {
			t.Errorf("hashLockKey(%q) == hashLockKey(%q) is %v, want %v", tc.key1, tc.key2, h1 == h2, tc.same)
		}
		if h1 < 0 {
			t.Errorf("hashLockKey(%q) = %d, want non-negative", tc.key1, h1)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 11, 5, 9, 55, 0, 0, time.UTC)

	testCases := []struct {
		name  string
		input any
	}{
		{"time", want},
		{"rfc3339", "2025-11-05T09:55:00Z"},
		{"sqlite driver format", "2025-11-05 09:55:00+00:00"},
		{"current_timestamp", "2025-11-05 09:55:00"},
		{"bytes", []byte("2025-11-05 09:55:00")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseTimestamp(tc.input); !got.Equal(want) {
				t.Errorf("parseTimestamp(%v) = %v, want %v", tc.input, got, want)
			}
		})
	}

	if got := parseTimestamp(42); !got.IsZero() {
		t.Errorf("unexpected value for unsupported input: %v", got)
	}
}
