package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultLockKey = "migra"

// breaker is implemented by locks that can outlive the process holding them.
type breaker interface {
	Break(ctx context.Context, conn *sql.Conn) (holder string, err error)
}

// Locker provides mutual exclusion between runners targeting the same
// database. Lock must fail fast with *LockContentionError instead of waiting.
// The lock is bound to conn, so conn must stay open until release is called.
type Locker interface {
	Lock(ctx context.Context, conn *sql.Conn) (release func(context.Context) error, err error)
}

func newLocker(d Dialect, key string) (Locker, error) {
	switch d {
	case MySQL:
		return &mysqlLock{key: key}, nil
	case Postgres:
		return &postgresLock{key: key}, nil
	case SQLite:
		return &sqliteLock{key: key, table: key + "_lock", owner: uuid.NewString()}, nil
	}
	return nil, &DialectUnsupportedError{Dialect: string(d)}
}

// mysqlLock uses a named server lock, held by the session.
type mysqlLock struct {
	key string
}

func (l *mysqlLock) Lock(ctx context.Context, conn *sql.Conn) (func(context.Context) error, error) {
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, 0)`, l.key).Scan(&got); err != nil {
		return nil, fmt.Errorf("GET_LOCK(%s): %w", l.key, err)
	}
	if !got.Valid {
		return nil, fmt.Errorf("GET_LOCK(%s) returned NULL", l.key)
	}
	if got.Int64 != 1 {
		return nil, &LockContentionError{Key: l.key}
	}
	return func(ctx context.Context) error {
		_, err := conn.ExecContext(ctx, `SELECT RELEASE_LOCK(?)`, l.key)
		return err
	}, nil
}

// postgresLock uses a session level advisory lock.
type postgresLock struct {
	key string
}

func (l *postgresLock) Lock(ctx context.Context, conn *sql.Conn) (func(context.Context) error, error) {
	id := hashLockKey(l.key)

	var got bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, id).Scan(&got); err != nil {
		return nil, fmt.Errorf("pg_try_advisory_lock(%d): %w", id, err)
	}
	if !got {
		return nil, &LockContentionError{Key: l.key}
	}
	return func(ctx context.Context) error {
		_, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, id)
		return err
	}, nil
}

// sqliteLock claims a single row in a lock table. SQLite has no named locks,
// and holding a write transaction for the whole run would block the
// per-revision transactions, so the row records the owner instead. A row
// left behind by a crashed run is removed with Break.
type sqliteLock struct {
	key   string
	table string
	owner string
}

func (l *sqliteLock) Lock(ctx context.Context, conn *sql.Conn) (func(context.Context) error, error) {
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    owner       TEXT NOT NULL,
    acquired_at TIMESTAMP NOT NULL
)`, l.table)
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("create lock table %s: %w", l.table, err)
	}

	insert := fmt.Sprintf(`INSERT OR IGNORE INTO %s (id, owner, acquired_at) VALUES (1, ?, ?)`, l.table)
	res, err := conn.ExecContext(ctx, insert, l.owner, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("claim lock row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim lock row: %w", err)
	}
	if n == 0 {
		var holder string
		var since any
		err := conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT owner, acquired_at FROM %s WHERE id = 1`, l.table)).Scan(&holder, &since)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("read lock owner: %w", err)
		}
		return nil, &LockContentionError{Key: l.key, Holder: holder, Since: parseTimestamp(since)}
	}

	return func(ctx context.Context) error {
		_, err := conn.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = 1 AND owner = ?`, l.table), l.owner)
		return err
	}, nil
}

// Break deletes the lock row whoever holds it and returns the previous holder.
func (l *sqliteLock) Break(ctx context.Context, conn *sql.Conn) (string, error) {
	var holder string
	err := conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT owner FROM %s WHERE id = 1`, l.table)).Scan(&holder)
	if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lock owner: %w", err)
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = 1`, l.table)); err != nil {
		return "", fmt.Errorf("delete lock row: %w", err)
	}
	return holder, nil
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// hashLockKey produces a stable int64 from key for pg_advisory_lock (FNV-1a).
func hashLockKey(key string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= 1099511628211
	}
	return int64(h & 0x7FFFFFFFFFFFFFFF)
}
