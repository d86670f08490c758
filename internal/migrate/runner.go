package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Summary describes one upgrade or downgrade run.
type Summary struct {
	Direction Direction
	From      string
	To        string
	// Applied lists revision ids in the order they were run.
	Applied  []string
	Executed int
	Skipped  int
	Elapsed  time.Duration
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLedgerTable overrides the name of the ledger table, DefaultLedgerTable
// by default.
func WithLedgerTable(name string) Option {
	return func(r *Runner) { r.ledger.table = name }
}

// WithLockKey names the lock runners on the same database contend for.
func WithLockKey(key string) Option {
	return func(r *Runner) { r.lockKey = key }
}

// WithClock sets the time source for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner moves a database between revisions of a Graph. It keeps no ledger
// state between calls; every run reads the ledger from the database.
type Runner struct {
	graph   *Graph
	dialect Dialect
	ledger  ledger
	lockKey string
	locker  Locker
	logger  *slog.Logger
	now     func() time.Time
}

func NewRunner(g *Graph, d Dialect, opts ...Option) (*Runner, error) {
	if !d.known() {
		return nil, &DialectUnsupportedError{Dialect: string(d)}
	}
	r := &Runner{
		graph:   g,
		dialect: d,
		ledger:  ledger{table: DefaultLedgerTable, dialect: d},
		lockKey: DefaultLockKey,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}

	locker, err := newLocker(d, r.lockKey)
	if err != nil {
		return nil, err
	}
	r.locker = locker
	return r, nil
}

func (r *Runner) Graph() *Graph { return r.graph }

func (r *Runner) Dialect() Dialect { return r.dialect }

// Upgrade moves the database forward to target, "head" when empty.
func (r *Runner) Upgrade(ctx context.Context, db *sql.DB, target string) (Summary, error) {
	if target == "" {
		target = Head
	}
	return r.run(ctx, db, Up, target)
}

// Downgrade reverts the database to target. Target is required; use "base"
// to revert everything.
func (r *Runner) Downgrade(ctx context.Context, db *sql.DB, target string) (Summary, error) {
	if target == "" {
		return Summary{Direction: Down}, errors.New("downgrade requires a target revision")
	}
	return r.run(ctx, db, Down, target)
}

// Current reads the ledger. The zero Entry means no revision is applied.
func (r *Runner) Current(ctx context.Context, db *sql.DB) (Entry, error) {
	if err := r.ledger.ensure(ctx, db); err != nil {
		return Entry{}, err
	}
	return r.ledger.current(ctx, db)
}

// BreakLock removes a lock left behind by a crashed run and returns its
// holder, empty when nothing was held. MySQL and PostgreSQL locks belong to a
// session and disappear with it, so there is nothing to break there.
func (r *Runner) BreakLock(ctx context.Context, db *sql.DB) (string, error) {
	b, ok := r.locker.(breaker)
	if !ok {
		return "", nil
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	holder, err := b.Break(ctx, conn)
	if err != nil {
		return "", err
	}
	if holder != "" {
		r.logger.Warn("broke migration lock", "key", r.lockKey, "holder", holder)
	}
	return holder, nil
}

func (r *Runner) run(ctx context.Context, db *sql.DB, dir Direction, target string) (summary Summary, err error) {
	start := time.Now()
	summary.Direction = dir
	defer func() { summary.Elapsed = time.Since(start) }()

	if db == nil {
		return summary, errors.New("no database connection; render the script offline instead")
	}

	// Absolute targets are resolved before touching the database so that
	// graph errors never leave a lock or a connection behind.
	var targetID string
	if !isRelative(target) {
		if targetID, err = r.graph.Resolve("", target); err != nil {
			return summary, err
		}
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return summary, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	release, err := r.locker.Lock(ctx, conn)
	if err != nil {
		return summary, err
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			r.logger.Warn("failed to release migration lock", "key", r.lockKey, "err", rerr)
		}
	}()

	if err := r.ledger.ensure(ctx, conn); err != nil {
		return summary, err
	}
	entry, err := r.ledger.current(ctx, conn)
	if err != nil {
		return summary, err
	}
	current := entry.Revision
	summary.From, summary.To = current, current

	if isRelative(target) {
		if targetID, err = r.graph.Resolve(current, target); err != nil {
			return summary, err
		}
	}

	steps, err := r.plan(dir, current, targetID)
	if err != nil {
		return summary, err
	}
	if len(steps) == 0 {
		r.logger.Info("database already at target", "revision", label(current))
		return summary, nil
	}

	for _, s := range steps {
		logger := r.logger.With("revision", s.rev.ID, "direction", dir.String())
		logger.Info("running revision", "statements", len(s.stmts), "skipped", s.skipped)

		if err := r.apply(ctx, conn, logger, s); err != nil {
			return summary, err
		}
		summary.To = s.to
		summary.Applied = append(summary.Applied, s.rev.ID)
		summary.Executed += len(s.stmts)
		summary.Skipped += s.skipped
	}

	r.logger.Info("migration complete", "direction", dir.String(), "from", label(summary.From), "to", label(summary.To), "revisions", len(summary.Applied))
	return summary, nil
}

// step is one revision adapted for the runner's dialect.
type step struct {
	rev     *Revision
	dir     Direction
	to      string
	stmts   []string
	skipped int
}

// plan resolves the path and adapts every statement up front, so that an
// unsupported statement stops the run before anything executes. Online and
// offline runs share it.
func (r *Runner) plan(want Direction, from, to string) ([]step, error) {
	dir, path, err := r.graph.Path(from, to)
	if err != nil {
		return nil, err
	}
	if len(path) > 0 && dir != want {
		return nil, &DirectionError{Want: want, Current: from, Target: to}
	}

	steps := make([]step, 0, len(path))
	for _, rev := range path {
		s := step{rev: rev, dir: dir, to: rev.ID}
		if dir == Down {
			s.to = rev.Parent
		}
		for _, stmt := range rev.statements(dir) {
			query, skip, err := Adapt(stmt, r.dialect)
			if err != nil {
				return nil, fmt.Errorf("revision %s: %w", rev.ID, err)
			}
			if skip {
				s.skipped++
				continue
			}
			s.stmts = append(s.stmts, query)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func (r *Runner) apply(ctx context.Context, conn *sql.Conn, logger *slog.Logger, s step) error {
	if r.dialect.TransactionalDDL() {
		return r.applyTx(ctx, conn, logger, s)
	}
	return r.applyEach(ctx, conn, logger, s)
}

// applyTx runs the statements and the ledger update in one transaction.
func (r *Runner) applyTx(ctx context.Context, conn *sql.Conn, logger *slog.Logger, s step) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", s.rev.ID, err)
	}
	defer tx.Rollback()

	for i, query := range s.stmts {
		logger.Debug("executing statement", "index", i, "sql", query)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return &MigrationFailedError{Revision: s.rev.ID, Direction: s.dir, Statement: i, SQL: query, Err: err}
		}
	}
	if err := r.ledger.set(ctx, tx, s.to, r.now()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", s.rev.ID, err)
	}
	return nil
}

// applyEach is used where DDL commits implicitly. Statements run one at a
// time inside a transaction that is rolled back on failure, which undoes data
// changes but not DDL the server already committed. The ledger only moves,
// in its own transaction, once all of them succeeded.
func (r *Runner) applyEach(ctx context.Context, conn *sql.Conn, logger *slog.Logger, s step) error {
	work, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", s.rev.ID, err)
	}
	for i, query := range s.stmts {
		logger.Debug("executing statement", "index", i, "sql", query)
		if _, err := work.ExecContext(ctx, query); err != nil {
			if rerr := work.Rollback(); rerr != nil {
				logger.Warn("failed to roll back revision", "err", rerr)
			}
			if i > 0 {
				logger.Warn("revision partially executed; data changes were rolled back, DDL committed by the server was not",
					"executed", i, "statement", i)
			}
			return &MigrationFailedError{Revision: s.rev.ID, Direction: s.dir, Statement: i, SQL: query, Executed: i, Err: err}
		}
	}
	if err := work.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", s.rev.ID, err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger transaction for %s: %w", s.rev.ID, err)
	}
	defer tx.Rollback()
	if err := r.ledger.set(ctx, tx, s.to, r.now()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger for %s: %w", s.rev.ID, err)
	}
	return nil
}
