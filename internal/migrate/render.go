package migrate

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// UpgradeSQL writes the script an online upgrade from "from" to target
// would execute, without a database. An empty from means base.
func (r *Runner) UpgradeSQL(w io.Writer, from, target string) (Summary, error) {
	if from == "" {
		from = Base
	}
	if target == "" {
		target = Head
	}
	return r.render(w, Up, from, target)
}

// DowngradeSQL writes the script of a downgrade. An empty from means head;
// target is required, as for Downgrade.
func (r *Runner) DowngradeSQL(w io.Writer, from, target string) (Summary, error) {
	if target == "" {
		return Summary{Direction: Down}, errors.New("downgrade requires a target revision")
	}
	if from == "" {
		from = Head
	}
	return r.render(w, Down, from, target)
}

func (r *Runner) render(w io.Writer, dir Direction, from, target string) (Summary, error) {
	summary := Summary{Direction: dir}

	if isRelative(from) {
		return summary, fmt.Errorf("offline start revision must be absolute, got %q", from)
	}
	fromID, err := r.graph.Resolve("", from)
	if err != nil {
		return summary, err
	}
	targetID, err := r.graph.Resolve(fromID, target)
	if err != nil {
		return summary, err
	}
	summary.From, summary.To = fromID, fromID

	steps, err := r.plan(dir, fromID, targetID)
	if err != nil {
		return summary, err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "-- %s %s -> %s (%s)\n\n", dir, label(fromID), label(targetID), r.dialect)
	writeStatement(bw, r.ledger.createSQL())

	for _, s := range steps {
		fmt.Fprintf(bw, "\n-- Running %s %s -> %s\n", dir, label(origin(s)), label(s.to))
		if s.skipped > 0 {
			fmt.Fprintf(bw, "-- %d statement(s) skipped for %s\n", s.skipped, r.dialect)
		}
		transactional := r.dialect.TransactionalDDL()
		if transactional {
			writeStatement(bw, "BEGIN")
		}
		for _, query := range s.stmts {
			writeStatement(bw, query)
		}
		if !transactional {
			writeStatement(bw, "BEGIN")
		}
		for _, query := range r.ledger.render(s.to) {
			writeStatement(bw, query)
		}
		writeStatement(bw, "COMMIT")

		summary.To = s.to
		summary.Applied = append(summary.Applied, s.rev.ID)
		summary.Executed += len(s.stmts)
		summary.Skipped += s.skipped
	}

	if err := bw.Flush(); err != nil {
		return summary, fmt.Errorf("write script: %w", err)
	}
	return summary, nil
}

// origin is the revision a step starts at.
func origin(s step) string {
	if s.dir == Down {
		return s.rev.ID
	}
	return s.rev.Parent
}

func writeStatement(w io.Writer, query string) {
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	fmt.Fprintf(w, "%s;\n", query)
}
