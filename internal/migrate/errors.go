package migrate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRelativeRange is returned when a relative target such as "-3" walks past
// the base or the head of the graph.
var ErrRelativeRange = errors.New("relative revision out of range")

type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("revision cycle detected: %s", strings.Join(e.IDs, " -> "))
}

type MultipleHeadsError struct {
	Heads []string
}

func (e *MultipleHeadsError) Error() string {
	return fmt.Sprintf("multiple heads present: %s; specify a target revision", strings.Join(e.Heads, ", "))
}

type MultipleBasesError struct {
	Bases []string
}

func (e *MultipleBasesError) Error() string {
	return fmt.Sprintf("multiple base revisions present: %s", strings.Join(e.Bases, ", "))
}

type UnknownParentError struct {
	ID     string
	Parent string
}

func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("revision %s revises unknown revision %s", e.ID, e.Parent)
}

type DuplicateRevisionError struct {
	ID string
}

func (e *DuplicateRevisionError) Error() string {
	return fmt.Sprintf("revision %s is defined more than once", e.ID)
}

type UnknownRevisionError struct {
	ID string
}

func (e *UnknownRevisionError) Error() string {
	return fmt.Sprintf("no such revision %q", e.ID)
}

type AmbiguousRevisionError struct {
	Prefix  string
	Matches []string
}

func (e *AmbiguousRevisionError) Error() string {
	return fmt.Sprintf("revision prefix %q is ambiguous: %s", e.Prefix, strings.Join(e.Matches, ", "))
}

// DivergentPathError is returned when two revisions sit on different
// branches, so neither an upgrade nor a downgrade connects them.
type DivergentPathError struct {
	From string
	To   string
}

func (e *DivergentPathError) Error() string {
	return fmt.Sprintf("no linear path from %s to %s", label(e.From), label(e.To))
}

type DirectionError struct {
	Want    Direction
	Current string
	Target  string
}

func (e *DirectionError) Error() string {
	return fmt.Sprintf("%s is not a valid %s target from %s", label(e.Target), e.Want, label(e.Current))
}

// MigrationFailedError reports the statement that broke a revision. The
// ledger still points at the last revision that completed.
type MigrationFailedError struct {
	Revision  string
	Direction Direction
	Statement int
	SQL       string
	// Executed counts statements of the failed revision that ran before the
	// failure and could not be rolled back by the engine.
	Executed int
	Err      error
}

func (e *MigrationFailedError) Error() string {
	return fmt.Sprintf("%s of revision %s failed at statement %d: %v", e.Direction, e.Revision, e.Statement, e.Err)
}

func (e *MigrationFailedError) Unwrap() error { return e.Err }

// LockContentionError reports a lock held by another runner. Holder and
// Since are only known for locks stored in a table.
type LockContentionError struct {
	Key    string
	Holder string
	Since  time.Time
}

func (e *LockContentionError) Error() string {
	msg := fmt.Sprintf("migration lock %q is held by another process", e.Key)
	if e.Holder != "" {
		msg = fmt.Sprintf("migration lock %q is held by %s", e.Key, e.Holder)
	}
	if !e.Since.IsZero() {
		msg += fmt.Sprintf(" since %s", e.Since.UTC().Format(time.RFC3339))
	}
	return msg
}

type DialectUnsupportedError struct {
	Dialect string
}

func (e *DialectUnsupportedError) Error() string {
	return fmt.Sprintf("unsupported dialect %q", e.Dialect)
}

func label(id string) string {
	if id == "" {
		return Base
	}
	return id
}
