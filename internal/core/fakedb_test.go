package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errFakeQuery = errors.New("fake db: Query not supported")

// fakeDB is an in-memory Pool that answers statements from callbacks and
// records which transaction ran them.
type fakeDB struct {
	// row answers QueryRow. A nil result with a nil error means no rows.
	row func(sql string, args []any) ([]any, error)
	// exec answers Exec. A nil func accepts every statement.
	exec func(sql string, args []any) error

	beginErr error
	txs      []*fakeTx
	direct   []string
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	tx := &fakeTx{db: d}
	d.txs = append(d.txs, tx)
	return tx, nil
}

func (d *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.direct = append(d.direct, sql)
	return d.doExec(sql, args)
}

func (d *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errFakeQuery
}

func (d *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	d.direct = append(d.direct, sql)
	return d.doRow(sql, args)
}

func (d *fakeDB) doExec(sql string, args []any) (pgconn.CommandTag, error) {
	if d.exec != nil {
		if err := d.exec(sql, args); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (d *fakeDB) doRow(sql string, args []any) pgx.Row {
	if d.row == nil {
		return fakeRow{err: pgx.ErrNoRows}
	}
	vals, err := d.row(sql, args)
	if err == nil && vals == nil {
		err = pgx.ErrNoRows
	}
	return fakeRow{vals: vals, err: err}
}

// fakeTx records its statements and how it ended. Methods the service does
// not use are left to the embedded nil interface.
type fakeTx struct {
	pgx.Tx
	db         *fakeDB
	stmts      []string
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	if t.rolledBack || t.committed {
		return pgx.ErrTxClosed
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.rolledBack || t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.stmts = append(t.stmts, sql)
	return t.db.doExec(sql, args)
}

func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errFakeQuery
}

func (t *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	t.stmts = append(t.stmts, sql)
	return t.db.doRow(sql, args)
}

// ran reports whether any statement in t contains fragment.
func (t *fakeTx) ran(fragment string) bool {
	for _, s := range t.stmts {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("fake row: %d values for %d targets", len(r.vals), len(dest))
	}
	for i, v := range r.vals {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}
