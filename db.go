package dbal

import (
	"context"
	"database/sql"
	"fmt"
)

// DB is the execution wrapper around a single database/sql handle. It holds
// exactly one piece of mutable state: the current cursor, overwritten on
// every Query call.
//
// A DB assumes one logical caller. It is NOT safe for concurrent use;
// callers needing concurrency must use separate instances.
type DB struct {
	sdb      *sql.DB
	dialect  Dialect
	escaper  Escaper
	rows     *sql.Rows // current cursor, nil when none is open
	cols     []string
	lastID   int64
	affected int64
}

// New wraps an already-open database/sql handle. The dialect selects the
// default escaper; use SetEscaper to override it.
func New(sdb *sql.DB, dialect Dialect) *DB {
	return &DB{sdb: sdb, dialect: dialect, escaper: dialect.Escaper()}
}

// SetEscaper replaces the escaper used by Compile, Query and Exec.
func (db *DB) SetEscaper(e Escaper) {
	db.escaper = e
}

// Dialect returns the dialect the wrapper was opened with.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Compile substitutes template placeholders using the connection's escaper.
func (db *DB) Compile(template string, params ...any) (string, error) {
	return Compile(db.escaper, template, params...)
}

// Query compiles the template when parameters are given (the template is
// used verbatim otherwise), executes it, and retains the resulting cursor
// for Results/Result. Any previously open cursor is closed first.
func (db *DB) Query(template string, params ...any) error {
	return db.QueryContext(context.Background(), template, params...)
}

// QueryContext is the context-aware variant of Query.
func (db *DB) QueryContext(ctx context.Context, template string, params ...any) error {
	q := template
	if len(params) > 0 {
		var err error
		if q, err = Compile(db.escaper, template, params...); err != nil {
			return err
		}
	}
	if db.rows != nil {
		db.rows.Close()
		db.rows = nil
		db.cols = nil
	}
	rows, err := db.sdb.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return err
	}
	db.rows = rows
	db.cols = cols
	return nil
}

// Exec compiles the template when parameters are given and executes it as a
// statement, recording last-insert-id and rows-affected from the driver.
func (db *DB) Exec(template string, params ...any) error {
	return db.ExecContext(context.Background(), template, params...)
}

// ExecContext is the context-aware variant of Exec.
func (db *DB) ExecContext(ctx context.Context, template string, params ...any) error {
	q := template
	if len(params) > 0 {
		var err error
		if q, err = Compile(db.escaper, template, params...); err != nil {
			return err
		}
	}
	res, err := db.sdb.ExecContext(ctx, q)
	if err != nil {
		return err
	}
	// Not every driver reports these; keep whatever it gives us.
	if id, err := res.LastInsertId(); err == nil {
		db.lastID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		db.affected = n
	}
	return nil
}

// Results fetches all remaining rows from the current cursor and closes it.
func (db *DB) Results() ([]Row, error) {
	rows, cols, err := db.cursor()
	if err != nil {
		return nil, err
	}
	defer db.closeCursor()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResultsKeyed fetches all remaining rows from the current cursor, re-keyed
// into a map by the named column. Rows sharing a key overwrite in fetch
// order. A row missing the column fails with ErrColumnNotFound.
func (db *DB) ResultsKeyed(pk string) (map[string]Row, error) {
	rows, cols, err := db.cursor()
	if err != nil {
		return nil, err
	}
	defer db.closeCursor()

	out := make(map[string]Row)
	for rows.Next() {
		r, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		key, ok := r[pk]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, pk)
		}
		out[toString(key)] = r
	}
	return out, rows.Err()
}

// Result fetches the next row from the current cursor, leaving the cursor
// open for further fetches. It returns sql.ErrNoRows when exhausted.
func (db *DB) Result() (Row, error) {
	rows, cols, err := db.cursor()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		defer db.closeCursor()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	return scanRow(rows, cols)
}

// ResultValue fetches the next row and returns the named column's value,
// failing with ErrColumnNotFound when the column is absent.
func (db *DB) ResultValue(column string) (any, error) {
	r, err := db.Result()
	if err != nil {
		return nil, err
	}
	v, ok := r[column]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	return v, nil
}

// LastInsertID returns the identifier recorded by the most recent Exec.
func (db *DB) LastInsertID() int64 {
	return db.lastID
}

// RowsAffected returns the row count recorded by the most recent Exec.
func (db *DB) RowsAffected() int64 {
	return db.affected
}

// Close releases the current cursor, if any, and the underlying handle.
func (db *DB) Close() error {
	db.closeCursor()
	return db.sdb.Close()
}

// cursor returns the current cursor or ErrNoCursor when none is open.
func (db *DB) cursor() (*sql.Rows, []string, error) {
	if db.rows == nil {
		return nil, nil, fmt.Errorf("%w: call Query first", ErrNoCursor)
	}
	return db.rows, db.cols, nil
}

func (db *DB) closeCursor() {
	if db.rows != nil {
		db.rows.Close()
		db.rows = nil
		db.cols = nil
	}
}

// scanRow scans the current row into a Row keyed by column name. Byte
// slices are copied into strings: drivers reuse their buffers between
// Next calls, and a Row must outlive the cursor.
func scanRow(rows *sql.Rows, cols []string) (Row, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	r := make(Row, len(cols))
	for i, c := range cols {
		if b, ok := vals[i].([]byte); ok {
			r[c] = string(b)
			continue
		}
		r[c] = vals[i]
	}
	return r, nil
}
