package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx, so repository
// methods run unchanged inside or outside a transaction.
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}

var (
	_ DBExecutor = (*sqlx.DB)(nil)
	_ DBExecutor = (*sqlx.Tx)(nil)
)

// sqlizer is anything squirrel can render.
type sqlizer interface {
	ToSql() (string, []interface{}, error)
}

func (s *Store) selectBuilt(ctx context.Context, op, table string, dest interface{}, b sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return &Error{Op: op, Table: table, Err: err}
	}
	if err := s.executor.SelectContext(ctx, dest, query, args...); err != nil {
		return ParseSQLiteError(err, op, table)
	}
	return nil
}

func (s *Store) getBuilt(ctx context.Context, op, table string, dest interface{}, b sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return &Error{Op: op, Table: table, Err: err}
	}
	if err := s.executor.GetContext(ctx, dest, query, args...); err != nil {
		return ParseSQLiteError(err, op, table)
	}
	return nil
}

func (s *Store) execBuilt(ctx context.Context, op, table string, b sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, &Error{Op: op, Table: table, Err: err}
	}
	res, err := s.executor.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, ParseSQLiteError(err, op, table)
	}
	return res, nil
}

func (s *Store) exec(ctx context.Context, op, table, query string, args ...interface{}) (sql.Result, error) {
	res, err := s.executor.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, ParseSQLiteError(err, op, table)
	}
	return res, nil
}
