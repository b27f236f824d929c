package rods

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// Executor defines the common database operations for both DB and Tx
type Executor interface {
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Session is the database/sql backed Store. It owns the connection, the
// current transaction if any, and the logging/tracing/metrics configuration.
type Session struct {
	db       *sqlx.DB // Underlying DB for starting transactions
	executor Executor // Current executor (DB or Tx)
	dialect  Dialect
	obs      *ObservabilityConfig
}

var _ Store = (*Session)(nil)

func NewSession(db *sql.DB, dialect Dialect, opts ...SessionOption) *Session {
	xdb := sqlx.NewDb(db, dialect.Name())
	s := &Session{
		db:       xdb,
		executor: xdb,
		dialect:  dialect,
		obs:      defaultObservabilityConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Dialect() Dialect { return s.dialect }

// DB exposes the underlying handle, e.g. for schema setup in tests.
func (s *Session) DB() *sqlx.DB { return s.db }

// Close closes the underlying database handle.
func (s *Session) Close() error { return s.db.Close() }

// Rows implements Store.
func (s *Session) Rows(ctx context.Context, table string, stmt sq.Sqlizer) ([]Fields, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("rods: failed to build sql: %w", err)
	}

	out := make([]Fields, 0)
	err = s.observe(ctx, statement{op: "select", table: table, query: query}, func(ctx context.Context) error {
		rows, err := s.executor.QueryxContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			row := make(map[string]any)
			if err := rows.MapScan(row); err != nil {
				return err
			}
			out = append(out, normalizeRow(row))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Insert implements Store.
func (s *Session) Insert(ctx context.Context, table string, payload Fields, idField string) (any, error) {
	query, args, err := s.insertSQL(table, payload, idField)
	if err != nil {
		return nil, err
	}

	var id any
	err = s.observe(ctx, statement{op: "insert", table: table, query: query}, func(ctx context.Context) error {
		if s.dialect.Returning() {
			return s.executor.QueryRowxContext(ctx, query, args...).Scan(&id)
		}
		result, err := s.executor.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if v, ok := payload[idField]; ok && v != nil {
			id = v
			return nil
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// insertSQL renders the INSERT for payload. An empty payload inserts a row of
// column defaults; dialects with RETURNING read the identifier back in the
// same statement.
func (s *Session) insertSQL(table string, payload Fields, idField string) (string, []any, error) {
	var (
		query string
		args  []any
	)
	_, mysql := s.dialect.(*MySQLDialect)
	switch {
	case len(payload) > 0:
		var err error
		query, args, err = sq.Insert(table).
			SetMap(map[string]any(payload)).
			PlaceholderFormat(s.dialect.PlaceholderFormat()).
			ToSql()
		if err != nil {
			return "", nil, fmt.Errorf("rods: failed to build sql: %w", err)
		}
	case mysql:
		query = "INSERT INTO " + table + " () VALUES ()"
	default:
		query = "INSERT INTO " + table + " DEFAULT VALUES"
	}
	if s.dialect.Returning() {
		query += " RETURNING " + idField
	}
	return query, args, nil
}

// Update implements Store.
func (s *Session) Update(ctx context.Context, table string, filter, payload Fields) (int64, error) {
	if len(payload) == 0 {
		return 0, nil
	}
	query, args, err := sq.Update(table).
		SetMap(map[string]any(payload)).
		Where(sq.Eq(filter)).
		PlaceholderFormat(s.dialect.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("rods: failed to build sql: %w", err)
	}

	var affected int64
	err = s.observe(ctx, statement{op: "update", table: table, query: query}, func(ctx context.Context) error {
		result, err := s.executor.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	return affected, err
}

// Exec runs a raw statement through the session's executor.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := s.observe(ctx, statement{op: "exec", query: query}, func(ctx context.Context) error {
		var err error
		result, err = s.executor.ExecContext(ctx, query, args...)
		return err
	})
	return result, err
}

func (s *Session) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	// Return new Session where executor is the transaction
	return &Session{
		db:       s.db,
		executor: tx,
		dialect:  s.dialect,
		obs:      s.obs,
	}, nil
}

func (s *Session) Commit() error {
	if tx, ok := s.executor.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return sql.ErrTxDone
}

func (s *Session) Rollback() error {
	if tx, ok := s.executor.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return sql.ErrTxDone
}

// Transaction executes a function within a transaction
func (s *Session) Transaction(ctx context.Context, fn func(txSession *Session) error) (err error) {
	// Check if already in transaction
	if _, ok := s.executor.(*sqlx.Tx); ok {
		return fn(s)
	}

	txSession, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = txSession.Rollback()
			panic(p)
		} else if err != nil {
			_ = txSession.Rollback()
		}
	}()

	err = fn(txSession)
	if err != nil {
		return err
	}

	return txSession.Commit()
}

// normalizeRow turns driver byte slices into strings so text columns read
// the same on every driver.
func normalizeRow(row map[string]any) Fields {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return Fields(row)
}
