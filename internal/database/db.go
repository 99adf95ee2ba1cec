package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

// Options tune the connection pool opened by Open.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

func New(db *sql.DB) *DB {
	return &DB{db}
}

// Open connects to postgres and verifies the connection.
func Open(ctx context.Context, dsn string, opts Options) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return New(conn), nil
}

func (db *DB) ExecSafe(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("execute statement: %w", err)
	}

	return result, nil
}

// QueryRowSafe runs a prepared single-row query and scans it into dest.
// sql.ErrNoRows is returned unwrapped.
func (db *DB) QueryRowSafe(ctx context.Context, query string, args []interface{}, dest ...interface{}) error {
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	err = stmt.QueryRowContext(ctx, args...).Scan(dest...)
	if err == sql.ErrNoRows {
		return err
	}
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}
	return nil
}

// QueryBuilder rewrites @name placeholders into positional $n arguments,
// numbered in the order the params were added.
type QueryBuilder struct {
	names  []string
	params map[string]interface{}
}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		params: make(map[string]interface{}),
	}
}

func (qb *QueryBuilder) AddParam(name string, value interface{}) *QueryBuilder {
	if _, ok := qb.params[name]; !ok {
		qb.names = append(qb.names, name)
	}
	qb.params[name] = value
	return qb
}

func (qb *QueryBuilder) Build(baseQuery string) (string, []interface{}) {
	query := baseQuery
	args := make([]interface{}, 0, len(qb.names))

	for _, name := range qb.names {
		placeholder := "@" + name
		if strings.Contains(query, placeholder) {
			args = append(args, qb.params[name])
			query = strings.ReplaceAll(query, placeholder, fmt.Sprintf("$%d", len(args)))
		}
	}

	return query, args
}

type TxFn func(*sql.Tx) error

func (db *DB) WithTransaction(ctx context.Context, fn TxFn) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
