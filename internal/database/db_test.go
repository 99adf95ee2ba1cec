package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBuilder(t *testing.T) {
	t.Run("numbers placeholders in insertion order", func(t *testing.T) {
		qb := NewQueryBuilder().
			AddParam("key", "users").
			AddParam("data", []byte("[]"))

		query, args := qb.Build("INSERT INTO collections (key, data) VALUES (@key, @data)")
		assert.Equal(t, "INSERT INTO collections (key, data) VALUES ($1, $2)", query)
		assert.Equal(t, []interface{}{"users", []byte("[]")}, args)
	})

	t.Run("skips params missing from the query", func(t *testing.T) {
		qb := NewQueryBuilder().
			AddParam("unused", 1).
			AddParam("key", "clients")

		query, args := qb.Build("SELECT data FROM collections WHERE key = @key")
		assert.Equal(t, "SELECT data FROM collections WHERE key = $1", query)
		assert.Equal(t, []interface{}{"clients"}, args)
	})

	t.Run("build is repeatable", func(t *testing.T) {
		qb := NewQueryBuilder().AddParam("key", "x")
		_, first := qb.Build("@key")
		_, second := qb.Build("@key")
		assert.Equal(t, first, second)
	})
}

func TestWithTransaction(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		db := New(conn)
		err = db.WithTransaction(context.Background(), func(tx *sql.Tx) error {
			_, err := tx.Exec("CREATE TABLE t (id int)")
			return err
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = New(conn).WithTransaction(context.Background(), func(tx *sql.Tx) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestQueryRowSafe(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	db := New(conn)

	mock.ExpectPrepare("SELECT data FROM collections").
		ExpectQuery().
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`[]`)))

	var data []byte
	err = db.QueryRowSafe(context.Background(), "SELECT data FROM collections WHERE key = $1", []interface{}{"users"}, &data)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	mock.ExpectPrepare("SELECT data FROM collections").
		ExpectQuery().
		WithArgs("clients").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	err = db.QueryRowSafe(context.Background(), "SELECT data FROM collections WHERE key = $1", []interface{}{"clients"}, &data)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
