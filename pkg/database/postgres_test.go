package database

import (
	"context"
	"fmt"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestWithTxCommits(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM schedule_entries").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := WithTx(context.Background(), db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(context.Background(), "DELETE FROM schedule_entries")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := WithTx(context.Background(), db, func(tx *sqlx.Tx) error {
		return fmt.Errorf("insert failed")
	})
	require.EqualError(t, err, "insert failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}
