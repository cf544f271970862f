package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestBulkInsertIgnore_EmptyRows(t *testing.T) {
	mock := newMockPool(t)

	n, err := BulkInsertIgnore(context.Background(), mock, "events", []string{"id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsertIgnore_NoColumns(t *testing.T) {
	mock := newMockPool(t)

	_, err := BulkInsertIgnore(context.Background(), mock, "events", nil, [][]any{{"e1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns")
}

func TestBulkInsertIgnore_SkipsConflicts(t *testing.T) {
	mock := newMockPool(t)
	cols := []string{"id", "company_id"}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_insert_events"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_events"}, cols).
		WillReturnResult(3)
	mock.ExpectExec(`INSERT INTO "events" .+ ON CONFLICT DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{"e1", "acme"},
		{"e2", "acme"},
		{"e3", "acme"},
	}
	n, err := BulkInsertIgnore(context.Background(), mock, "events", cols, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsertIgnore_CopyFailureRollsBack(t *testing.T) {
	mock := newMockPool(t)
	cols := []string{"id"}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_events"}, cols).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := BulkInsertIgnore(context.Background(), mock, "events", cols, [][]any{{"e1"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
