package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/askdb/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_Clear(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM user_process_status WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := s.Clear(context.Background(), "u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO user_process_status \(user_id, "tables", last_updated\)`).
		WithArgs("u1", `{"tables": ["orders"]}`, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Upsert(context.Background(), "u1", map[string]string{
		model.FieldTables: `{"tables": ["orders"]}`,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertMultipleFields(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// Fields are ordered alphabetically in the generated statement.
	mock.ExpectExec(`INSERT INTO user_process_status \(user_id, "joins", "tables", last_updated\)`).
		WithArgs("u1", "null", `{"tables": ["orders"]}`, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Upsert(context.Background(), "u1", map[string]string{
		model.FieldTables: `{"tables": ["orders"]}`,
		model.FieldJoins:  "null",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Upsert_InvalidField(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.Upsert(context.Background(), "u1", map[string]string{"user_id; DROP TABLE": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status field")
}

func TestPostgresStore_Read(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT user_id, user_question, cleaned_question`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{
			"user_id", "user_question", "cleaned_question", "tables", "joins",
			"grouping", "calculations", "filtering", "sql", "last_updated",
		}).AddRow(
			"u1", "show revenue", "Show total revenue", model.NotStarted, model.NotStarted,
			model.NotStarted, model.NotStarted, model.NotStarted, model.NotStarted, now,
		))

	row, err := s.Read(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "show revenue", row.UserQuestion)
	assert.Equal(t, "Show total revenue", row.CleanedQuestion)
	assert.Equal(t, model.NotStarted, row.Tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Read_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT user_id, user_question`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	row, err := s.Read(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}
