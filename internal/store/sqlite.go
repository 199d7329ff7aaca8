package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/askdb/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS user_process_status (
	user_id          TEXT PRIMARY KEY,
	user_question    TEXT NOT NULL DEFAULT 'Not started',
	cleaned_question TEXT NOT NULL DEFAULT 'Not started',
	"tables"         TEXT NOT NULL DEFAULT 'Not started',
	joins            TEXT NOT NULL DEFAULT 'Not started',
	grouping         TEXT NOT NULL DEFAULT 'Not started',
	calculations     TEXT NOT NULL DEFAULT 'Not started',
	filtering        TEXT NOT NULL DEFAULT 'Not started',
	"sql"            TEXT NOT NULL DEFAULT 'Not started',
	last_updated     DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Clear(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_process_status WHERE user_id = ?`, userID)
	return eris.Wrapf(err, "sqlite: clear status %s", userID)
}

func (s *SQLiteStore) Upsert(ctx context.Context, userID string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	names, err := fieldNames(fields)
	if err != nil {
		return err
	}

	cols := []string{"user_id"}
	args := []any{userID}
	sets := make([]string, 0, len(names)+1)
	for _, name := range names {
		col := quoteIdent(name)
		cols = append(cols, col)
		args = append(args, fields[name])
		sets = append(sets, fmt.Sprintf("%[1]s = excluded.%[1]s", col))
	}
	cols = append(cols, "last_updated")
	args = append(args, time.Now().UTC())
	sets = append(sets, "last_updated = excluded.last_updated")

	query := fmt.Sprintf(
		`INSERT INTO user_process_status (%s) VALUES (%s)
		 ON CONFLICT (user_id) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", "),
		strings.Join(sets, ", "),
	)
	_, err = s.db.ExecContext(ctx, query, args...)
	return eris.Wrapf(err, "sqlite: upsert status %s", userID)
}

func (s *SQLiteStore) Read(ctx context.Context, userID string) (*model.StatusRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, user_question, cleaned_question, "tables", joins,
		        grouping, calculations, filtering, "sql", last_updated
		 FROM user_process_status WHERE user_id = ?`,
		userID,
	)

	var r model.StatusRow
	err := row.Scan(&r.UserID, &r.UserQuestion, &r.CleanedQuestion, &r.Tables,
		&r.Joins, &r.Grouping, &r.Calculations, &r.Filtering, &r.SQL, &r.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read status %s", userID)
	}
	return &r, nil
}

// quoteIdent quotes a column name. "tables" and "sql" are reserved words in
// some SQL dialects.
func quoteIdent(name string) string {
	return `"` + name + `"`
}
