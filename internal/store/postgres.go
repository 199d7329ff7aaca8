package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/askdb/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
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
	last_updated     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM user_process_status WHERE user_id = $1`, userID)
	return eris.Wrapf(err, "postgres: clear status %s", userID)
}

func (s *PostgresStore) Upsert(ctx context.Context, userID string, fields map[string]string) error {
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

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		`INSERT INTO user_process_status (%s) VALUES (%s)
		 ON CONFLICT (user_id) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(sets, ", "),
	)
	_, err = s.pool.Exec(ctx, query, args...)
	return eris.Wrapf(err, "postgres: upsert status %s", userID)
}

func (s *PostgresStore) Read(ctx context.Context, userID string) (*model.StatusRow, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT user_id, user_question, cleaned_question, "tables", joins,
		        grouping, calculations, filtering, "sql", last_updated
		 FROM user_process_status WHERE user_id = $1`,
		userID,
	)

	var r model.StatusRow
	err := row.Scan(&r.UserID, &r.UserQuestion, &r.CleanedQuestion, &r.Tables,
		&r.Joins, &r.Grouping, &r.Calculations, &r.Filtering, &r.SQL, &r.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: read status %s", userID)
	}
	return &r, nil
}
