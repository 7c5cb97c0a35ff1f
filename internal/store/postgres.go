package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS cssplay_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres stores values in the cssplay_kv table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects using dsn, falling back to DATABASE_URL when dsn is
// empty.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, &BackendError{Backend: "postgres", Op: "connect", Err: errors.New("no DSN configured and DATABASE_URL is not set")}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &BackendError{Backend: "postgres", Op: "open", Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &BackendError{Backend: "postgres", Op: "connect", Err: err, Retryable: true}
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, &BackendError{Backend: "postgres", Op: "migrate", Err: err}
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.QueryRowContext(ctx, "SELECT value FROM cssplay_kv WHERE key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres store: get failed: %w", err)
	}
	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO cssplay_kv (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("postgres store: set failed: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
