package resultstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sungwon/mailjobs/internal/job"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewPool creates a database connection pool and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string, minConns, maxConns int32, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	config.MinConns = minConns
	config.MaxConns = maxConns
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PostgresStore keeps job records in the jobs table.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Migrate applies every embedded up migration in name order. The migrations
// are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
	}
	return nil
}

const createJobSQL = `
INSERT INTO jobs (id, kind, payload, status, correlation_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`

// Create inserts a new job row.
func (s *PostgresStore) Create(ctx context.Context, j *job.Job) error {
	tag, err := s.pool.Exec(ctx, createJobSQL,
		j.ID, string(j.Kind), string(j.Payload), string(j.Status), j.CorrelationID, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", j.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert job %s: %w", j.ID, ErrExists)
	}
	return nil
}

const getJobSQL = `
SELECT kind, payload, status, result, error, correlation_id, created_at, started_at, finished_at
FROM jobs WHERE id = $1`

// Get reads one job row.
func (s *PostgresStore) Get(ctx context.Context, id string) (*job.Job, error) {
	var (
		j       = job.Job{ID: id}
		kind    string
		status  string
		payload []byte
		result  *string
	)
	err := s.pool.QueryRow(ctx, getJobSQL, id).Scan(
		&kind, &payload, &status, &result, &j.Error, &j.CorrelationID,
		&j.CreatedAt, &j.StartedAt, &j.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select job %s: %w", id, err)
	}

	j.Kind = job.Kind(kind)
	j.Status = job.Status(status)
	j.Payload = json.RawMessage(payload)
	if result != nil {
		j.Result = json.RawMessage(*result)
	}
	return &j, nil
}

const (
	claimJobSQL = `
UPDATE jobs SET status = $3, started_at = $4
WHERE id = $1 AND status = $2`

	finishJobSQL = `
UPDATE jobs SET status = $3, finished_at = $4, result = $5, error = $6
WHERE id = $1 AND status = $2`
)

// SetStatus updates the row only while it still holds status from.
func (s *PostgresStore) SetStatus(ctx context.Context, id string, from, to job.Status, result json.RawMessage, errMsg string) error {
	if !job.CanTransition(from, to) {
		return fmt.Errorf("job %s: illegal transition %s -> %s: %w", id, from, to, ErrConflict)
	}

	var err error
	var affected int64
	if to.Terminal() {
		var res *string
		if result != nil {
			r := string(result)
			res = &r
		}
		tag, execErr := s.pool.Exec(ctx, finishJobSQL, id, string(from), string(to), s.now(), res, errMsg)
		err, affected = execErr, tag.RowsAffected()
	} else {
		tag, execErr := s.pool.Exec(ctx, claimJobSQL, id, string(from), string(to), s.now())
		err, affected = execErr, tag.RowsAffected()
	}
	if err != nil {
		if isInvalidUUID(err) {
			return ErrNotFound
		}
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check job %s: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return fmt.Errorf("job %s is not %s: %w", id, from, ErrConflict)
}

// Purge deletes terminal jobs that finished before the cutoff and returns
// how many rows were removed.
func (s *PostgresStore) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE status IN ('succeeded', 'failed') AND finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes all connections in the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// isInvalidUUID reports whether Postgres rejected the id as malformed input
// (SQLSTATE 22P02). Such ids can never exist.
func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
