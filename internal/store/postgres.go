package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/proth-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
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
	minConns := int32(1)
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	n          TEXT NOT NULL,
	digits     INTEGER NOT NULL,
	verdict    TEXT NOT NULL,
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ecpp_attempts (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	record_id  TEXT NOT NULL REFERENCES records(id),
	seq        INTEGER NOT NULL,
	status     TEXT NOT NULL,
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (record_id, seq)
);

CREATE TABLE IF NOT EXISTS ablation_runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	meta       JSONB NOT NULL,
	pi_a       JSONB NOT NULL,
	pi         JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_verdict ON records(verdict);
CREATE INDEX IF NOT EXISTS idx_records_n ON records(n);
CREATE INDEX IF NOT EXISTS idx_ecpp_attempts_record_id ON ecpp_attempts(record_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, rec *model.CertificationRecord) error {
	body, err := recordBody(rec)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save record")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO records (id, n, digits, verdict, body, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.N.String(), rec.Digits, string(rec.Verdict()), body, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert record %s", rec.ID)
	}
	for i, ext := range rec.ECPP {
		if err := insertAttemptPostgres(ctx, tx, rec.ID, i, ext); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit save record")
}

func insertAttemptPostgres(ctx context.Context, tx pgx.Tx, recordID string, seq int, ext model.ExternalResult) error {
	b, err := json.Marshal(ext)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal ecpp attempt")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO ecpp_attempts (id, record_id, seq, status, body, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), recordID, seq, string(ext.Status), b, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert ecpp attempt for record %s", recordID)
}

func (s *PostgresStore) AppendExternalResult(ctx context.Context, recordID string, res model.ExternalResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin append attempt")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the parent row so concurrent appends get distinct sequence numbers.
	var id string
	err = tx.QueryRow(ctx, `SELECT id FROM records WHERE id = $1 FOR UPDATE`, recordID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "record %s", recordID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: lookup record %s", recordID)
	}

	var seq int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM ecpp_attempts WHERE record_id = $1`, recordID,
	).Scan(&seq); err != nil {
		return eris.Wrap(err, "postgres: next attempt seq")
	}
	if err := insertAttemptPostgres(ctx, tx, recordID, seq, res); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit append attempt")
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.CertificationRecord, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM records WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "record %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}
	rec, err := decodeRecord(body)
	if err != nil {
		return nil, err
	}
	if rec.ECPP, err = s.attempts(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) attempts(ctx context.Context, recordID string) ([]model.ExternalResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT body FROM ecpp_attempts WHERE record_id = $1 ORDER BY seq`, recordID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ecpp attempts")
	}
	defer rows.Close()

	var out []model.ExternalResult
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ecpp attempt")
		}
		var ext model.ExternalResult
		if err := json.Unmarshal(body, &ext); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal ecpp attempt")
		}
		out = append(out, ext)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list ecpp attempts iterate")
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.CertificationRecord, error) {
	query := `SELECT id, body FROM records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Verdict != "" {
		query += fmt.Sprintf(` AND verdict = $%d`, argIdx)
		args = append(args, string(filter.Verdict))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}

	var recs []model.CertificationRecord
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		rec, err := decodeRecord(body)
		if err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, *rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list records iterate")
	}

	for i := range recs {
		if recs[i].ECPP, err = s.attempts(ctx, recs[i].ID); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (s *PostgresStore) SaveAblation(ctx context.Context, run *model.AblationRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	meta, adaptive, plain, err := marshalAblation(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ablation_runs (id, meta, pi_a, pi, created_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, meta, adaptive, plain, run.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert ablation run")
}

func (s *PostgresStore) ListAblations(ctx context.Context, limit int) ([]model.AblationRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, meta, pi_a, pi, created_at FROM ablation_runs ORDER BY created_at DESC, id LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ablations")
	}
	defer rows.Close()

	var runs []model.AblationRun
	for rows.Next() {
		var (
			run                   model.AblationRun
			meta, adaptive, plain []byte
		)
		if err := rows.Scan(&run.ID, &meta, &adaptive, &plain, &run.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ablation run")
		}
		if err := unmarshalAblation(&run, meta, adaptive, plain); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list ablations iterate")
}
