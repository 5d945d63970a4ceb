package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/proth-cli/internal/model"
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	n          TEXT NOT NULL,
	digits     INTEGER NOT NULL,
	verdict    TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ecpp_attempts (
	id         TEXT PRIMARY KEY,
	record_id  TEXT NOT NULL REFERENCES records(id),
	seq        INTEGER NOT NULL,
	status     TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (record_id, seq)
);

CREATE TABLE IF NOT EXISTS ablation_runs (
	id         TEXT PRIMARY KEY,
	meta       TEXT NOT NULL,
	pi_a       TEXT NOT NULL,
	pi         TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_verdict ON records(verdict);
CREATE INDEX IF NOT EXISTS idx_records_n ON records(n);
CREATE INDEX IF NOT EXISTS idx_ecpp_attempts_record_id ON ecpp_attempts(record_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *model.CertificationRecord) error {
	body, err := recordBody(rec)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save record")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (id, n, digits, verdict, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.N.String(), rec.Digits, string(rec.Verdict()), string(body), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert record %s", rec.ID)
	}
	for i, ext := range rec.ECPP {
		if err := insertAttemptSQLite(ctx, tx, rec.ID, i, ext); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save record")
}

func insertAttemptSQLite(ctx context.Context, tx *sql.Tx, recordID string, seq int, ext model.ExternalResult) error {
	b, err := json.Marshal(ext)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal ecpp attempt")
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO ecpp_attempts (id, record_id, seq, status, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), recordID, seq, string(ext.Status), string(b), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert ecpp attempt for record %s", recordID)
}

func (s *SQLiteStore) AppendExternalResult(ctx context.Context, recordID string, res model.ExternalResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin append attempt")
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM records WHERE id = ?`, recordID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "record %s", recordID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: lookup record %s", recordID)
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM ecpp_attempts WHERE record_id = ?`, recordID,
	).Scan(&seq); err != nil {
		return eris.Wrap(err, "sqlite: next attempt seq")
	}
	if err := insertAttemptSQLite(ctx, tx, recordID, seq, res); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit append attempt")
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.CertificationRecord, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM records WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "record %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", id)
	}
	rec, err := decodeRecord([]byte(body))
	if err != nil {
		return nil, err
	}
	if rec.ECPP, err = s.attempts(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) attempts(ctx context.Context, recordID string) ([]model.ExternalResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM ecpp_attempts WHERE record_id = ? ORDER BY seq`, recordID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ecpp attempts")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ExternalResult
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ecpp attempt")
		}
		var ext model.ExternalResult
		if err := json.Unmarshal([]byte(body), &ext); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal ecpp attempt")
		}
		out = append(out, ext)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list ecpp attempts iterate")
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.CertificationRecord, error) {
	query := `SELECT id, body FROM records WHERE 1=1`
	var args []any

	if filter.Verdict != "" {
		query += ` AND verdict = ?`
		args = append(args, string(filter.Verdict))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}

	var recs []model.CertificationRecord
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			rows.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		rec, err := decodeRecord([]byte(body))
		if err != nil {
			rows.Close() //nolint:errcheck
			return nil, err
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: list records iterate")
	}
	rows.Close() //nolint:errcheck

	// Attempts are loaded after the cursor is released.
	for i := range recs {
		if recs[i].ECPP, err = s.attempts(ctx, recs[i].ID); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (s *SQLiteStore) SaveAblation(ctx context.Context, run *model.AblationRun) error {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ablation_runs (id, meta, pi_a, pi, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(meta), string(adaptive), string(plain), run.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert ablation run")
}

func (s *SQLiteStore) ListAblations(ctx context.Context, limit int) ([]model.AblationRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, meta, pi_a, pi, created_at FROM ablation_runs ORDER BY created_at DESC, id LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ablations")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.AblationRun
	for rows.Next() {
		var (
			run                   model.AblationRun
			meta, adaptive, plain string
		)
		if err := rows.Scan(&run.ID, &meta, &adaptive, &plain, &run.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ablation run")
		}
		if err := unmarshalAblation(&run, []byte(meta), []byte(adaptive), []byte(plain)); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list ablations iterate")
}

func marshalAblation(run *model.AblationRun) (meta, adaptive, plain []byte, err error) {
	if meta, err = json.Marshal(run.Meta); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal ablation meta")
	}
	if adaptive, err = json.Marshal(run.Adaptive); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal pi_a metrics")
	}
	if plain, err = json.Marshal(run.Plain); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal pi metrics")
	}
	return meta, adaptive, plain, nil
}

func unmarshalAblation(run *model.AblationRun, meta, adaptive, plain []byte) error {
	if err := json.Unmarshal(meta, &run.Meta); err != nil {
		return eris.Wrap(err, "store: unmarshal ablation meta")
	}
	if err := json.Unmarshal(adaptive, &run.Adaptive); err != nil {
		return eris.Wrap(err, "store: unmarshal pi_a metrics")
	}
	if err := json.Unmarshal(plain, &run.Plain); err != nil {
		return eris.Wrap(err, "store: unmarshal pi metrics")
	}
	return nil
}
