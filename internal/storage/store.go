package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/devblac/dex-catalog/internal/report"
)

// Store is the SQLite run ledger: run summaries, adapter outcomes,
// conflicts, the currently published artifacts and notification sends.
type Store struct {
	db *sql.DB
}

// Open initializes a SQLite database and runs minimal schema setup.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.PingContext(ctx)
}

func configure(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id           TEXT PRIMARY KEY,
  started_at   TIMESTAMP NOT NULL,
  finished_at  TIMESTAMP NOT NULL,
  dry_run      INTEGER NOT NULL,
  status       TEXT NOT NULL,
  fetched      INTEGER NOT NULL,
  normalized   INTEGER NOT NULL,
  dropped      INTEGER NOT NULL,
  overrides    INTEGER NOT NULL,
  conflicts    INTEGER NOT NULL,
  written      INTEGER NOT NULL,
  unchanged    INTEGER NOT NULL,
  removed      INTEGER NOT NULL,
  failed       INTEGER NOT NULL,
  report_json  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS adapter_runs (
  run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  adapter_id  TEXT NOT NULL,
  status      TEXT NOT NULL,
  attempts    INTEGER NOT NULL,
  records     INTEGER NOT NULL,
  error_kind  TEXT,
  error       TEXT,
  PRIMARY KEY(run_id, adapter_id)
);

CREATE TABLE IF NOT EXISTS conflicts (
  run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  merge_key    TEXT NOT NULL,
  protocol     TEXT NOT NULL,
  chain_id     INTEGER NOT NULL,
  contract     TEXT NOT NULL,
  claims_json  TEXT NOT NULL,
  PRIMARY KEY(run_id, merge_key)
);

CREATE TABLE IF NOT EXISTS artifacts (
  protocol    TEXT NOT NULL,
  chain_id    INTEGER NOT NULL,
  path        TEXT NOT NULL,
  cid         TEXT NOT NULL,
  run_id      TEXT NOT NULL,
  updated_at  TIMESTAMP NOT NULL,
  PRIMARY KEY(protocol, chain_id)
);

CREATE TABLE IF NOT EXISTS sends (
  run_id        TEXT NOT NULL,
  sink_id       TEXT NOT NULL,
  status        TEXT NOT NULL,
  response_code INTEGER,
  created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(run_id, sink_id)
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RecordRun stores a finished run atomically. Dry runs are recorded but do
// not touch the published artifact table.
func (s *Store) RecordRun(ctx context.Context, r *report.Report) error {
	if r == nil || r.RunID == "" {
		return errors.New("run id required")
	}
	full, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO runs (id, started_at, finished_at, dry_run, status, fetched, normalized, dropped,
  overrides, conflicts, written, unchanged, removed, failed, report_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, r.RunID, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.DryRun, r.Status(),
			r.Records.Fetched, r.Records.Normalized, r.Records.Dropped,
			len(r.Overrides), len(r.Conflicts),
			r.Files.Written, r.Files.Unchanged, r.Files.Removed, r.Files.Failed, string(full))
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, a := range r.Adapters {
			_, err := tx.ExecContext(ctx, `
INSERT INTO adapter_runs (run_id, adapter_id, status, attempts, records, error_kind, error)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, r.RunID, a.ID, a.Status, a.Attempts, a.Records, nullString(string(a.ErrorKind)), nullString(a.Error))
			if err != nil {
				return fmt.Errorf("insert adapter run %s: %w", a.ID, err)
			}
		}

		for _, c := range r.Conflicts {
			claims, err := json.Marshal(c.Claims)
			if err != nil {
				return fmt.Errorf("encode claims: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
INSERT INTO conflicts (run_id, merge_key, protocol, chain_id, contract, claims_json)
VALUES (?, ?, ?, ?, ?, ?);
`, r.RunID, c.Key, c.Protocol, uint64(c.ChainID), c.Contract, string(claims))
			if err != nil {
				return fmt.Errorf("insert conflict %s: %w", c.Key, err)
			}
		}

		if r.DryRun {
			return nil
		}
		return recordArtifacts(ctx, tx, r)
	})
}

func recordArtifacts(ctx context.Context, tx *sql.Tx, r *report.Report) error {
	for _, f := range r.FileResults {
		if f.Protocol == "" {
			continue
		}
		switch f.Status {
		case "written", "unchanged", "kept":
			if f.CID == "" {
				continue
			}
			_, err := tx.ExecContext(ctx, `
INSERT INTO artifacts (protocol, chain_id, path, cid, run_id, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(protocol, chain_id) DO UPDATE SET
  path=excluded.path,
  run_id=CASE WHEN artifacts.cid = excluded.cid THEN artifacts.run_id ELSE excluded.run_id END,
  updated_at=CASE WHEN artifacts.cid = excluded.cid THEN artifacts.updated_at ELSE excluded.updated_at END,
  cid=excluded.cid;
`, f.Protocol, uint64(f.ChainID), f.Path, f.CID, r.RunID, r.FinishedAt.UTC())
			if err != nil {
				return fmt.Errorf("upsert artifact %s: %w", f.Path, err)
			}
		case "removed":
			if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE protocol = ? AND chain_id = ?;`, f.Protocol, uint64(f.ChainID)); err != nil {
				return fmt.Errorf("delete artifact %s: %w", f.Path, err)
			}
		}
	}
	return nil
}

// Run is one row of the run ledger.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Status     string
	Fetched    int
	Normalized int
	Dropped    int
	Overrides  int
	Conflicts  int
	Written    int
	Unchanged  int
	Removed    int
	Failed     int
}

// LatestRuns returns up to limit runs, newest first.
func (s *Store) LatestRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, finished_at, dry_run, status, fetched, normalized, dropped,
  overrides, conflicts, written, unchanged, removed, failed
FROM runs ORDER BY started_at DESC, id DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DryRun, &r.Status, &r.Fetched, &r.Normalized, &r.Dropped,
			&r.Overrides, &r.Conflicts, &r.Written, &r.Unchanged, &r.Removed, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestReport returns the full report of the newest run.
func (s *Store) LatestReport(ctx context.Context) (*report.Report, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
SELECT report_json FROM runs ORDER BY started_at DESC, id DESC LIMIT 1;
`).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("latest report: %w", err)
	}
	var r report.Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, false, fmt.Errorf("decode report: %w", err)
	}
	return &r, true, nil
}

// AdapterRun is the outcome of one adapter within a run.
type AdapterRun struct {
	RunID     string
	AdapterID string
	Status    string
	Attempts  int
	Records   int
	ErrorKind string
	Error     string
}

// AdapterRuns returns the adapter outcomes of a run ordered by adapter id.
func (s *Store) AdapterRuns(ctx context.Context, runID string) ([]AdapterRun, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, adapter_id, status, attempts, records, COALESCE(error_kind, ''), COALESCE(error, '')
FROM adapter_runs WHERE run_id = ? ORDER BY adapter_id;
`, runID)
	if err != nil {
		return nil, fmt.Errorf("query adapter runs: %w", err)
	}
	defer rows.Close()

	var out []AdapterRun
	for rows.Next() {
		var a AdapterRun
		if err := rows.Scan(&a.RunID, &a.AdapterID, &a.Status, &a.Attempts, &a.Records, &a.ErrorKind, &a.Error); err != nil {
			return nil, fmt.Errorf("scan adapter run: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ConflictRow is a conflict recorded for a run.
type ConflictRow struct {
	RunID    string
	Key      string
	Protocol string
	ChainID  uint64
	Contract string
	Claims   []report.Claim
}

// Conflicts returns the conflicts of a run. An empty runID selects the
// newest run.
func (s *Store) Conflicts(ctx context.Context, runID string) ([]ConflictRow, error) {
	if runID == "" {
		err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT 1;`).Scan(&runID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("latest run id: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, merge_key, protocol, chain_id, contract, claims_json
FROM conflicts WHERE run_id = ? ORDER BY merge_key;
`, runID)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	defer rows.Close()

	var out []ConflictRow
	for rows.Next() {
		var (
			c      ConflictRow
			claims string
		)
		if err := rows.Scan(&c.RunID, &c.Key, &c.Protocol, &c.ChainID, &c.Contract, &claims); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		if err := json.Unmarshal([]byte(claims), &c.Claims); err != nil {
			return nil, fmt.Errorf("decode claims: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Artifact is a currently published artifact.
type Artifact struct {
	Protocol  string
	ChainID   uint64
	Path      string
	CID       string
	RunID     string
	UpdatedAt time.Time
}

// Artifacts returns the published artifacts ordered by protocol and chain.
func (s *Store) Artifacts(ctx context.Context) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT protocol, chain_id, path, cid, run_id, updated_at FROM artifacts ORDER BY protocol, chain_id;
`)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Protocol, &a.ChainID, &a.Path, &a.CID, &a.RunID, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Send represents a notification delivery record.
type Send struct {
	RunID        string
	SinkID       string
	Status       string
	ResponseCode int
	CreatedAt    time.Time
}

// InsertSend records a sink delivery attempt; primary key enforces one send per run and sink.
func (s *Store) InsertSend(ctx context.Context, srec Send) error {
	if srec.RunID == "" || srec.SinkID == "" || srec.Status == "" {
		return errors.New("run_id, sink_id, and status are required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sends (run_id, sink_id, status, response_code, created_at)
VALUES (?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP));
`, srec.RunID, srec.SinkID, srec.Status, srec.ResponseCode, nullTime(srec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert send: %w", err)
	}
	return nil
}

// WithTx executes a callback inside a transaction for callers needing atomicity.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
