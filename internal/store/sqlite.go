package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/waterdragen/coverage-cli/internal/model"
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
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	params      TEXT NOT NULL,
	diagnostics TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_regions (
	run_id TEXT NOT NULL REFERENCES runs(id),
	idx    INTEGER NOT NULL,
	geom   BLOB NOT NULL,
	area   REAL NOT NULL,
	PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS scratch_artifacts (
	path       TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_scratch_artifacts_run_id ON scratch_artifacts(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, params, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), string(paramsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) SetRunDiagnostics(ctx context.Context, runID string, d *model.Diagnostics) error {
	diagJSON, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal diagnostics")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET diagnostics = ?, updated_at = ? WHERE id = ?`,
		string(diagJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run diagnostics %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, params, diagnostics, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Errorf("sqlite: run %s not found", runID)
		}
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, params, diagnostics, created_at, updated_at FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run row")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate run rows")
}

func (s *SQLiteStore) SaveRegions(ctx context.Context, runID string, regions []model.CoverageRegion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save regions")
	}
	defer tx.Rollback()

	for _, region := range regions {
		data, err := wkb.Marshal(region.Geometry, wkb.NDR)
		if err != nil {
			return eris.Wrapf(err, "sqlite: encode region %d", region.Index)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_regions (run_id, idx, geom, area) VALUES (?, ?, ?, ?)`,
			runID, region.Index, data, region.Area(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert region %d", region.Index)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit regions")
}

func (s *SQLiteStore) GetRegions(ctx context.Context, runID string) ([]model.CoverageRegion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, geom FROM run_regions WHERE run_id = ? ORDER BY idx`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get regions for run %s", runID)
	}
	defer rows.Close()

	var regions []model.CoverageRegion
	for rows.Next() {
		var (
			idx  int
			data []byte
		)
		if err := rows.Scan(&idx, &data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region row")
		}
		g, err := wkb.Unmarshal(data)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode region %d", idx)
		}
		poly, ok := g.(*geom.Polygon)
		if !ok {
			return nil, eris.Errorf("sqlite: region %d is not a polygon", idx)
		}
		regions = append(regions, model.CoverageRegion{Index: idx, Geometry: poly})
	}
	return regions, eris.Wrap(rows.Err(), "sqlite: iterate region rows")
}

func (s *SQLiteStore) RegisterArtifact(ctx context.Context, runID, path string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO scratch_artifacts (path, run_id, created_at) VALUES (?, ?, ?)`,
		path, runID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: register artifact %s", path)
}

func (s *SQLiteStore) UnregisterArtifact(ctx context.Context, path string) error {
	// Deleting an unknown artifact is not an error; sweeps are idempotent.
	_, err := s.db.ExecContext(ctx, `DELETE FROM scratch_artifacts WHERE path = ?`, path)
	return eris.Wrapf(err, "sqlite: unregister artifact %s", path)
}

func (s *SQLiteStore) ListArtifacts(ctx context.Context) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, run_id, created_at FROM scratch_artifacts ORDER BY created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list artifacts")
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Path, &a.RunID, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan artifact row")
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, eris.Wrap(rows.Err(), "sqlite: iterate artifact rows")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		run        model.Run
		paramsJSON string
		diagJSON   sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Status, &paramsJSON, &diagJSON, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(paramsJSON), &run.Params); err != nil {
		return nil, eris.Wrap(err, "unmarshal params")
	}
	if diagJSON.Valid && diagJSON.String != "" {
		var d model.Diagnostics
		if err := json.Unmarshal([]byte(diagJSON.String), &d); err != nil {
			return nil, eris.Wrap(err, "unmarshal diagnostics")
		}
		run.Diagnostics = &d
	}
	return &run, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", kind, id)
	}
	return nil
}
