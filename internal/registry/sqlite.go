package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/state"
)

// SQLiteStore persists job checkpoints across restarts. Each Put is a
// whole-row upsert, which keeps the atomic-checkpoint contract.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the registry database with WAL mode.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	stage TEXT NOT NULL,
	state TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, st state.PipelineState) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO jobs (id, status, stage, state, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status = excluded.status,
	stage = excluded.stage,
	state = excluded.state,
	updated_at = excluded.updated_at`,
		st.JobID.String(),
		string(st.Control.Status),
		string(st.Control.Stage),
		string(blob),
		st.CreatedAt.Format(time.RFC3339Nano),
		st.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		s.logger.Error("registry put failed", "job_id", st.JobID, "error", err)
		return err
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, jobID uuid.UUID) (state.PipelineState, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM jobs WHERE id = ?`, jobID.String()).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return state.PipelineState{}, common.ErrJobNotFound
	}
	if err != nil {
		return state.PipelineState{}, err
	}
	var st state.PipelineState
	if err := json.Unmarshal([]byte(blob), &st); err != nil {
		return state.PipelineState{}, fmt.Errorf("unmarshal state: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]state.PipelineState, error) {
	q := `SELECT state FROM jobs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []state.PipelineState
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var st state.PipelineState
		if err := json.Unmarshal([]byte(blob), &st); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, jobID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrJobNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
