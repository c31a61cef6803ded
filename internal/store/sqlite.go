package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/relay/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, manifest, parallel_limit, status, total, passed, failed, fatal, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Manifest, run.ParallelLimit, string(run.Status),
		run.Total, run.Passed, run.Failed, run.Fatal,
		formatTime(run.StartedAt), formatTimePtr(run.FinishedAt),
	)
	return err
}

// FinishRun records the final status and counts of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", run.ID, "status", run.Status)

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, total = ?, passed = ?, failed = ?, fatal = ?, finished_at = ?
		 WHERE id = ?`,
		string(run.Status), run.Total, run.Passed, run.Failed, run.Fatal,
		formatTimePtr(run.FinishedAt), run.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

const runColumns = `id, manifest, parallel_limit, status, total, passed, failed, fatal, started_at, finished_at`

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	opts.Clamp()
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// --- Units ---

// UpsertUnit inserts the unit or replaces its published state.
func (s *SQLiteStore) UpsertUnit(ctx context.Context, u *model.UnitRecord) error {
	s.logger.Debug("sql", "op", "upsert", "table", "units", "run_id", u.RunID, "name", u.Name, "status", u.Status)

	var result *string
	if u.Result != nil {
		r := string(*u.Result)
		result = &r
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO units (run_id, name, status, result, depends_on, delay_minutes, skipped_by, duration_ms, updated_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, name) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			depends_on = excluded.depends_on,
			delay_minutes = excluded.delay_minutes,
			skipped_by = excluded.skipped_by,
			duration_ms = excluded.duration_ms,
			updated_at = excluded.updated_at,
			finished_at = excluded.finished_at`,
		u.RunID, u.Name, string(u.Status), result, u.DependsOn, u.DelayMinutes, u.SkippedBy,
		u.DurationMs, formatTime(u.UpdatedAt), formatTimePtr(u.FinishedAt),
	)
	return err
}

const unitColumns = `run_id, name, status, result, depends_on, delay_minutes, skipped_by, duration_ms, updated_at, finished_at`

func (s *SQLiteStore) GetUnit(ctx context.Context, runID, name string) (*model.UnitRecord, error) {
	s.logger.Debug("sql", "op", "select", "table", "units", "run_id", runID, "name", name)

	u, err := scanUnit(s.db.QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM units WHERE run_id = ? AND name = ?`, runID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// ListUnits returns the units of a run ordered by name.
func (s *SQLiteStore) ListUnits(ctx context.Context, runID string) ([]*model.UnitRecord, error) {
	s.logger.Debug("sql", "op", "list", "table", "units", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM units WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*model.UnitRecord
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// --- Helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.Run, error) {
	var run model.Run
	var status, startedAt string
	var finishedAt *string
	if err := row.Scan(&run.ID, &run.Manifest, &run.ParallelLimit, &status,
		&run.Total, &run.Passed, &run.Failed, &run.Fatal, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	run.FinishedAt = parseTimePtr(finishedAt)
	return &run, nil
}

func scanUnit(row scanner) (*model.UnitRecord, error) {
	var u model.UnitRecord
	var status, updatedAt string
	var result, finishedAt *string
	if err := row.Scan(&u.RunID, &u.Name, &status, &result, &u.DependsOn, &u.DelayMinutes,
		&u.SkippedBy, &u.DurationMs, &updatedAt, &finishedAt); err != nil {
		return nil, err
	}
	u.Status = model.Status(status)
	if result != nil {
		r := model.Result(*result)
		u.Result = &r
	}
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	u.FinishedAt = parseTimePtr(finishedAt)
	return &u, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}
