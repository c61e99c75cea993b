package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs the application's statements against a DBTX.
type Queries struct {
	db DBTX
}

// New creates queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Run is one workflow run.
type Run struct {
	ID         string
	Workflow   string
	Status     string
	Input      string
	Result     sql.NullString
	Error      sql.NullString
	Permanent  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt sql.NullTime
}

const runColumns = `id, workflow, status, input, result, error, permanent, created_at, updated_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r                    Run
		permanent            int64
		createdAt, updatedAt int64
		finishedAt           sql.NullInt64
	)
	err := row.Scan(
		&r.ID,
		&r.Workflow,
		&r.Status,
		&r.Input,
		&r.Result,
		&r.Error,
		&permanent,
		&createdAt,
		&updatedAt,
		&finishedAt,
	)
	if err != nil {
		return Run{}, err
	}

	r.Permanent = permanent != 0
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	r.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if finishedAt.Valid {
		r.FinishedAt = sql.NullTime{Time: time.UnixMilli(finishedAt.Int64).UTC(), Valid: true}
	}
	return r, nil
}

// CreateRunParams holds parameters for CreateRun.
type CreateRunParams struct {
	ID        string
	Workflow  string
	Input     string
	CreatedAt time.Time
}

const createRun = `
INSERT INTO runs (id, workflow, status, input, created_at, updated_at)
VALUES (?, ?, 'running', ?, ?, ?)
RETURNING ` + runColumns

// CreateRun inserts a run in the running state.
func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (Run, error) {
	at := arg.CreatedAt.UnixMilli()
	row := q.db.QueryRowContext(ctx, createRun, arg.ID, arg.Workflow, arg.Input, at, at)
	return scanRun(row)
}

// CompleteRunParams holds parameters for CompleteRun.
type CompleteRunParams struct {
	ID         string
	Result     string
	FinishedAt time.Time
}

const completeRun = `
UPDATE runs
SET status = 'succeeded', result = ?, updated_at = ?, finished_at = ?
WHERE id = ? AND status = 'running'`

// CompleteRun marks a running run as succeeded.
func (q *Queries) CompleteRun(ctx context.Context, arg CompleteRunParams) error {
	at := arg.FinishedAt.UnixMilli()
	res, err := q.db.ExecContext(ctx, completeRun, arg.Result, at, at, arg.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res, arg.ID)
}

// FailRunParams holds parameters for FailRun.
type FailRunParams struct {
	ID         string
	Error      string
	Permanent  bool
	FinishedAt time.Time
}

const failRun = `
UPDATE runs
SET status = 'failed', error = ?, permanent = ?, updated_at = ?, finished_at = ?
WHERE id = ? AND status = 'running'`

// FailRun marks a running run as failed.
func (q *Queries) FailRun(ctx context.Context, arg FailRunParams) error {
	at := arg.FinishedAt.UnixMilli()
	res, err := q.db.ExecContext(ctx, failRun, arg.Error, boolToInt(arg.Permanent), at, at, arg.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res, arg.ID)
}

const getRun = `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

// GetRun returns a run by ID, or sql.ErrNoRows.
func (q *Queries) GetRun(ctx context.Context, id string) (Run, error) {
	return scanRun(q.db.QueryRowContext(ctx, getRun, id))
}

// ListRunsParams filters ListRuns. Empty fields match everything.
type ListRunsParams struct {
	Workflow string
	Status   string
	Limit    int
}

// ListRuns returns runs newest first.
func (q *Queries) ListRuns(ctx context.Context, arg ListRunsParams) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if arg.Workflow != "" {
		where = append(where, "workflow = ?")
		args = append(args, arg.Workflow)
	}
	if arg.Status != "" {
		where = append(where, "status = ?")
		args = append(args, arg.Status)
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := arg.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

const countRunsByStatus = `SELECT status, COUNT(*) FROM runs GROUP BY status`

// CountRunsByStatus returns the number of runs in each status.
func (q *Queries) CountRunsByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, countRunsByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{
		RunStatusRunning:   0,
		RunStatusSucceeded: 0,
		RunStatusFailed:    0,
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

const failInterruptedRuns = `
UPDATE runs
SET status = 'failed', error = ?, permanent = 1, updated_at = ?, finished_at = ?
WHERE status = 'running'`

// FailInterruptedRuns fails every run still marked running. It is called at
// startup, when no run can be in flight.
func (q *Queries) FailInterruptedRuns(ctx context.Context, reason string, at time.Time) (int64, error) {
	ms := at.UnixMilli()
	res, err := q.db.ExecContext(ctx, failInterruptedRuns, reason, ms, ms)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("run %s is not running", id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
