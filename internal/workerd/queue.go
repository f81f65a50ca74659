package workerd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Job is one queued captioning request.
type Job struct {
	ID         int64
	ItemID     int64
	SourcePath string
	Model      string
	RetryCount int
}

// JobQueue persists pending jobs so the worker survives restarts with its
// backlog intact.
type JobQueue struct {
	db *sql.DB
}

// OpenQueue initializes the job database at the given path.
func OpenQueue(path string) (*JobQueue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open job db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS jobs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        item_id INTEGER NOT NULL,
        source_path TEXT NOT NULL,
        model TEXT NOT NULL,
        retry_count INTEGER NOT NULL DEFAULT 0
    )`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}
	return &JobQueue{db: db}, nil
}

// Close closes the underlying database connection.
func (q *JobQueue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}

// Enqueue appends a job to the FIFO queue.
func (q *JobQueue) Enqueue(ctx context.Context, itemID int64, sourcePath, model string) (int64, error) {
	res, err := q.db.ExecContext(
		ctx,
		`INSERT INTO jobs (item_id, source_path, model) VALUES (?, ?, ?)`,
		itemID, sourcePath, model,
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Next returns the oldest pending job, or nil when the queue is empty.
func (q *JobQueue) Next(ctx context.Context) (*Job, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, item_id, source_path, model, retry_count FROM jobs ORDER BY id LIMIT 1`)
	var job Job
	if err := row.Scan(&job.ID, &job.ItemID, &job.SourcePath, &job.Model, &job.RetryCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next job: %w", err)
	}
	return &job, nil
}

// Delete removes a job by its queue identifier.
func (q *JobQueue) Delete(ctx context.Context, jobID int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// RemoveByItem drops every queued job for the given item. It reports how many
// jobs were removed; zero is not an error (cancel is idempotent).
func (q *JobQueue) RemoveByItem(ctx context.Context, itemID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM jobs WHERE item_id = ?`, itemID)
	if err != nil {
		return 0, fmt.Errorf("remove jobs for item: %w", err)
	}
	return res.RowsAffected()
}

// IncrementRetry bumps a job's retry counter and returns the new count.
func (q *JobQueue) IncrementRetry(ctx context.Context, jobID int64) (int, error) {
	if _, err := q.db.ExecContext(ctx, `UPDATE jobs SET retry_count = retry_count + 1 WHERE id = ?`, jobID); err != nil {
		return 0, fmt.Errorf("increment retry: %w", err)
	}
	var count int
	row := q.db.QueryRowContext(ctx, `SELECT retry_count FROM jobs WHERE id = ?`, jobID)
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read retry count: %w", err)
	}
	return count, nil
}

// Depth returns the number of pending jobs.
func (q *JobQueue) Depth(ctx context.Context) (int, error) {
	var count int
	row := q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return count, nil
}
