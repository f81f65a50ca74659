package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sourceColumns = "id, path, title, auto_scan_enabled, auto_scan_frequency, next_auto_scan_at, consecutive_failures, scan_status, created_at, updated_at"

// AddSource registers a directory for scanning. Frequency is in seconds; nil
// means the source is never automatically due.
func (s *Store) AddSource(ctx context.Context, path, title string, frequency *int) (*WatchedSource, error) {
	timestamp := nowStamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO watched_sources (path, title, auto_scan_enabled, auto_scan_frequency, scan_status, created_at, updated_at)
         VALUES (?, ?, 1, ?, ?, ?, ?)`,
		path,
		nullableString(title),
		nullableInt(frequency),
		ScanIdle,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetSource(ctx, id)
}

// GetSource fetches a watched source by identifier. A missing id yields (nil, nil).
func (s *Store) GetSource(ctx context.Context, id int64) (*WatchedSource, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM watched_sources WHERE id = ?`, id)
	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return source, nil
}

// ListSources returns all watched sources ordered by identifier.
func (s *Store) ListSources(ctx context.Context) ([]*WatchedSource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM watched_sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []*WatchedSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// DueSources returns sources eligible for an automatic scan at the given
// instant: enabled, carrying a frequency, not already scanning, below the
// breaker threshold, and due (or never scanned).
func (s *Store) DueSources(ctx context.Context, now time.Time, failureThreshold int) ([]*WatchedSource, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+sourceColumns+` FROM watched_sources
         WHERE auto_scan_enabled = 1
           AND auto_scan_frequency IS NOT NULL
           AND scan_status != ?
           AND consecutive_failures < ?
           AND (next_auto_scan_at IS NULL OR next_auto_scan_at <= ?)
         ORDER BY id`,
		ScanScanning,
		failureThreshold,
		storedTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("due sources: %w", err)
	}
	defer rows.Close()

	var sources []*WatchedSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// BeginScan claims a source for scanning. The guard on scan_status makes
// concurrent claims (scheduler tick racing a manual trigger) mutually
// exclusive.
func (s *Store) BeginScan(ctx context.Context, id int64) (bool, error) {
	applied, err := s.transition(
		ctx,
		`UPDATE watched_sources SET scan_status = ?, updated_at = ? WHERE id = ? AND scan_status != ?`,
		ScanScanning, nowStamp(), id, ScanScanning,
	)
	if err != nil {
		return false, fmt.Errorf("begin scan: %w", err)
	}
	return applied, nil
}

// CompleteScan records a successful scan: failures reset, status idle, and
// the next due time re-derived from the source's frequency.
func (s *Store) CompleteScan(ctx context.Context, id int64, next *time.Time) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE watched_sources
         SET scan_status = ?, consecutive_failures = 0, next_auto_scan_at = ?, updated_at = ?
         WHERE id = ?`,
		ScanIdle, nullableTime(next), nowStamp(), id,
	)
	if err != nil {
		return fmt.Errorf("complete scan: %w", err)
	}
	return nil
}

// FailScan records a failed scan attempt and returns the new consecutive
// failure count.
func (s *Store) FailScan(ctx context.Context, id int64) (int, error) {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE watched_sources
         SET scan_status = ?, consecutive_failures = consecutive_failures + 1, updated_at = ?
         WHERE id = ?`,
		ScanFailed, nowStamp(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("fail scan: %w", err)
	}
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT consecutive_failures FROM watched_sources WHERE id = ?`, id)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("read failure count: %w", err)
	}
	return count, nil
}

// ResetFailures closes a source's breaker so automatic scans resume.
func (s *Store) ResetFailures(ctx context.Context, id int64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE watched_sources SET consecutive_failures = 0, scan_status = ?, updated_at = ? WHERE id = ?`,
		ScanIdle, nowStamp(), id,
	)
	if err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	return nil
}

// SetAutoScan toggles automatic scanning for a source. Re-enabling also
// closes the breaker, matching the toggle-off/on recovery path.
func (s *Store) SetAutoScan(ctx context.Context, id int64, enabled bool) error {
	query := `UPDATE watched_sources SET auto_scan_enabled = ?, updated_at = ? WHERE id = ?`
	if enabled {
		query = `UPDATE watched_sources SET auto_scan_enabled = ?, consecutive_failures = 0, scan_status = 'idle', updated_at = ? WHERE id = ?`
	}
	if _, err := s.execWithRetry(ctx, query, boolToInt(enabled), nowStamp(), id); err != nil {
		return fmt.Errorf("set auto scan: %w", err)
	}
	return nil
}

func scanSource(scanner interface{ Scan(dest ...any) error }) (*WatchedSource, error) {
	var (
		id          int64
		path        string
		title       sql.NullString
		enabled     sql.NullInt64
		frequency   sql.NullInt64
		nextRaw     sql.NullString
		failures    int
		scanStatus  string
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(&id, &path, &title, &enabled, &frequency, &nextRaw, &failures, &scanStatus, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	source := &WatchedSource{
		ID:                  id,
		Path:                path,
		Title:               title.String,
		AutoScanEnabled:     enabled.Valid && enabled.Int64 != 0,
		ConsecutiveFailures: failures,
		ScanStatus:          ScanStatus(scanStatus),
	}
	if frequency.Valid {
		value := int(frequency.Int64)
		source.AutoScanFrequency = &value
	}
	if nextRaw.Valid {
		if next, err := parseTimeString(nextRaw.String); err == nil {
			source.NextAutoScanAt = &next
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		source.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		source.UpdatedAt = updated
	}
	return source, nil
}
