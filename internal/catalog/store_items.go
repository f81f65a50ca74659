package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const itemColumns = "id, source_id, rel_path, title, description, status, error_message, created_at, updated_at"

// InsertItemIfNew adds an item discovered during a scan. The boolean reports
// whether a new row was created; an already-known rel_path is left untouched.
func (s *Store) InsertItemIfNew(ctx context.Context, sourceID int64, relPath, title string) (*Item, bool, error) {
	timestamp := nowStamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO items (source_id, rel_path, title, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (source_id, rel_path) DO NOTHING`,
		sourceID,
		relPath,
		nullableString(title),
		StatusNotStarted,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}
	item, err := s.GetItem(ctx, id)
	return item, true, err
}

// GetItem fetches an item by identifier. A missing id yields (nil, nil).
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// DeleteItem removes an item outright. Bulk operation snapshots referencing
// the id keep counting it; progress accounting treats the missing row as
// terminal.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// Filter selects items for listing and bulk submission. Zero values mean
// "no constraint".
type Filter struct {
	SourceID           int64
	NameContains       string
	MissingDescription bool
	Status             *Status
}

func (f Filter) clauses() (string, []any) {
	var conds []string
	var args []any
	if f.SourceID > 0 {
		conds = append(conds, "source_id = ?")
		args = append(args, f.SourceID)
	}
	if trimmed := strings.TrimSpace(f.NameContains); trimmed != "" {
		conds = append(conds, "rel_path LIKE ?")
		args = append(args, "%"+trimmed+"%")
	}
	if f.MissingDescription {
		conds = append(conds, "(description IS NULL OR description = '')")
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *f.Status)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListItems returns items matching the filter ordered by identifier.
func (s *Store) ListItems(ctx context.Context, filter Filter) ([]*Item, error) {
	where, args := filter.clauses()
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SelectIDs evaluates a filter once and returns the ordered, deduplicated
// identifier list. This is the snapshot source for bulk operations.
func (s *Store) SelectIDs(ctx context.Context, filter Filter) ([]int64, error) {
	where, args := filter.clauses()
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT id FROM items`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("select ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StatusesByIDs reads the current status of exactly the given identifiers.
// Identifiers unknown to the catalog are absent from the result.
func (s *Store) StatusesByIDs(ctx context.Context, ids []int64) (map[int64]Status, error) {
	result := make(map[int64]Status, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	placeholders := makePlaceholders(len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, status FROM items WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("statuses by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var status Status
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		result[id] = status
	}
	return result, rows.Err()
}

// ItemStats returns aggregated item counts per status.
func (s *Store) ItemStats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM items GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("item stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{PerStatus: make(map[Status]int)}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.PerStatus[status] = count
		stats.Total += count
		switch {
		case status == StatusDone:
			stats.Done += count
		case status == StatusFailed:
			stats.Failed += count
		case status == StatusNotStarted:
			stats.NotStarted += count
		case status.InFlight():
			stats.InFlight += count
		}
	}
	return stats, rows.Err()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		sourceID     int64
		relPath      string
		title        sql.NullString
		description  sql.NullString
		status       int
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(&id, &sourceID, &relPath, &title, &description, &status, &errorMessage, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		SourceID:     sourceID,
		RelPath:      relPath,
		Title:        title.String,
		Description:  description.String,
		Status:       Status(status),
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}
