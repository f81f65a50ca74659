package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Bulk operation records are stored as opaque JSON payloads keyed by the
// requesting session's token. The catalog does not interpret the payload;
// internal/bulkops owns its shape.

// SaveBulkOperation stores (or replaces) the session's outstanding operation record.
func (s *Store) SaveBulkOperation(ctx context.Context, sessionToken, payload string) error {
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO bulk_operations (session_token, payload, updated_at) VALUES (?, ?, ?)
         ON CONFLICT (session_token) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		sessionToken, payload, nowStamp(),
	)
	if err != nil {
		return fmt.Errorf("save bulk operation: %w", err)
	}
	return nil
}

// LoadBulkOperation returns the session's operation record, if any.
func (s *Store) LoadBulkOperation(ctx context.Context, sessionToken string) (string, bool, error) {
	var payload string
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM bulk_operations WHERE session_token = ?`, sessionToken)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load bulk operation: %w", err)
	}
	return payload, true, nil
}

// DeleteBulkOperation clears the session's operation record.
func (s *Store) DeleteBulkOperation(ctx context.Context, sessionToken string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM bulk_operations WHERE session_token = ?`, sessionToken); err != nil {
		return fmt.Errorf("delete bulk operation: %w", err)
	}
	return nil
}
