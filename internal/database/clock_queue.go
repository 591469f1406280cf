package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shiftclock/internal/models"
)

// newEntryID derives a queue-local id from the employee and the punch time.
// It is never a server id; the remote system assigns its own on delivery.
func newEntryID(employeeID string, ts time.Time) string {
	return fmt.Sprintf("%s_%d", employeeID, ts.UnixNano())
}

// AppendEntry persists a new pending punch and returns its id. Attempts start
// at zero and last_attempt is set to now.
func (db *DB) AppendEntry(ctx context.Context, employeeID, employeeName string, action models.ClockAction, timestamp time.Time) (string, error) {
	if !action.Valid() {
		return "", fmt.Errorf("invalid clock action: %q", action)
	}

	id := newEntryID(employeeID, timestamp)
	query := `INSERT INTO clock_queue (id, employee_id, employee_name, expected_action, timestamp, attempts, last_attempt, last_error)
              VALUES (?, ?, ?, ?, ?, 0, ?, NULL)`
	_, err := db.db.ExecContext(ctx, query, id, employeeID, employeeName, string(action), timestamp, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to append queue entry: %w", err)
	}
	return id, nil
}

// ListEntries returns a snapshot of all pending punches, oldest first.
func (db *DB) ListEntries(ctx context.Context) ([]models.QueuedClockEntry, error) {
	query := `SELECT id, employee_id, employee_name, expected_action, timestamp, attempts, last_attempt, last_error
              FROM clock_queue ORDER BY timestamp ASC`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueuedClockEntry
	for rows.Next() {
		var e models.QueuedClockEntry
		var action string
		err := rows.Scan(&e.ID, &e.EmployeeID, &e.EmployeeName, &action, &e.Timestamp, &e.Attempts, &e.LastAttempt, &e.LastError)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		e.ExpectedAction = models.ClockAction(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queue entries: %w", err)
	}
	return entries, nil
}

// CountEntries returns the queue cardinality without materializing rows.
func (db *DB) CountEntries(ctx context.Context) (int, error) {
	var count int
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clock_queue`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return count, nil
}

// UpdateEntryAttempt records the outcome of one delivery attempt. Updating an
// absent id reports ErrEntryNotFound: the caller only ever updates ids it has
// just listed, so absence signals a logic error upstream.
func (db *DB) UpdateEntryAttempt(ctx context.Context, id string, attempts int, lastAttempt time.Time, lastError string) error {
	var errVal sql.NullString
	if lastError != "" {
		errVal = sql.NullString{String: lastError, Valid: true}
	}

	query := `UPDATE clock_queue SET attempts = ?, last_attempt = ?, last_error = ? WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query, attempts, lastAttempt, errVal, id)
	if err != nil {
		return fmt.Errorf("failed to update queue entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update %s: %w", id, ErrEntryNotFound)
	}
	return nil
}

// RemoveEntry deletes a delivered punch. Removing an id that is already gone
// is a no-op, since success confirmation can be retried.
func (db *DB) RemoveEntry(ctx context.Context, id string) error {
	_, err := db.db.ExecContext(ctx, `DELETE FROM clock_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove queue entry: %w", err)
	}
	return nil
}

// ClearEntries empties the queue. Administrative use only.
func (db *DB) ClearEntries(ctx context.Context) error {
	_, err := db.db.ExecContext(ctx, `DELETE FROM clock_queue`)
	if err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}
