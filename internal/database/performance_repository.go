package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"stagehall/models"
)

var ErrPerformanceNotFound = errors.New("performance not found")

// PerformanceRepository handles persistence of performances.
type PerformanceRepository struct {
	conn *sql.DB
}

// NewPerformanceRepository creates a performance repository backed by conn.
func NewPerformanceRepository(conn *sql.DB) *PerformanceRepository {
	return &PerformanceRepository{conn: conn}
}

// List returns every performance ordered by time.
func (r *PerformanceRepository) List(ctx context.Context) ([]models.Performance, error) {
	return r.query(ctx, `SELECT id, show_id, time, external_event_id FROM performances ORDER BY time`)
}

// ListByShow returns a show's performances ordered by time.
func (r *PerformanceRepository) ListByShow(ctx context.Context, showID string) ([]models.Performance, error) {
	return r.query(ctx, `SELECT id, show_id, time, external_event_id FROM performances WHERE show_id = ? ORDER BY time`, showID)
}

// ListUpcoming returns performances at or after the given instant.
func (r *PerformanceRepository) ListUpcoming(ctx context.Context, from time.Time) ([]models.Performance, error) {
	return r.query(ctx, `SELECT id, show_id, time, external_event_id FROM performances WHERE time >= ? ORDER BY time`, from.UTC())
}

// BulkInsert writes the given performances in one transaction, assigning
// ids as needed, and returns the number inserted.
func (r *PerformanceRepository) BulkInsert(ctx context.Context, perfs []models.Performance) (int, error) {
	if len(perfs) == 0 {
		return 0, nil
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert performances: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO performances (id, show_id, time, external_event_id)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("insert performances: %w", err)
	}
	defer stmt.Close()

	for i := range perfs {
		if perfs[i].ID == "" {
			perfs[i].ID = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, perfs[i].ID, perfs[i].ShowID,
			perfs[i].Time.UTC(), perfs[i].ExternalEventID); err != nil {
			return 0, fmt.Errorf("insert performance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert performances: %w", err)
	}
	return len(perfs), nil
}

// Update rewrites an existing performance row.
func (r *PerformanceRepository) Update(ctx context.Context, perf models.Performance) error {
	res, err := r.conn.ExecContext(ctx, `
		UPDATE performances SET show_id = ?, time = ?, external_event_id = ? WHERE id = ?`,
		perf.ShowID, perf.Time.UTC(), perf.ExternalEventID, perf.ID)
	if err != nil {
		return fmt.Errorf("update performance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update performance: %w", err)
	}
	if n == 0 {
		return ErrPerformanceNotFound
	}
	return nil
}

// DeleteByShowIDs removes every performance of the given shows and returns
// the number deleted.
func (r *PerformanceRepository) DeleteByShowIDs(ctx context.Context, showIDs []string) (int, error) {
	if len(showIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(showIDs)), ",")
	args := make([]any, len(showIDs))
	for i, id := range showIDs {
		args[i] = id
	}

	res, err := r.conn.ExecContext(ctx,
		`DELETE FROM performances WHERE show_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete performances: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete performances: %w", err)
	}
	return int(n), nil
}

func (r *PerformanceRepository) query(ctx context.Context, q string, args ...any) ([]models.Performance, error) {
	rows, err := r.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query performances: %w", err)
	}
	defer rows.Close()

	var perfs []models.Performance
	for rows.Next() {
		var p models.Performance
		if err := rows.Scan(&p.ID, &p.ShowID, &p.Time, &p.ExternalEventID); err != nil {
			return nil, fmt.Errorf("scan performance: %w", err)
		}
		p.Time = p.Time.UTC()
		perfs = append(perfs, p)
	}
	return perfs, rows.Err()
}
