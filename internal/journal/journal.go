// Package journal records delivery attempts in Postgres. It is an audit log
// only; conversation state is never read back from it.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Delivery statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Delivery is one row of the deliveries table.
type Delivery struct {
	ID              int64          `db:"id"`
	SessionID       string         `db:"session_id"`
	UserID          int64          `db:"user_id"`
	Recipient       string         `db:"recipient"`
	Subject         string         `db:"subject"`
	AttachmentName  sql.NullString `db:"attachment_name"`
	AttachmentBytes int            `db:"attachment_bytes"`
	Status          string         `db:"status"`
	Error           sql.NullString `db:"error"`
	StartedAt       time.Time      `db:"started_at"`
	FinishedAt      time.Time      `db:"finished_at"`
}

// Repository reads and writes deliveries.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open database handle.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const insertDelivery = `INSERT INTO deliveries
    (session_id, user_id, recipient, subject, attachment_name, attachment_bytes, status, error, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`

// Record inserts d and sets its ID.
func (r *Repository) Record(ctx context.Context, d *Delivery) error {
	err := r.db.QueryRowxContext(ctx, insertDelivery,
		d.SessionID, d.UserID, d.Recipient, d.Subject,
		d.AttachmentName, d.AttachmentBytes, d.Status, d.Error,
		d.StartedAt, d.FinishedAt,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("journal: insert delivery: %w", err)
	}
	return nil
}

const selectRecent = `SELECT id, session_id, user_id, recipient, subject, attachment_name, attachment_bytes,
    status, error, started_at, finished_at
FROM deliveries
WHERE user_id = $1
ORDER BY finished_at DESC
LIMIT $2`

// Recent returns the user's latest deliveries, newest first.
func (r *Repository) Recent(ctx context.Context, userID int64, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Delivery
	if err := r.db.SelectContext(ctx, &out, selectRecent, userID, limit); err != nil {
		return nil, fmt.Errorf("journal: select recent: %w", err)
	}
	return out, nil
}

const countByStatus = `SELECT status, COUNT(*) AS n
FROM deliveries
WHERE finished_at >= $1
GROUP BY status`

// CountByStatus returns the number of deliveries per status finished since since.
func (r *Repository) CountByStatus(ctx context.Context, since time.Time) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, countByStatus, since); err != nil {
		return nil, fmt.Errorf("journal: count by status: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
