// Package permission manages cross-class attendance permission requests:
// a teacher asks to mark attendance for a class they are not assigned to,
// an admin approves or rejects for one specific date.
package permission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Request is one cross-class permission request.
type Request struct {
	ID             string     `json:"id"`
	RequesterID    string     `json:"requester_id"`
	RequesterName  string     `json:"requester_name"`
	RequesterEmail string     `json:"requester_email"`
	TargetGrade    int        `json:"target_grade"`
	TargetClass    string     `json:"target_class"`
	TargetDate     string     `json:"target_date"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"`
	RequestedAt    time.Time  `json:"requested_at"`
	RespondedAt    *time.Time `json:"responded_at,omitempty"`
	ResponderID    *string    `json:"responder_id,omitempty"`
}

// Repository persists permission requests in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create files a new pending request and returns it.
func (r *Repository) Create(ctx context.Context, req Request) (Request, error) {
	if req.RequesterID == "" || req.TargetDate == "" {
		return Request{}, errors.New("requester and target date required")
	}
	req.ID = uuid.NewString()
	req.Status = StatusPending
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO permission_requests
			(id, requester_id, requester_name, requester_email, target_grade, target_class, target_date, reason, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING requested_at
	`, req.ID, req.RequesterID, req.RequesterName, req.RequesterEmail,
		req.TargetGrade, req.TargetClass, req.TargetDate, req.Reason, req.Status)
	if err := row.Scan(&req.RequestedAt); err != nil {
		return Request{}, err
	}
	return req, nil
}

const selectCols = `id, requester_id, requester_name, requester_email,
	target_grade, target_class, target_date, reason, status, requested_at, responded_at, responder_id`

func scanRequest(rows *sql.Rows) (Request, error) {
	var req Request
	err := rows.Scan(&req.ID, &req.RequesterID, &req.RequesterName, &req.RequesterEmail,
		&req.TargetGrade, &req.TargetClass, &req.TargetDate, &req.Reason, &req.Status,
		&req.RequestedAt, &req.RespondedAt, &req.ResponderID)
	return req, err
}

// List returns requests, optionally filtered by status, newest first.
func (r *Repository) List(ctx context.Context, status string) ([]Request, error) {
	query := `SELECT ` + selectCols + ` FROM permission_requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY requested_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// ListByRequester returns one teacher's requests, newest first.
func (r *Repository) ListByRequester(ctx context.Context, requesterID string) ([]Request, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectCols+` FROM permission_requests
		WHERE requester_id = $1
		ORDER BY requested_at DESC
	`, requesterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Respond marks a pending request approved or rejected.
func (r *Repository) Respond(ctx context.Context, id, responderID, status string) error {
	if status != StatusApproved && status != StatusRejected {
		return fmt.Errorf("invalid response status %q", status)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE permission_requests
		SET status = $2, responder_id = $3, responded_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, status, responderID, StatusPending)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("request %s not found or already resolved", id)
	}
	return nil
}

// HasApproved reports whether the teacher holds an approved request for
// exactly this grade, class, and date.
func (r *Repository) HasApproved(ctx context.Context, requesterID string, grade int, class, date string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM permission_requests
		WHERE requester_id = $1 AND target_grade = $2 AND target_class = $3
		  AND target_date = $4 AND status = $5
	`, requesterID, grade, class, date, StatusApproved)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
