package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const applicationColumns = `id, user_id, company, domain, role, status, source, priority, notes,
recruiter_name, recruiter_email, recruiter_phone, gmail_thread_id, applied_date, last_updated, created_at`

func scanApplication(row interface{ Scan(...any) error }) (*Application, error) {
	var a Application
	var threadID sql.NullString
	var lastUpdated, created string
	if err := row.Scan(&a.ID, &a.UserID, &a.Company, &a.Domain, &a.Role, &a.Status,
		&a.Source, &a.Priority, &a.Notes,
		&a.RecruiterName, &a.RecruiterEmail, &a.RecruiterPhone,
		&threadID, &a.AppliedDate, &lastUpdated, &created); err != nil {
		return nil, err
	}
	a.GmailThreadID = threadID.String
	a.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
	a.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &a, nil
}

// FindByOwnerAndDomainLike returns the owner's first application whose
// domain contains the given substring, case-insensitively. Returns
// ErrNotFound when no record matches. This is the reconciler's sole
// matching lookup.
func (d *DB) FindByOwnerAndDomainLike(ctx context.Context, ownerID, domainSubstring string) (*Application, error) {
	if domainSubstring == "" {
		return nil, ErrNotFound
	}
	row := d.Pool.QueryRowContext(ctx, `
SELECT `+applicationColumns+`
FROM applications
WHERE user_id = ? AND domain != '' AND domain LIKE '%' || ? || '%'
ORDER BY created_at
LIMIT 1;`, ownerID, domainSubstring)

	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find application: %w", err)
	}
	return a, nil
}

// InsertApplication persists a new application. Company and role are
// required; id, priority and timestamps are filled in when absent.
func (d *DB) InsertApplication(ctx context.Context, a *Application) (*Application, error) {
	if a.Company == "" || a.Role == "" {
		return nil, fmt.Errorf("insert application: company and role are required")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = StatusApplied
	}
	if a.Priority == "" {
		a.Priority = "Medium"
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.LastUpdated.IsZero() {
		a.LastUpdated = now
	}
	if a.AppliedDate == "" {
		a.AppliedDate = now.Format("2006-01-02")
	}

	var threadID sql.NullString
	if a.GmailThreadID != "" {
		threadID = sql.NullString{String: a.GmailThreadID, Valid: true}
	}

	if _, err := d.Pool.ExecContext(ctx, `
INSERT INTO applications (id, user_id, company, domain, role, status, source, priority, notes,
  recruiter_name, recruiter_email, recruiter_phone, gmail_thread_id, applied_date, last_updated, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		a.ID, a.UserID, a.Company, a.Domain, a.Role, a.Status, a.Source, a.Priority, a.Notes,
		a.RecruiterName, a.RecruiterEmail, a.RecruiterPhone, threadID, a.AppliedDate,
		a.LastUpdated.Format(time.RFC3339), a.CreatedAt.Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("insert application: %w", err)
	}
	return a, nil
}

// UpdateApplicationStatus sets a new status and bumps last_updated.
func (d *DB) UpdateApplicationStatus(ctx context.Context, id, status string, ts time.Time) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE applications SET status = ?, last_updated = ? WHERE id = ?;`,
		status, ts.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplicationsByOwner lists all of one owner's applications, most recently
// updated first.
func (d *DB) ApplicationsByOwner(ctx context.Context, ownerID string) ([]*Application, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT `+applicationColumns+`
FROM applications
WHERE user_id = ?
ORDER BY last_updated DESC;`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []*Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}
