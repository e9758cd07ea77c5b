package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendTimelineEvent records an immutable audit entry for an application.
// Events are append-only; there is no update or delete path.
func (d *DB) AppendTimelineEvent(ctx context.Context, applicationID, kind, description, date string) (*TimelineEvent, error) {
	e := &TimelineEvent{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Kind:          kind,
		Description:   description,
		Date:          date,
		CreatedAt:     time.Now().UTC(),
	}
	if e.Date == "" {
		e.Date = e.CreatedAt.Format("2006-01-02")
	}

	if _, err := d.Pool.ExecContext(ctx, `
INSERT INTO timeline_events (id, application_id, kind, description, date, created_at)
VALUES (?, ?, ?, ?, ?, ?);`,
		e.ID, e.ApplicationID, e.Kind, e.Description, e.Date,
		e.CreatedAt.Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("append timeline event: %w", err)
	}
	return e, nil
}

// TimelineByApplication lists an application's events oldest first.
func (d *DB) TimelineByApplication(ctx context.Context, applicationID string) ([]*TimelineEvent, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, application_id, kind, description, date, created_at
FROM timeline_events
WHERE application_id = ?
ORDER BY created_at, rowid;`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	var events []*TimelineEvent
	for rows.Next() {
		var e TimelineEvent
		var created string
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.Kind, &e.Description, &e.Date, &created); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, created)
		events = append(events, &e)
	}
	return events, rows.Err()
}
