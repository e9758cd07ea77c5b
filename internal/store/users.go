package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

const userColumns = `id, google_id, email, name, avatar, session_token, gmail_refresh_token, last_sync_at, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var lastSync, created string
	if err := row.Scan(&u.ID, &u.GoogleID, &u.Email, &u.Name, &u.Avatar,
		&u.SessionToken, &u.GmailRefreshToken, &lastSync, &created); err != nil {
		return nil, err
	}
	if lastSync != "" {
		u.LastSyncAt, _ = time.Parse(time.RFC3339, lastSync)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

// UpsertGoogleUser creates or refreshes a user row from Google userinfo
// and returns it. Existing users keep their id, refresh token and watermark.
func (d *DB) UpsertGoogleUser(ctx context.Context, googleID, email, name, avatar string) (*User, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_id = ?;`, googleID)
	u, err := scanUser(row)
	switch {
	case err == nil:
		if _, err := d.Pool.ExecContext(ctx,
			`UPDATE users SET email = ?, name = ?, avatar = ? WHERE id = ?;`,
			email, name, avatar, u.ID); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		u.Email, u.Name, u.Avatar = email, name, avatar
		return u, nil
	case errors.Is(err, sql.ErrNoRows):
		u := &User{
			ID:        uuid.NewString(),
			GoogleID:  googleID,
			Email:     email,
			Name:      name,
			Avatar:    avatar,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := d.Pool.ExecContext(ctx, `
INSERT INTO users (id, google_id, email, name, avatar, session_token, gmail_refresh_token, last_sync_at, created_at)
VALUES (?, ?, ?, ?, ?, '', '', '', ?);`,
			u.ID, u.GoogleID, u.Email, u.Name, u.Avatar,
			u.CreatedAt.Format(time.RFC3339)); err != nil {
			return nil, fmt.Errorf("insert user: %w", err)
		}
		return u, nil
	default:
		return nil, fmt.Errorf("lookup user: %w", err)
	}
}

// SaveRefreshToken stores the Gmail refresh token obtained from the OAuth
// code exchange.
func (d *DB) SaveRefreshToken(ctx context.Context, userID, refreshToken string) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE users SET gmail_refresh_token = ? WHERE id = ?;`, refreshToken, userID)
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveSessionToken stores the opaque bearer token issued after login.
func (d *DB) SaveSessionToken(ctx context.Context, userID, sessionToken string) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE users SET session_token = ? WHERE id = ?;`, sessionToken, userID)
	if err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UserBySessionToken resolves a bearer token to its user.
func (d *DB) UserBySessionToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE session_token = ?;`, token)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	return u, nil
}

// UserByID fetches a user by id.
func (d *DB) UserByID(ctx context.Context, id string) (*User, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?;`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// UsersWithMailboxCredential lists every user with a stored Gmail refresh
// token, in creation order. This is the cadence loop's enumeration.
func (d *DB) UsersWithMailboxCredential(ctx context.Context) ([]*User, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE gmail_refresh_token != '' ORDER BY created_at;`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateWatermark advances the user's last successful sync timestamp.
// It is called only after a fully successful sync run and never rolls back.
func (d *DB) UpdateWatermark(ctx context.Context, userID string, ts time.Time) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE users SET last_sync_at = ? WHERE id = ?;`,
		ts.UTC().Format(time.RFC3339), userID)
	if err != nil {
		return fmt.Errorf("update watermark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
