package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "jam.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, db *DB) *User {
	t.Helper()
	ctx := context.Background()
	u, err := db.UpsertGoogleUser(ctx, "google-123", "jane@example.com", "Jane", "")
	require.NoError(t, err)
	return u
}

func TestUpsertGoogleUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u1, err := db.UpsertGoogleUser(ctx, "google-123", "jane@example.com", "Jane", "")
	require.NoError(t, err)
	assert.NotEmpty(t, u1.ID)
	assert.False(t, u1.HasMailboxCredential())

	// Second upsert with the same google id keeps the identity.
	u2, err := db.UpsertGoogleUser(ctx, "google-123", "jane.doe@example.com", "Jane Doe", "http://a")
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
	assert.Equal(t, "jane.doe@example.com", u2.Email)
	assert.Equal(t, "Jane Doe", u2.Name)
}

func TestRefreshTokenAndEnumeration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db)

	users, err := db.UsersWithMailboxCredential(ctx)
	require.NoError(t, err)
	assert.Empty(t, users, "user without refresh token must not be enumerated")

	require.NoError(t, db.SaveRefreshToken(ctx, u.ID, "refresh-token-1"))

	users, err = db.UsersWithMailboxCredential(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, u.ID, users[0].ID)
	assert.True(t, users[0].HasMailboxCredential())
	assert.True(t, users[0].LastSyncAt.IsZero(), "fresh user has no watermark")
}

func TestSaveRefreshTokenUnknownUser(t *testing.T) {
	db := openTestDB(t)
	err := db.SaveRefreshToken(context.Background(), "missing", "tok")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionToken(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db)

	require.NoError(t, db.SaveSessionToken(ctx, u.ID, "session-abc"))

	got, err := db.UserBySessionToken(ctx, "session-abc")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = db.UserBySessionToken(ctx, "wrong")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.UserBySessionToken(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateWatermark(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db)

	ts := time.Date(2026, 5, 17, 12, 30, 0, 0, time.UTC)
	require.NoError(t, db.UpdateWatermark(ctx, u.ID, ts))

	got, err := db.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.LastSyncAt.Equal(ts))
}

func TestInsertApplicationRequiresCompanyAndRole(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db)

	_, err := db.InsertApplication(ctx, &Application{UserID: u.ID, Role: "Engineer"})
	assert.Error(t, err)

	_, err = db.InsertApplication(ctx, &Application{UserID: u.ID, Company: "Atlassian"})
	assert.Error(t, err)
}

func TestFindByOwnerAndDomainLike(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db)

	_, err := db.InsertApplication(ctx, &Application{
		UserID:  u.ID,
		Company: "Atlassian",
		Domain:  "atlassian.com",
		Role:    "Backend Engineer",
		Status:  StatusAcknowledged,
	})
	require.NoError(t, err)

	// Substring match: derived domain "atlassian" finds "atlassian.com".
	got, err := db.FindByOwnerAndDomainLike(ctx, u.ID, "atlassian")
	require.NoError(t, err)
	assert.Equal(t, "Atlassian", got.Company)

	// Case-insensitive.
	got, err = db.FindByOwnerAndDomainLike(ctx, u.ID, "ATLASSIAN")
	require.NoError(t, err)
	assert.Equal(t, "Atlassian", got.Company)

	// No match for other domains.
	_, err = db.FindByOwnerAndDomainLike(ctx, u.ID, "stripe")
	assert.ErrorIs(t, err, ErrNotFound)

	// Empty substring never matches.
	_, err = db.FindByOwnerAndDomainLike(ctx, u.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByOwnerAndDomainLikeScopedToOwner(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u1 := seedUser(t, db)
	u2, err := db.UpsertGoogleUser(ctx, "google-456", "john@example.com", "John", "")
	require.NoError(t, err)

	_, err = db.InsertApplication(ctx, &Application{
		UserID: u1.ID, Company: "Atlassian", Domain: "atlassian.com", Role: "SRE",
	})
	require.NoError(t, err)

	_, err = db.FindByOwnerAndDomainLike(ctx, u2.ID, "atlassian")
	assert.ErrorIs(t, err, ErrNotFound, "matching must not cross owners")
}

func TestUpdateApplicationStatus(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db)

	a, err := db.InsertApplication(ctx, &Application{
		UserID: u.ID, Company: "Stripe", Domain: "stripe.com", Role: "Platform Engineer",
		Status: StatusScreening,
	})
	require.NoError(t, err)

	ts := time.Now().UTC()
	require.NoError(t, db.UpdateApplicationStatus(ctx, a.ID, StatusInterview, ts))

	got, err := db.FindByOwnerAndDomainLike(ctx, u.ID, "stripe")
	require.NoError(t, err)
	assert.Equal(t, StatusInterview, got.Status)

	assert.ErrorIs(t, db.UpdateApplicationStatus(ctx, "missing", StatusOffer, ts), ErrNotFound)
}

func TestTimelineEvents(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db)

	a, err := db.InsertApplication(ctx, &Application{
		UserID: u.ID, Company: "Stripe", Domain: "stripe.com", Role: "Platform Engineer",
	})
	require.NoError(t, err)

	_, err = db.AppendTimelineEvent(ctx, a.ID, EventKindApplied, `Auto-imported: "Thanks for applying"`, "2026-05-17")
	require.NoError(t, err)
	_, err = db.AppendTimelineEvent(ctx, a.ID, EventKindEmail, "Interview — auto-detected from email", "")
	require.NoError(t, err)

	events, err := db.TimelineByApplication(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventKindApplied, events[0].Kind)
	assert.Equal(t, "2026-05-17", events[0].Date)
	assert.Equal(t, EventKindEmail, events[1].Kind)
	assert.NotEmpty(t, events[1].Date, "empty effective date defaults to today")
}
