package store

import "time"

// Application statuses. Applied through Offer form the forward pipeline;
// Rejected is terminal and sits outside the forward order.
const (
	StatusApplied      = "Applied"
	StatusAcknowledged = "Acknowledged"
	StatusScreening    = "Screening"
	StatusInterview    = "Interview"
	StatusOffer        = "Offer"
	StatusRejected     = "Rejected"
)

// Timeline event kinds.
const (
	EventKindApplied = "applied"
	EventKindStatus  = "status"
	EventKindEmail   = "email"
	EventKindNote    = "note"
)

// User is an account with an optional Gmail connection.
type User struct {
	ID                string
	GoogleID          string
	Email             string
	Name              string
	Avatar            string
	SessionToken      string
	GmailRefreshToken string
	// LastSyncAt is the sync watermark; zero when the user never synced.
	LastSyncAt time.Time
	CreatedAt  time.Time
}

// HasMailboxCredential reports whether the user has a stored refresh token.
func (u *User) HasMailboxCredential() bool {
	return u.GmailRefreshToken != ""
}

// Application is one tracked job application.
type Application struct {
	ID             string
	UserID         string
	Company        string
	Domain         string
	Role           string
	Status         string
	Source         string
	Priority       string
	Notes          string
	RecruiterName  string
	RecruiterEmail string
	RecruiterPhone string
	// GmailThreadID links back to the originating conversation, if any.
	GmailThreadID string
	// AppliedDate is a day-granularity date string (YYYY-MM-DD).
	AppliedDate string
	LastUpdated time.Time
	CreatedAt   time.Time
}

// TimelineEvent is one immutable audit entry on an application.
type TimelineEvent struct {
	ID            string
	ApplicationID string
	Kind          string
	Description   string
	// Date is the effective date of the event (YYYY-MM-DD).
	Date      string
	CreatedAt time.Time
}
