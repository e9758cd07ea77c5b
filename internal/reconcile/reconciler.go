package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jamhq/jam/internal/logging"
	"github.com/jamhq/jam/internal/oracle"
	"github.com/jamhq/jam/internal/store"
)

// Outcome classifies the effect of reconciling one fact.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// statusRank orders the pipeline for the ratchet. Rejected ranks above
// everything, making it terminal. Unknown statuses rank zero.
var statusRank = map[string]int{
	store.StatusApplied:      0,
	store.StatusAcknowledged: 1,
	store.StatusScreening:    2,
	store.StatusInterview:    3,
	store.StatusOffer:        4,
	store.StatusRejected:     5,
}

func rank(status string) int {
	return statusRank[status]
}

// Store is the slice of the record store the reconciler depends on.
// *store.DB satisfies it.
type Store interface {
	FindByOwnerAndDomainLike(ctx context.Context, ownerID, domainSubstring string) (*store.Application, error)
	InsertApplication(ctx context.Context, a *store.Application) (*store.Application, error)
	UpdateApplicationStatus(ctx context.Context, id, status string, ts time.Time) error
	AppendTimelineEvent(ctx context.Context, applicationID, kind, description, date string) (*store.TimelineEvent, error)
}

// Reconciler applies extracted facts to one owner's records.
type Reconciler struct {
	store  Store
	logger logging.Logger
	now    func() time.Time
}

// New creates a Reconciler. A nil logger falls back to the default slog
// adapter.
func New(s Store, logger logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Reconciler{store: s, logger: logger, now: time.Now}
}

// Apply reconciles one fact with its source email's subject and sender.
// The subject feeds the timeline descriptions; the sender feeds domain
// derivation.
func (r *Reconciler) Apply(ctx context.Context, ownerID, from, subject string, fact *oracle.Fact) (Outcome, error) {
	domain := DeriveDomain(from, fact.Company)

	existing, err := r.store.FindByOwnerAndDomainLike(ctx, ownerID, domain)
	switch {
	case err == nil:
		return r.advance(ctx, existing, subject, fact)
	case errors.Is(err, store.ErrNotFound):
		return r.create(ctx, ownerID, domain, subject, fact)
	default:
		return OutcomeSkipped, fmt.Errorf("match lookup: %w", err)
	}
}

// advance ratchets a matched record forward. Equal or regressive
// statuses are pure skips: no write, no timeline entry.
func (r *Reconciler) advance(ctx context.Context, existing *store.Application, subject string, fact *oracle.Fact) (Outcome, error) {
	if rank(fact.Status) <= rank(existing.Status) {
		r.logger.Debug("skipping regressive or equal status",
			"application_id", existing.ID,
			"current", existing.Status,
			"incoming", fact.Status)
		return OutcomeSkipped, nil
	}

	if err := r.store.UpdateApplicationStatus(ctx, existing.ID, fact.Status, r.now()); err != nil {
		return OutcomeSkipped, fmt.Errorf("advance status: %w", err)
	}

	description := fmt.Sprintf("%s — auto-detected from email: %q", fact.Status, subject)
	if _, err := r.store.AppendTimelineEvent(ctx, existing.ID, store.EventKindEmail, description, fact.AppliedDate); err != nil {
		return OutcomeUpdated, fmt.Errorf("record status event: %w", err)
	}

	r.logger.Info("advanced application status",
		"application_id", existing.ID,
		"from", existing.Status,
		"to", fact.Status)
	return OutcomeUpdated, nil
}

// create inserts a fresh record for an unmatched fact.
func (r *Reconciler) create(ctx context.Context, ownerID, domain, subject string, fact *oracle.Fact) (Outcome, error) {
	app, err := r.store.InsertApplication(ctx, &store.Application{
		UserID:         ownerID,
		Company:        fact.Company,
		Domain:         domain,
		Role:           fact.Role,
		Status:         fact.Status,
		Source:         "Gmail",
		RecruiterName:  fact.RecruiterName,
		RecruiterEmail: fact.RecruiterEmail,
		GmailThreadID:  fact.ThreadID,
		AppliedDate:    fact.AppliedDate,
	})
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("create record: %w", err)
	}

	description := fmt.Sprintf("Auto-imported: %q", subject)
	if _, err := r.store.AppendTimelineEvent(ctx, app.ID, store.EventKindApplied, description, fact.AppliedDate); err != nil {
		return OutcomeCreated, fmt.Errorf("record import event: %w", err)
	}

	r.logger.Info("created application from email",
		"application_id", app.ID,
		"domain", domain,
		"status", fact.Status)
	return OutcomeCreated, nil
}
