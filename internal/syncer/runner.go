package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jamhq/jam/internal/logging"
	"github.com/jamhq/jam/internal/mailbox"
	"github.com/jamhq/jam/internal/oracle"
	"github.com/jamhq/jam/internal/reconcile"
	"github.com/jamhq/jam/internal/store"
)

// ErrNoCredential is returned when the owner has no stored mailbox
// refresh token.
var ErrNoCredential = errors.New("no mailbox credential")

// Summary accounts for every candidate email of one pass:
// Created + Updated + Skipped equals the number of fetched emails.
type Summary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Mailbox fetches candidate emails for one authenticated owner.
type Mailbox interface {
	FetchCandidates(ctx context.Context, since *time.Time) ([]mailbox.RawEmail, error)
}

// MailboxOpener builds a Mailbox from a stored refresh token.
type MailboxOpener func(ctx context.Context, refreshToken string) (Mailbox, error)

// Extractor classifies one email into a fact, or nil to discard it.
type Extractor interface {
	Extract(ctx context.Context, email mailbox.RawEmail) (*oracle.Fact, error)
}

// Applier reconciles one fact into the owner's records.
type Applier interface {
	Apply(ctx context.Context, ownerID, from, subject string, fact *oracle.Fact) (reconcile.Outcome, error)
}

// WatermarkStore persists the per-owner sync watermark.
type WatermarkStore interface {
	UpdateWatermark(ctx context.Context, userID string, at time.Time) error
}

// Runner executes sync passes.
type Runner struct {
	openMailbox MailboxOpener
	extractor   Extractor
	applier     Applier
	store       WatermarkStore
	logger      logging.Logger
	now         func() time.Time

	group singleflight.Group
}

// NewRunner wires a Runner. A nil logger falls back to the default slog
// adapter.
func NewRunner(open MailboxOpener, ex Extractor, ap Applier, ws WatermarkStore, logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Runner{
		openMailbox: open,
		extractor:   ex,
		applier:     ap,
		store:       ws,
		logger:      logger,
		now:         time.Now,
	}
}

// Run executes one pass for the owner. Concurrent calls for the same
// owner share a single execution and its result.
func (r *Runner) Run(ctx context.Context, owner *store.User) (Summary, error) {
	if !owner.HasMailboxCredential() {
		return Summary{}, fmt.Errorf("user %s: %w", owner.ID, ErrNoCredential)
	}

	v, err, _ := r.group.Do(owner.ID, func() (any, error) {
		return r.run(ctx, owner)
	})
	summary, _ := v.(Summary)
	return summary, err
}

func (r *Runner) run(ctx context.Context, owner *store.User) (Summary, error) {
	start := r.now()

	var since *time.Time
	if !owner.LastSyncAt.IsZero() {
		t := owner.LastSyncAt
		since = &t
	}

	mb, err := r.openMailbox(ctx, owner.GmailRefreshToken)
	if err != nil {
		return Summary{}, fmt.Errorf("open mailbox: %w", err)
	}

	emails, err := mb.FetchCandidates(ctx, since)
	if err != nil {
		// Fetch faults abort the pass; the watermark stays put so the
		// next pass re-covers this window.
		return Summary{}, fmt.Errorf("fetch candidates: %w", err)
	}

	var summary Summary
	for _, email := range emails {
		fact, err := r.extractor.Extract(ctx, email)
		if err != nil {
			r.logger.Warn("extraction failed, skipping email",
				"owner", owner.ID,
				"message_id", email.MessageID,
				"error", err)
			summary.Skipped++
			continue
		}
		if fact == nil {
			summary.Skipped++
			continue
		}

		outcome, err := r.applier.Apply(ctx, owner.ID, email.From, email.Subject, fact)
		if err != nil {
			r.logger.Warn("reconciliation failed, skipping email",
				"owner", owner.ID,
				"message_id", email.MessageID,
				"error", err)
			summary.Skipped++
			continue
		}
		switch outcome {
		case reconcile.OutcomeCreated:
			summary.Created++
		case reconcile.OutcomeUpdated:
			summary.Updated++
		default:
			summary.Skipped++
		}
	}

	if err := r.store.UpdateWatermark(ctx, owner.ID, r.now()); err != nil {
		return summary, fmt.Errorf("advance watermark: %w", err)
	}

	r.logger.Info("sync pass complete",
		"owner", owner.ID,
		"emails", len(emails),
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"duration", r.now().Sub(start).String())
	return summary, nil
}
