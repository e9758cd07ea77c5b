package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jamhq/jam/internal/instrumentation"
	"github.com/jamhq/jam/internal/logging"
	"github.com/jamhq/jam/internal/store"
	"github.com/jamhq/jam/internal/syncer"
)

// ErrQueueFull is returned when the on-demand queue cannot accept
// another trigger.
var ErrQueueFull = errors.New("sync queue full")

const triggerQueueSize = 16

// UserSource enumerates and resolves the users the scheduler works on.
// *store.DB satisfies it.
type UserSource interface {
	UsersWithMailboxCredential(ctx context.Context) ([]*store.User, error)
	UserByID(ctx context.Context, id string) (*store.User, error)
}

// Runner executes one sync pass for one owner.
type Runner interface {
	Run(ctx context.Context, owner *store.User) (syncer.Summary, error)
}

// Scheduler owns the cadence loop and the on-demand trigger queue.
type Scheduler struct {
	users    UserSource
	runner   Runner
	interval time.Duration
	// pacer spaces out users within one cadence pass.
	pacer   *rate.Limiter
	logger  logging.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger

	mu       sync.Mutex
	started  bool
	triggers chan string
}

// New creates a Scheduler. userDelay is the politeness gap between
// consecutive users in one cadence pass. A nil logger falls back to the
// default slog adapter.
func New(users UserSource, runner Runner, interval, userDelay time.Duration, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	var pacer *rate.Limiter
	if userDelay > 0 {
		pacer = rate.NewLimiter(rate.Every(userDelay), 1)
	}
	return &Scheduler{
		users:    users,
		runner:   runner,
		interval: interval,
		pacer:    pacer,
		logger:   logger,
		triggers: make(chan string, triggerQueueSize),
	}
}

// Instrument attaches sync-run metrics and audit logging. Both are
// optional and may be nil.
func (s *Scheduler) Instrument(metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger) {
	s.metrics = metrics
	s.audit = audit
}

// Start launches the cadence loop and the trigger worker. Calling it
// again is a no-op. Both goroutines stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	go s.cadenceLoop(ctx)
	go s.triggerWorker(ctx)

	s.logger.Info("scheduler started",
		"interval", s.interval.String())
}

// Trigger requests an immediate sync for one owner. It validates that
// the owner exists and has a mailbox credential, enqueues the work and
// returns without waiting for the pass to run.
func (s *Scheduler) Trigger(ctx context.Context, ownerID string) error {
	owner, err := s.users.UserByID(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("trigger sync: %w", err)
	}
	if !owner.HasMailboxCredential() {
		return fmt.Errorf("trigger sync for %s: %w", ownerID, syncer.ErrNoCredential)
	}

	select {
	case s.triggers <- ownerID:
		return nil
	default:
		return fmt.Errorf("trigger sync for %s: %w", ownerID, ErrQueueFull)
	}
}

// cadenceLoop runs one pass immediately, then on every tick.
func (s *Scheduler) cadenceLoop(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.runAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.runAll(ctx)
		}
	}
}

// runAll syncs every connected user sequentially. Failures are isolated
// per user.
func (s *Scheduler) runAll(ctx context.Context) {
	users, err := s.users.UsersWithMailboxCredential(ctx)
	if err != nil {
		s.logger.Error("enumerating users failed",
			"error", err)
		return
	}

	s.logger.Info("cadence pass starting",
		"users", len(users))

	for _, u := range users {
		if s.pacer != nil {
			if err := s.pacer.Wait(ctx); err != nil {
				return
			}
		}
		s.runOne(ctx, u, instrumentation.TriggerCadence)
	}

	s.logger.Info("cadence pass complete",
		"users", len(users))
}

func (s *Scheduler) runOne(ctx context.Context, owner *store.User, trigger string) {
	audit := instrumentation.NewSyncAudit(trigger).
		WithOwner(owner.ID, owner.Email).
		WithSpanContext(ctx)

	summary, err := s.runner.Run(ctx, owner)
	if err != nil {
		s.recordRun(ctx, audit.CompleteWithError(err), owner)
		s.logger.Error("sync failed",
			"owner", owner.ID,
			"user_hash", logging.AnonymizeEmail(owner.Email),
			"error", err)
		return
	}

	audit.WithCounts(summary.Created, summary.Updated, summary.Skipped)
	s.recordRun(ctx, audit.CompleteSuccess(), owner)
	s.logger.Info("sync finished",
		"owner", owner.ID,
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", summary.Skipped)
}

func (s *Scheduler) recordRun(ctx context.Context, audit *instrumentation.SyncAudit, owner *store.User) {
	if s.metrics != nil {
		s.metrics.RecordSyncRunForOwner(ctx, audit.Trigger, audit.Status(),
			logging.AnonymizeEmail(owner.Email), audit.Duration)
	}
	if s.audit != nil {
		s.audit.LogSync(audit)
	}
}

// triggerWorker drains the on-demand queue one owner at a time.
func (s *Scheduler) triggerWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ownerID := <-s.triggers:
			owner, err := s.users.UserByID(ctx, ownerID)
			if err != nil {
				s.logger.Error("resolving triggered owner failed",
					"owner", ownerID,
					"error", err)
				continue
			}
			s.runOne(ctx, owner, instrumentation.TriggerOnDemand)
		}
	}
}
