package mailbox

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jamhq/jam/internal/instrumentation"
	"github.com/jamhq/jam/internal/logging"
)

// Options bound the fetch window and payload sizes.
type Options struct {
	// LookbackDays bounds the first fetch when no watermark exists.
	LookbackDays int
	// MaxMessages caps the number of message ids listed per fetch.
	MaxMessages int64
	// BodyLimit truncates decoded bodies to this many characters.
	BodyLimit int
	// Metrics records fetch operations. Nil disables recording.
	Metrics *instrumentation.Metrics
}

// DefaultOptions mirror the bounds of the hosted service.
func DefaultOptions() Options {
	return Options{LookbackDays: 90, MaxMessages: 100, BodyLimit: 2000}
}

// Client is a read-only Gmail adapter bound to one user's credential.
type Client struct {
	svc    *gmail.UsersService
	opts   Options
	logger *slog.Logger
}

// NewClient builds a Gmail client from an OAuth2 token source (typically
// derived from the user's stored refresh token).
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, classifyError("create gmail service", err)
	}
	return &Client{svc: svc.Users, opts: opts, logger: logger}, nil
}

// FetchCandidates searches the mailbox for status-relevant emails after
// the watermark and returns their decoded, truncated payloads in listing
// order. Messages that fail to fetch or parse are dropped silently.
func (c *Client) FetchCandidates(ctx context.Context, since *time.Time) ([]RawEmail, error) {
	query := BuildQuery(since, c.opts.LookbackDays)

	start := time.Now()
	list, err := c.svc.Messages.List("me").
		Q(query).
		MaxResults(c.opts.MaxMessages).
		Context(ctx).
		Do()
	c.recordOperation(ctx, instrumentation.OperationList, err, start)
	if err != nil {
		return nil, classifyError("list messages", err)
	}
	if len(list.Messages) == 0 {
		return nil, nil
	}

	emails := make([]RawEmail, 0, len(list.Messages))
	for _, m := range list.Messages {
		start := time.Now()
		msg, err := c.svc.Messages.Get("me", m.Id).Format("full").Context(ctx).Do()
		c.recordOperation(ctx, instrumentation.OperationGet, err, start)
		if err != nil {
			// A single unfetchable message must not fail the batch.
			c.logger.Warn("skipping unfetchable message",
				logging.Operation("mailbox.fetch"),
				slog.String("message_id", m.Id),
				logging.Err(err))
			continue
		}
		email := parseMessage(msg, c.opts.BodyLimit)
		if email == nil {
			continue
		}
		emails = append(emails, *email)
	}

	c.logger.Debug("fetched candidate emails",
		logging.Operation("mailbox.fetch"),
		slog.Int("count", len(emails)))

	return emails, nil
}

func (c *Client) recordOperation(ctx context.Context, op string, err error, start time.Time) {
	if c.opts.Metrics == nil {
		return
	}
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.opts.Metrics.RecordMailboxOperation(ctx, op, status, time.Since(start))
}
