package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/jamhq/jam/internal/logging"
	"github.com/jamhq/jam/internal/mailbox"
)

const systemPrompt = `You are an expert at parsing job application emails.
You extract structured data from email content and return ONLY valid JSON with no markdown, no explanation, no extra text.

Rules:
- Extract only what is clearly present in the email. Do not guess or fabricate.
- company: the company name hiring (not a job board). Extract from sender domain or email body.
- role: the exact job title mentioned.
- status: classify based on email content using EXACTLY one of these values:
    "Acknowledged"  - application received/confirmed, no further action
    "Screening"     - recruiter wants to connect, intro call, phone screen
    "Interview"     - interview scheduled or invitation to interview
    "Offer"         - job offer extended
    "Rejected"      - not moving forward, unsuccessful, position filled
  If unclear, return "Acknowledged".
- recruiter_name: full name of the recruiter/sender if mentioned, else null
- recruiter_email: recruiter email if different from sender, else extract from From header, else null
- action_required: one-line string describing what the candidate should do next, or null
- confidence: number 0-1 indicating how confident you are this is a job application email (not spam/newsletter)

Return this exact JSON shape:
{
  "company": "string",
  "role": "string",
  "status": "Acknowledged|Screening|Interview|Offer|Rejected",
  "recruiter_name": "string|null",
  "recruiter_email": "string|null",
  "action_required": "string|null",
  "confidence": 0.0
}`

// buildUserMessage renders one email into the prompt the model parses.
func buildUserMessage(email mailbox.RawEmail) string {
	return fmt.Sprintf(`Parse this email and extract job application data:

FROM: %s
SUBJECT: %s
DATE: %s
BODY:
%s`, email.From, email.Subject, email.Date, email.Body)
}

// CompletionClient is the piece of Client the Extractor needs.
type CompletionClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Extractor turns raw candidate emails into normalized facts.
type Extractor struct {
	client        CompletionClient
	minConfidence float64
	logger        logging.Logger
	now           func() time.Time
}

// NewExtractor wires a completion client into an Extractor. A nil logger
// falls back to the default slog adapter.
func NewExtractor(client CompletionClient, minConfidence float64, logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Extractor{
		client:        client,
		minConfidence: minConfidence,
		logger:        logger,
		now:           time.Now,
	}
}

// Extract classifies one email. A nil fact with a nil error means the
// email was examined and discarded: the reply was unparseable or the
// model's confidence fell below the gate. Errors are backend faults and
// wrap ErrOracle.
func (e *Extractor) Extract(ctx context.Context, email mailbox.RawEmail) (*Fact, error) {
	reply, err := e.client.Complete(ctx, systemPrompt, buildUserMessage(email))
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", email.MessageID, err)
	}

	fact := parseFact(reply)
	if fact == nil {
		e.logger.Warn("discarding unparseable oracle reply",
			"message_id", email.MessageID)
		return nil, nil
	}

	if fact.Confidence < e.minConfidence {
		e.logger.Debug("discarding low-confidence fact",
			"message_id", email.MessageID,
			"confidence", fact.Confidence)
		return nil, nil
	}

	fact.Status = NormalizeStatus(fact.Status)
	fact.AppliedDate = deriveAppliedDate(email.Date, e.now)
	fact.ThreadID = email.ThreadID
	return fact, nil
}
