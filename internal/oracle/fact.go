package oracle

import (
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"github.com/jamhq/jam/internal/store"
)

// Fact is the structured classification of one email.
type Fact struct {
	Company        string  `json:"company"`
	Role           string  `json:"role"`
	Status         string  `json:"status"`
	RecruiterName  string  `json:"recruiter_name"`
	RecruiterEmail string  `json:"recruiter_email"`
	ActionRequired string  `json:"action_required"`
	Confidence     float64 `json:"confidence"`

	// AppliedDate is derived from the email's Date header (YYYY-MM-DD),
	// not from the model's reply.
	AppliedDate string `json:"-"`
	// ThreadID is carried through from the source email.
	ThreadID string `json:"-"`
}

// stripCodeFences removes markdown code fences the model sometimes wraps
// its JSON reply in.
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// parseFact decodes a model reply into a Fact. Returns nil when the
// reply is not the expected JSON shape.
func parseFact(reply string) *Fact {
	cleaned := stripCodeFences(reply)
	var f Fact
	if err := json.Unmarshal([]byte(cleaned), &f); err != nil {
		return nil
	}
	return &f
}

// emailStatuses is the vocabulary the oracle may assign. Applied is
// deliberately absent; a status email always means at least an
// acknowledgement.
var emailStatuses = map[string]string{
	"acknowledged": store.StatusAcknowledged,
	"screening":    store.StatusScreening,
	"interview":    store.StatusInterview,
	"offer":        store.StatusOffer,
	"rejected":     store.StatusRejected,
}

// NormalizeStatus maps a model-reported status onto the store's
// vocabulary. Anything unrecognized coerces to Acknowledged.
func NormalizeStatus(s string) string {
	if mapped, ok := emailStatuses[strings.ToLower(strings.TrimSpace(s))]; ok {
		return mapped
	}
	return store.StatusAcknowledged
}

// deriveAppliedDate parses an RFC 5322 Date header into YYYY-MM-DD,
// falling back to today when the header is absent or malformed.
func deriveAppliedDate(dateHeader string, now func() time.Time) string {
	if t, err := mail.ParseDate(dateHeader); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	return now().UTC().Format("2006-01-02")
}
