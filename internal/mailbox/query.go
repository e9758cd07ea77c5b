package mailbox

import (
	"fmt"
	"strings"
	"time"
)

// subjectKeywords is the disjunctive recall filter covering application
// acknowledgements, interview invitations, rejections and offers. False
// positives are expected and resolved by the oracle's confidence gate.
var subjectKeywords = []string{
	"subject:(application received)",
	"subject:(thank you for applying)",
	"subject:(we received your application)",
	"subject:(application confirmed)",
	"subject:(your application to)",
	"subject:(application for)",
	"subject:(we'd like to schedule)",
	"subject:(interview invitation)",
	"subject:(moving forward)",
	"subject:(unfortunately)",
	"subject:(not moving forward)",
	"subject:(offer of employment)",
}

// BuildQuery assembles the Gmail search query. When since is non-nil the
// window starts strictly after that date (Gmail's after: operator is day
// granular); otherwise it defaults to a lookback of lookbackDays.
func BuildQuery(since *time.Time, lookbackDays int) string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(strings.Join(subjectKeywords, " OR "))
	b.WriteString(")")

	if since != nil && !since.IsZero() {
		b.WriteString(fmt.Sprintf(" after:%s", since.Format("2006/01/02")))
	} else {
		b.WriteString(fmt.Sprintf(" newer_than:%dd", lookbackDays))
	}
	return b.String()
}
