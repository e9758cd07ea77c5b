package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamhq/jam/internal/mailbox"
	"github.com/jamhq/jam/internal/store"
)

type fakeCompletion struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeCompletion) Complete(_ context.Context, system, user string) (string, error) {
	f.lastSystem = system
	f.lastUser = user
	return f.reply, f.err
}

func testEmail() mailbox.RawEmail {
	return mailbox.RawEmail{
		From:      "Sarah <sarah@atlassian.com>",
		Subject:   "Interview invitation",
		Date:      "Mon, 17 May 2026 10:00:00 +0000",
		Body:      "We would like to schedule an interview.",
		MessageID: "msg1",
		ThreadID:  "thread1",
	}
}

func newTestExtractor(client CompletionClient) *Extractor {
	e := NewExtractor(client, 0.6, nil)
	e.now = func() time.Time {
		return time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func TestExtract(t *testing.T) {
	fake := &fakeCompletion{
		reply: `{"company":"Atlassian","role":"Backend Engineer","status":"Interview","confidence":0.92}`,
	}
	e := newTestExtractor(fake)

	fact, err := e.Extract(context.Background(), testEmail())
	require.NoError(t, err)
	require.NotNil(t, fact)
	assert.Equal(t, "Atlassian", fact.Company)
	assert.Equal(t, store.StatusInterview, fact.Status)
	assert.Equal(t, "2026-05-17", fact.AppliedDate)
	assert.Equal(t, "thread1", fact.ThreadID)

	assert.Contains(t, fake.lastUser, "FROM: Sarah <sarah@atlassian.com>")
	assert.Contains(t, fake.lastUser, "SUBJECT: Interview invitation")
	assert.Contains(t, fake.lastUser, "We would like to schedule an interview.")
	assert.Contains(t, fake.lastSystem, "ONLY valid JSON")
}

func TestExtractConfidenceGate(t *testing.T) {
	fake := &fakeCompletion{
		reply: `{"company":"Weekly Digest","role":"","status":"Acknowledged","confidence":0.3}`,
	}
	e := newTestExtractor(fake)

	fact, err := e.Extract(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Nil(t, fact, "below-gate facts are discarded, not errors")
}

func TestExtractUnparseableReply(t *testing.T) {
	fake := &fakeCompletion{reply: "Sorry, I cannot help with that."}
	e := newTestExtractor(fake)

	fact, err := e.Extract(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Nil(t, fact)
}

func TestExtractBackendFault(t *testing.T) {
	fake := &fakeCompletion{err: ErrOracle}
	e := newTestExtractor(fake)

	fact, err := e.Extract(context.Background(), testEmail())
	assert.Nil(t, fact)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOracle))
}

func TestExtractNormalizesUnknownStatus(t *testing.T) {
	fake := &fakeCompletion{
		reply: `{"company":"Stripe","role":"SRE","status":"Pending Review","confidence":0.8}`,
	}
	e := newTestExtractor(fake)

	fact, err := e.Extract(context.Background(), testEmail())
	require.NoError(t, err)
	require.NotNil(t, fact)
	assert.Equal(t, store.StatusAcknowledged, fact.Status)
}

func TestExtractDerivesDateFallback(t *testing.T) {
	fake := &fakeCompletion{
		reply: `{"company":"Stripe","role":"SRE","status":"Offer","confidence":0.9}`,
	}
	e := newTestExtractor(fake)

	email := testEmail()
	email.Date = "garbage"
	fact, err := e.Extract(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, fact)
	assert.Equal(t, "2026-05-20", fact.AppliedDate)
}
