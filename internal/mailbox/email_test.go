package mailbox

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestParseMessageSimpleBody(t *testing.T) {
	msg := &gmail.Message{
		Id:       "msg1",
		ThreadId: "thread1",
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "Sarah <sarah@atlassian.com>"},
				{Name: "To", Value: "jane@example.com"},
				{Name: "Subject", Value: "Thank you for applying"},
				{Name: "Date", Value: "Mon, 17 May 2026 10:00:00 +0000"},
			},
			Body: &gmail.MessagePartBody{Data: b64("We received your application.")},
		},
	}

	email := parseMessage(msg, 2000)
	require.NotNil(t, email)
	assert.Equal(t, "Sarah <sarah@atlassian.com>", email.From)
	assert.Equal(t, "Thank you for applying", email.Subject)
	assert.Equal(t, "We received your application.", email.Body)
	assert.Equal(t, "msg1", email.MessageID)
	assert.Equal(t, "thread1", email.ThreadID)
}

func TestParseMessageHeaderCaseInsensitive(t *testing.T) {
	msg := &gmail.Message{
		Id: "msg1",
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "subject", Value: "Interview invitation"},
			},
			Body: &gmail.MessagePartBody{Data: b64("body")},
		},
	}

	email := parseMessage(msg, 2000)
	require.NotNil(t, email)
	assert.Equal(t, "Interview invitation", email.Subject)
}

func TestParseMessageNestedMultipart(t *testing.T) {
	msg := &gmail.Message{
		Id: "msg1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/related",
					Parts: []*gmail.MessagePart{
						{
							MimeType: "text/plain",
							Body:     &gmail.MessagePartBody{Data: b64("first part. ")},
						},
					},
				},
				{
					MimeType: "text/plain",
					Body:     &gmail.MessagePartBody{Data: b64("second part.")},
				},
				{
					MimeType: "text/html",
					Body:     &gmail.MessagePartBody{Data: b64("<p>html ignored when plain exists</p>")},
				},
			},
		},
	}

	email := parseMessage(msg, 2000)
	require.NotNil(t, email)
	assert.Equal(t, "first part. second part.", email.Body)
}

func TestParseMessageHTMLFallback(t *testing.T) {
	msg := &gmail.Message{
		Id: "msg1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/html",
					Body:     &gmail.MessagePartBody{Data: b64("<html><body><p>We would like to schedule an interview.</p><script>alert(1)</script></body></html>")},
				},
			},
		},
	}

	email := parseMessage(msg, 2000)
	require.NotNil(t, email)
	assert.Contains(t, email.Body, "We would like to schedule an interview.")
	assert.NotContains(t, email.Body, "alert(1)", "script content must be stripped")
}

func TestParseMessageTruncatesBody(t *testing.T) {
	long := strings.Repeat("x", 5000)
	msg := &gmail.Message{
		Id: "msg1",
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Body:     &gmail.MessagePartBody{Data: b64(long)},
		},
	}

	email := parseMessage(msg, 2000)
	require.NotNil(t, email)
	assert.Len(t, email.Body, 2000)
}

func TestParseMessageNilPayload(t *testing.T) {
	assert.Nil(t, parseMessage(&gmail.Message{Id: "msg1"}, 2000))
	assert.Nil(t, parseMessage(nil, 2000))
}

func TestDecodeBodyRawEncoding(t *testing.T) {
	// RawURLEncoding (no padding) is also accepted.
	data := base64.RawURLEncoding.EncodeToString([]byte("unpadded"))
	assert.Equal(t, "unpadded", decodeBody(data))
	assert.Equal(t, "", decodeBody(""))
	assert.Equal(t, "", decodeBody("!!!not base64!!!"))
}
