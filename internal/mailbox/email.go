package mailbox

import (
	"encoding/base64"
	"strings"

	"github.com/PuerkitoBio/goquery"
	gmail "google.golang.org/api/gmail/v1"
)

// RawEmail is one candidate email as handed to the extraction oracle.
// Body is decoded plain text, truncated to the adapter's character budget.
type RawEmail struct {
	From      string
	To        string
	Subject   string
	Date      string
	Body      string
	MessageID string
	ThreadID  string
}

// headerValue extracts a header from a Gmail message payload,
// case-insensitively.
func headerValue(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, h := range payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// decodeBody decodes a base64url-encoded Gmail body part. The API
// sometimes emits padded and sometimes raw encoding, so both are tried.
func decodeBody(data string) string {
	if data == "" {
		return ""
	}
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}

// collectParts walks a MIME tree depth-first and appends every decoded
// part of the wanted mime type.
func collectParts(part *gmail.MessagePart, mimeType string, out *[]string) {
	if part == nil {
		return
	}
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		if text := decodeBody(part.Body.Data); text != "" {
			*out = append(*out, text)
		}
	}
	for _, child := range part.Parts {
		collectParts(child, mimeType, out)
	}
}

// htmlToText strips tags from an HTML body. Used as a fallback when a
// message carries no text/plain part at all.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style").Remove()
	return strings.TrimSpace(doc.Text())
}

// parseMessage converts a full-format Gmail message into a RawEmail.
// Returns nil when the message carries no usable payload; such messages
// are dropped silently rather than failing the whole fetch.
func parseMessage(msg *gmail.Message, bodyLimit int) *RawEmail {
	if msg == nil || msg.Payload == nil {
		return nil
	}

	email := &RawEmail{
		From:      headerValue(msg.Payload, "From"),
		To:        headerValue(msg.Payload, "To"),
		Subject:   headerValue(msg.Payload, "Subject"),
		Date:      headerValue(msg.Payload, "Date"),
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
	}

	var body string
	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		body = decodeBody(msg.Payload.Body.Data)
		if msg.Payload.MimeType == "text/html" {
			body = htmlToText(body)
		}
	} else {
		var parts []string
		collectParts(msg.Payload, "text/plain", &parts)
		if len(parts) == 0 {
			// No plain text anywhere; fall back to stripped HTML.
			var htmlParts []string
			collectParts(msg.Payload, "text/html", &htmlParts)
			for _, h := range htmlParts {
				if text := htmlToText(h); text != "" {
					parts = append(parts, text)
				}
			}
		}
		body = strings.Join(parts, "")
	}

	if bodyLimit > 0 && len(body) > bodyLimit {
		body = body[:bodyLimit]
	}
	email.Body = body

	return email
}
