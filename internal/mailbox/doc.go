// Package mailbox fetches candidate job-application emails from Gmail.
//
// The adapter is a recall-oriented filter, not a classifier: it searches
// for acknowledgement, interview, rejection and offer phrasing and leaves
// precision to the extraction oracle downstream. Fetches are bounded by
// the owner's sync watermark (or a 90-day lookback on first sync), capped
// at a fixed page size, and bodies are truncated to a fixed character
// budget before they leave this package.
//
// The adapter is read-only against the mailbox; it never modifies labels
// or messages.
package mailbox
