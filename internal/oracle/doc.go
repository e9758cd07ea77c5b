// Package oracle classifies candidate emails into structured job
// application facts using the Anthropic Messages API.
//
// The package has two layers. Client is a thin HTTP client for the
// Messages endpoint with connection pooling, bounded retries and
// optional request pacing. Extractor sits on top and owns the
// classification contract: it builds the prompt, parses the model's
// JSON reply, applies the confidence gate and normalizes the status
// vocabulary. Extraction failures for a single email are soft; they
// yield no fact rather than an error so one garbled reply never aborts
// a whole sync pass.
package oracle
