// Package store is the SQLite-backed persistence layer for jam.
//
// It holds three tables: users (identity, session token, Gmail refresh
// token, sync watermark), applications (one tracked job application per
// row, owned by exactly one user) and timeline_events (append-only audit
// trail per application).
//
// All application queries are scoped by owner id; there is no cross-owner
// access path. The database uses WAL mode with a busy timeout so the
// background sync loop and the HTTP surface can share one file.
package store
