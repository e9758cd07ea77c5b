// Package syncer orchestrates one mailbox reconciliation pass for one
// owner: fetch candidate emails, extract facts, reconcile each fact
// into the owner's records, and advance the sync watermark.
//
// A pass is all-or-nothing only at the fetch boundary. A mailbox fetch
// fault aborts the pass and leaves the watermark untouched so the next
// pass re-covers the same window. Per-email faults degrade to skips;
// the pass completes and every email is accounted for in exactly one
// of the created, updated or skipped counters.
//
// Concurrent passes for the same owner collapse into one via
// singleflight, so a cadence run and an on-demand trigger never double
// process a mailbox.
package syncer
