// Package scheduler drives mailbox reconciliation on a fixed cadence
// and serves on-demand triggers.
//
// The cadence loop wakes on an interval, enumerates every user with a
// connected mailbox and syncs them sequentially with a politeness gap
// between users. One user's failure is logged and isolated; it never
// aborts the pass. On-demand triggers validate the owner's credential
// up front, then hand the work to a single background worker through a
// bounded queue so the HTTP caller returns immediately.
package scheduler
