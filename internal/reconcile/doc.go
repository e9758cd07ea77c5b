// Package reconcile applies extracted email facts to the application
// records of a single owner.
//
// The reconciler matches a fact to an existing record through the
// sender's domain, creates a new record when no match exists, and
// advances a matched record's status through a monotonic ratchet: a
// record's status only ever moves forward through the pipeline, never
// backward, and Rejected is terminal. Every record-affecting action
// leaves a timeline event behind; skips leave no trace.
package reconcile
