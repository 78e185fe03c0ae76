// Package store holds the process-wide merged job list and the imperative
// controls the rest of the application drives it with: submit, refresh,
// subscribe, and aggressive-polling escalation.
//
// The store is the only writer of the merged list. The scheduler and
// reconciler never hold a competing copy; they are invoked by the store and
// hand their results back to it. Consumers get value snapshots, and every
// publish builds a new slice so reference-based change detection works.
package store
