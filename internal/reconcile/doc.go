// Package reconcile merges optimistic placeholder records with authoritative
// poll snapshots. Matching is by display name: the server assigns IDs, so a
// just-submitted job is only identifiable by the name the user typed until
// the first snapshot that lists it.
//
// Merge is pure and idempotent, which is what makes interleaved poll and
// creation responses safe regardless of arrival order.
package reconcile
