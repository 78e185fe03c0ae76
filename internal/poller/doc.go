// Package poller decides when the job list is fetched. Two cadences exist: a
// slow baseline used while nothing is changing server-side, and a short
// aggressive interval used from the moment a job is submitted until no record
// is left in a transient state. The sink callback owns that policy; the
// scheduler owns the mechanism (timer, single-flight, teardown).
package poller
