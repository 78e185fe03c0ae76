// Package jobs defines the canonical job record and its status lifecycle.
//
// Statuses form a closed set (analyzing -> configuring -> training -> trained);
// transitions are driven entirely by the server. The only status the client
// ever assigns locally is the synthetic analyzing status on a freshly created
// optimistic record. Any status outside the closed set is treated as an error
// at the API conversion boundary.
//
// Treat this package as the single source of truth for job semantics; the
// store, reconciler, and scheduler all key their behavior off the transient
// classification defined here.
package jobs
