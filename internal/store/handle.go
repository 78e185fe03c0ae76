package store

import (
	"sync"

	"kiln/internal/jobs"
)

// OptimisticHandle tracks one submission from the moment its placeholder
// record is inserted until the creation request resolves.
type OptimisticHandle struct {
	store *Store
	job   jobs.Job

	done       chan struct{}
	err        error    // written before done closes
	result     jobs.Job // authoritative record, valid on success
	removeOnce sync.Once
}

// Job returns the optimistic placeholder record.
func (h *OptimisticHandle) Job() jobs.Job {
	return h.job
}

// Done is closed once the creation request has resolved either way.
func (h *OptimisticHandle) Done() <-chan struct{} {
	return h.done
}

// Err reports the submission failure, if any. Only meaningful after Done.
func (h *OptimisticHandle) Err() error {
	return h.err
}

// Result returns the authoritative record the server created. Only
// meaningful after Done, and only when Err is nil.
func (h *OptimisticHandle) Result() jobs.Job {
	return h.result
}

// Remove retires the optimistic record from the pending set. It is
// idempotent; the store calls it itself when the creation request fails.
func (h *OptimisticHandle) Remove() {
	h.removeOnce.Do(func() {
		h.store.removePending(h.job.ID)
	})
}
