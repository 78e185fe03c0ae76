package reconcile

import "kiln/internal/jobs"

// Merge combines locally fabricated optimistic records with an authoritative
// poll snapshot into a single view.
//
// An optimistic record whose name appears in the snapshot is dropped: the
// server now holds the canonical version and wins unconditionally. Surviving
// optimistic records stay in front so the most recent submissions render
// first; authoritative records keep the server's own ordering. The function
// is pure and idempotent: re-running it against the same snapshot never
// drops additional records.
func Merge(optimistic, authoritative []jobs.Job) []jobs.Job {
	authoritative = dedupeByID(authoritative)
	kept := Outstanding(optimistic, authoritative)

	merged := make([]jobs.Job, 0, len(kept)+len(authoritative))
	merged = append(merged, kept...)
	merged = append(merged, authoritative...)
	return merged
}

// Outstanding returns the optimistic records the snapshot has not yet
// acknowledged. The store uses this to retire pending entries once the
// corresponding authoritative record appears.
func Outstanding(optimistic, authoritative []jobs.Job) []jobs.Job {
	if len(optimistic) == 0 {
		return nil
	}
	names := make(map[string]struct{}, len(authoritative))
	for _, job := range authoritative {
		names[job.Name] = struct{}{}
	}
	kept := make([]jobs.Job, 0, len(optimistic))
	for _, job := range optimistic {
		if _, acknowledged := names[job.Name]; acknowledged {
			continue
		}
		kept = append(kept, job)
	}
	return kept
}

// dedupeByID guards against a snapshot repeating an ID; the first occurrence
// wins so server ordering is preserved.
func dedupeByID(records []jobs.Job) []jobs.Job {
	seen := make(map[int64]struct{}, len(records))
	out := make([]jobs.Job, 0, len(records))
	for _, job := range records {
		if _, dup := seen[job.ID]; dup {
			continue
		}
		seen[job.ID] = struct{}{}
		out = append(out, job)
	}
	return out
}
