package jobs

import (
	"strings"
	"time"
)

// Status represents the server-side lifecycle of an analysis/training job.
type Status string

const (
	StatusAnalyzing   Status = "analyzing"
	StatusConfiguring Status = "configuring"
	StatusTraining    Status = "training"
	StatusTrained     Status = "trained"
)

var allStatuses = []Status{
	StatusAnalyzing,
	StatusConfiguring,
	StatusTraining,
	StatusTrained,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Transient statuses are expected to change without user action and justify
// aggressive polling. configuring waits on the user; trained is terminal.
var transientStatuses = map[Status]struct{}{
	StatusAnalyzing: {},
	StatusTraining:  {},
}

// Job is the canonical shape of a trackable analysis/training job.
//
// Server-assigned IDs are positive. A negative ID marks an optimistic record
// fabricated locally at submission time that the server has not yet
// acknowledged; optimistic records live only in the merged in-memory view.
type Job struct {
	ID            int64
	Name          string
	Status        Status
	SourceRef     string
	VersionCount  int
	ActiveVersion int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Config        map[string]any
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTransientStatus reports whether a status is expected to advance on its
// own, i.e. whether it justifies aggressive polling.
func IsTransientStatus(status Status) bool {
	_, ok := transientStatuses[status]
	return ok
}

// IsTransient reports whether the job is in a transient status.
func (j Job) IsTransient() bool {
	return IsTransientStatus(j.Status)
}

// IsOptimistic reports whether the record is a locally fabricated placeholder
// awaiting server acknowledgement.
func (j Job) IsOptimistic() bool {
	return j.ID < 0
}

// AnyTransient reports whether any record in the list is transient.
func AnyTransient(records []Job) bool {
	for _, job := range records {
		if job.IsTransient() {
			return true
		}
	}
	return false
}

// NewOptimistic fabricates a placeholder record for a just-submitted job.
// The ID is derived from the submission timestamp and negated so it can never
// collide with a server-assigned ID.
func NewOptimistic(name, sourceRef string, config map[string]any, now time.Time) Job {
	return Job{
		ID:        -now.UnixMilli(),
		Name:      name,
		Status:    StatusAnalyzing,
		SourceRef: sourceRef,
		CreatedAt: now,
		UpdatedAt: now,
		Config:    config,
	}
}
