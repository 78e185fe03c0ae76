package api

import (
	"fmt"
	"time"

	"kiln/internal/jobs"
)

// ToJob converts a wire record into the internal model. Records carrying a
// status outside the closed set are rejected rather than passed through.
func ToJob(record JobRecord) (jobs.Job, error) {
	status, ok := jobs.ParseStatus(record.Status)
	if !ok {
		return jobs.Job{}, fmt.Errorf("job %d (%s): unknown status %q", record.ID, record.Name, record.Status)
	}

	job := jobs.Job{
		ID:            record.ID,
		Name:          record.Name,
		Status:        status,
		SourceRef:     record.SourceRef,
		VersionCount:  record.VersionCount,
		ActiveVersion: record.ActiveVersion,
		Config:        record.Config,
	}

	var err error
	if job.CreatedAt, err = parseTimestamp(record.CreatedAt); err != nil {
		return jobs.Job{}, fmt.Errorf("job %d (%s): created_at: %w", record.ID, record.Name, err)
	}
	if job.UpdatedAt, err = parseTimestamp(record.UpdatedAt); err != nil {
		return jobs.Job{}, fmt.Errorf("job %d (%s): updated_at: %w", record.ID, record.Name, err)
	}
	return job, nil
}

// ToJobs converts a full listing, failing on the first malformed record.
func ToJobs(records []JobRecord) ([]jobs.Job, error) {
	converted := make([]jobs.Job, 0, len(records))
	for _, record := range records {
		job, err := ToJob(record)
		if err != nil {
			return nil, err
		}
		converted = append(converted, job)
	}
	return converted, nil
}

// FromJob converts an internal record into the wire format.
func FromJob(job jobs.Job) JobRecord {
	record := JobRecord{
		ID:            job.ID,
		Name:          job.Name,
		Status:        string(job.Status),
		SourceRef:     job.SourceRef,
		VersionCount:  job.VersionCount,
		ActiveVersion: job.ActiveVersion,
		Config:        job.Config,
	}
	if !job.CreatedAt.IsZero() {
		record.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		record.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return record
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(dateTimeFormat, value); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return ts, nil
}
