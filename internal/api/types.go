package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobRecord describes a job in the service's wire format.
type JobRecord struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Status        string         `json:"status"`
	SourceRef     string         `json:"source_ref"`
	VersionCount  int            `json:"version_count"`
	ActiveVersion int            `json:"active_version"`
	CreatedAt     string         `json:"created_at,omitempty"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
	Config        map[string]any `json:"config,omitempty"`
}

// JobList is the envelope returned by GET /jobs.
type JobList struct {
	Count   int         `json:"count"`
	Results []JobRecord `json:"results"`
}

// AnalyzeRequest is the body of POST /jobs/analyze.
type AnalyzeRequest struct {
	Name      string `json:"name"`
	Intent    string `json:"intent"`
	SourceRef string `json:"source_ref"`
	Model     string `json:"model"`
}

// GenerateRequest is the body of POST /jobs/{id}/generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// StreamEvent is one decoded line of the generation stream. Exactly one of
// the token, done, or error shapes is populated per line.
type StreamEvent struct {
	Token       string `json:"token,omitempty"`
	Done        bool   `json:"done,omitempty"`
	FullText    string `json:"full_text,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Error       string `json:"error,omitempty"`
	PartialText string `json:"partial_text,omitempty"`
}
