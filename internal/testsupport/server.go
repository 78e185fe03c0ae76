package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"kiln/internal/api"
	"kiln/internal/jobs"
)

// JobService is an in-process stand-in for the job service REST API. It
// serves the listing, submission, and generation endpoints against a mutable
// record set so tests can script server-side state changes between polls.
type JobService struct {
	mu            sync.Mutex
	records       []api.JobRecord
	nextID        int64
	listCalls     int
	listStatus    int
	analyzeStatus int
	streams       map[int64][]string

	server *httptest.Server
}

// NewJobService starts the fixture and registers cleanup with t.
func NewJobService(t testing.TB) *JobService {
	t.Helper()

	svc := &JobService{
		nextID:  1,
		streams: map[int64][]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs", svc.handleList)
	mux.HandleFunc("POST /jobs/analyze", svc.handleAnalyze)
	mux.HandleFunc("POST /jobs/{id}/generate", svc.handleGenerate)

	svc.server = httptest.NewServer(mux)
	t.Cleanup(svc.server.Close)
	return svc
}

// URL returns the fixture's base URL.
func (s *JobService) URL() string {
	return s.server.URL
}

// SetJobs replaces the authoritative record set.
func (s *JobService) SetJobs(records ...jobs.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
	for _, job := range records {
		s.records = append(s.records, api.FromJob(job))
		if job.ID >= s.nextID {
			s.nextID = job.ID + 1
		}
	}
}

// ListCalls reports how many times the listing endpoint was hit.
func (s *JobService) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

// FailListWith makes the listing endpoint answer with the given HTTP status.
// Pass 0 to restore normal behavior.
func (s *JobService) FailListWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listStatus = status
}

// FailAnalyzeWith makes the submission endpoint answer with the given HTTP
// status. Pass 0 to restore normal behavior.
func (s *JobService) FailAnalyzeWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyzeStatus = status
}

// ScriptStream sets the raw lines the generation endpoint emits for a job.
func (s *JobService) ScriptStream(jobID int64, lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[jobID] = lines
}

func (s *JobService) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.listCalls++
	status := s.listStatus
	results := append([]api.JobRecord{}, s.records...)
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(api.JobList{Count: len(results), Results: results})
}

func (s *JobService) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var request api.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.analyzeStatus != 0 {
		status := s.analyzeStatus
		s.mu.Unlock()
		http.Error(w, http.StatusText(status), status)
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	record := api.JobRecord{
		ID:        s.nextID,
		Name:      request.Name,
		Status:    string(jobs.StatusAnalyzing),
		SourceRef: request.SourceRef,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextID++
	s.records = append([]api.JobRecord{record}, s.records...)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(record)
}

func (s *JobService) handleGenerate(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad job id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	lines, ok := s.streams[jobID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "no stream scripted", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		_, _ = w.Write([]byte(line))
		if flusher != nil {
			flusher.Flush()
		}
	}
}
