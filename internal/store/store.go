package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"kiln/internal/api"
	"kiln/internal/client"
	"kiln/internal/jobs"
	"kiln/internal/logging"
	"kiln/internal/poller"
	"kiln/internal/reconcile"
)

// ErrClosed is returned by operations on a store that has been torn down.
var ErrClosed = errors.New("job store closed")

// Listener receives the merged job list after every change.
type Listener func([]jobs.Job)

// SubmitParams captures a job submission.
type SubmitParams struct {
	Name      string
	Intent    string
	SourceRef string
	Model     string
	Config    map[string]any
}

// Options configures a Store.
type Options struct {
	Baseline   time.Duration
	Aggressive time.Duration
	// StopWhenIdle disarms polling entirely once no job is transient,
	// instead of idling at the baseline interval.
	StopWhenIdle bool
	Logger       *slog.Logger
}

// Store is the single owner of the merged job list. It fabricates optimistic
// records on submission, reconciles them against poll snapshots, and
// publishes a freshly built list to subscribers on every change. Records are
// never mutated in place.
type Store struct {
	client *client.Client
	sched  *poller.Scheduler
	logger *slog.Logger

	stopWhenIdle bool

	mu            sync.Mutex
	authoritative []jobs.Job
	pending       []jobs.Job
	merged        []jobs.Job
	subs          map[int]Listener
	nextSub       int
	lastErr       error
	closed        bool
}

// New constructs a Store and arms baseline polling. Callers own the
// lifecycle: create once at application start, Close on shutdown.
func New(apiClient *client.Client, opts Options) *Store {
	s := &Store{
		client:       apiClient,
		logger:       logging.NewComponentLogger(opts.Logger, "store"),
		stopWhenIdle: opts.StopWhenIdle,
		subs:         map[int]Listener{},
	}
	s.sched = poller.New(apiClient.FetchJobs, s.applySnapshot, poller.Options{
		Baseline:   opts.Baseline,
		Aggressive: opts.Aggressive,
		Logger:     opts.Logger,
	})
	s.sched.Start()
	return s
}

// Close tears down polling. In-flight work completes but its results are
// discarded.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.sched.Stop()
}

// Jobs returns a snapshot of the merged job list.
func (s *Store) Jobs() []jobs.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jobs.Job{}, s.merged...)
}

// LastError returns the most recent poll or submission failure, cleared on
// the next successful poll.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ConsecutiveFailures exposes the scheduler's failure streak.
func (s *Store) ConsecutiveFailures() int {
	return s.sched.ConsecutiveFailures()
}

// StartAggressivePolling triggers an immediate fetch and switches to the
// aggressive cadence.
func (s *Store) StartAggressivePolling() {
	s.sched.Kick()
}

// Refresh awaits one full poll cycle and re-publishes. Fetch errors,
// including authorization failures, are returned to the caller.
func (s *Store) Refresh(ctx context.Context) error {
	return s.sched.RunNow(ctx)
}

// Subscribe registers a listener invoked whenever the merged list changes.
// The returned unsubscribe function is idempotent and safe to call from
// within the listener itself.
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// SubmitJob synchronously fabricates an optimistic record and inserts it into
// the merged view, then issues the creation request in the background.
// Regardless of the request's outcome, aggressive polling is kicked so the
// authoritative record is picked up (or the failure reconciled) within one
// poll cycle. On failure the store retires the optimistic record itself; the
// handle's Remove stays available for callers that abandon a submission.
func (s *Store) SubmitJob(ctx context.Context, params SubmitParams) (*OptimisticHandle, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, errors.New("submit job: name required")
	}
	if strings.TrimSpace(params.SourceRef) == "" {
		return nil, errors.New("submit job: source_ref required")
	}

	job := jobs.NewOptimistic(params.Name, params.SourceRef, params.Config, time.Now())
	handle := &OptimisticHandle{store: s, job: job, done: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	// Newest submission first, matching the ordering the merged view keeps.
	s.pending = append([]jobs.Job{job}, s.pending...)
	s.rebuildLocked()
	listeners, snapshot := s.publishSetLocked()
	s.mu.Unlock()

	s.notify(listeners, snapshot)
	s.logger.Info("submitted job", logging.String("name", params.Name), logging.Int64("optimistic_id", job.ID))

	go s.completeSubmission(ctx, handle, params)
	return handle, nil
}

func (s *Store) completeSubmission(ctx context.Context, handle *OptimisticHandle, params SubmitParams) {
	record, err := s.client.SubmitAnalyze(ctx, api.AnalyzeRequest{
		Name:      params.Name,
		Intent:    params.Intent,
		SourceRef: params.SourceRef,
		Model:     params.Model,
	})
	if err != nil {
		s.logger.Warn("job submission failed", logging.String("name", params.Name), logging.Error(err))
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		handle.err = err
		handle.Remove()
	} else {
		handle.result = record
	}
	close(handle.done)

	s.sched.Kick()
}

// removePending drops one optimistic record and re-publishes.
func (s *Store) removePending(optimisticID int64) {
	s.mu.Lock()
	kept := s.pending[:0]
	removed := false
	for _, job := range s.pending {
		if job.ID == optimisticID {
			removed = true
			continue
		}
		kept = append(kept, job)
	}
	s.pending = kept
	var listeners map[int]Listener
	var snapshot []jobs.Job
	if removed {
		s.rebuildLocked()
		listeners, snapshot = s.publishSetLocked()
	}
	s.mu.Unlock()

	if removed {
		s.notify(listeners, snapshot)
	}
}

// applySnapshot is the scheduler's sink: it reconciles a poll result into the
// merged view and chooses the next cadence.
func (s *Store) applySnapshot(snapshot []jobs.Job, err error) poller.Decision {
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		current := s.merged
		s.mu.Unlock()

		if client.IsAuthError(err) {
			// Hammering an endpoint the client cannot use helps nobody.
			s.logger.Warn("poll rejected: authorization failure", logging.Error(err))
			return poller.DecisionBaseline
		}
		// Transport failures retry silently at the current cadence.
		return s.decide(current)
	}

	s.mu.Lock()
	s.lastErr = nil
	s.authoritative = snapshot
	s.pending = reconcile.Outstanding(s.pending, snapshot)
	previous := s.merged
	s.rebuildLocked()
	changed := !equalJobs(previous, s.merged)
	var listeners map[int]Listener
	var published []jobs.Job
	if changed {
		listeners, published = s.publishSetLocked()
	}
	merged := s.merged
	s.mu.Unlock()

	if changed {
		s.notify(listeners, published)
	}
	return s.decide(merged)
}

func (s *Store) decide(merged []jobs.Job) poller.Decision {
	if jobs.AnyTransient(merged) {
		return poller.DecisionAggressive
	}
	if s.stopWhenIdle {
		return poller.DecisionStop
	}
	return poller.DecisionBaseline
}

// rebuildLocked recomputes the merged view. Callers hold s.mu.
func (s *Store) rebuildLocked() {
	s.merged = reconcile.Merge(s.pending, s.authoritative)
}

// publishSetLocked snapshots the listener set and builds the list value to
// hand out. Callers hold s.mu; notification happens outside the lock so a
// listener may unsubscribe itself.
func (s *Store) publishSetLocked() (map[int]Listener, []jobs.Job) {
	listeners := make(map[int]Listener, len(s.subs))
	for id, listener := range s.subs {
		listeners[id] = listener
	}
	return listeners, append([]jobs.Job{}, s.merged...)
}

func (s *Store) notify(listeners map[int]Listener, snapshot []jobs.Job) {
	for _, listener := range listeners {
		listener(snapshot)
	}
}

func equalJobs(a, b []jobs.Job) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID ||
			a[i].Name != b[i].Name ||
			a[i].Status != b[i].Status ||
			a[i].VersionCount != b[i].VersionCount ||
			a[i].ActiveVersion != b[i].ActiveVersion ||
			!a[i].UpdatedAt.Equal(b[i].UpdatedAt) {
			return false
		}
	}
	return true
}
