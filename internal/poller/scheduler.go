package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"kiln/internal/jobs"
	"kiln/internal/logging"
)

// ErrStopped is returned by RunNow after the scheduler has been torn down.
var ErrStopped = errors.New("poll scheduler stopped")

// Decision tells the scheduler how to re-arm after a fetch completes.
type Decision int

const (
	// DecisionAggressive re-arms at the short interval; some job is in a
	// transient state.
	DecisionAggressive Decision = iota
	// DecisionBaseline re-arms at the idle interval.
	DecisionBaseline
	// DecisionStop leaves the timer disarmed until the next Kick.
	DecisionStop
)

// FetchFunc performs one authoritative fetch of the job list.
type FetchFunc func(ctx context.Context) ([]jobs.Job, error)

// SinkFunc consumes a fetch result and chooses the next cadence. It receives
// either a snapshot or an error, never both.
type SinkFunc func(snapshot []jobs.Job, err error) Decision

// Options configures a Scheduler.
type Options struct {
	Baseline   time.Duration
	Aggressive time.Duration
	Logger     *slog.Logger
}

// Scheduler owns the polling cadence. It guarantees at most one fetch in
// flight: a timer fire or Kick during an in-flight fetch is coalesced, not
// queued. Stopping cancels the pending timer; an in-flight fetch completes
// but its result is discarded via a generation check.
type Scheduler struct {
	fetch      FetchFunc
	sink       SinkFunc
	baseline   time.Duration
	aggressive time.Duration
	logger     *slog.Logger

	// fetchMu serializes fetch executions. Timer fires coalesce with
	// TryLock; RunNow queues behind the in-flight fetch with Lock.
	fetchMu sync.Mutex

	mu         sync.Mutex
	timer      *time.Timer
	interval   time.Duration
	stopped    bool
	generation uint64
	failures   int
}

// New constructs a Scheduler. The timer stays disarmed until Start or Kick.
func New(fetch FetchFunc, sink SinkFunc, opts Options) *Scheduler {
	baseline := opts.Baseline
	if baseline <= 0 {
		baseline = 30 * time.Second
	}
	aggressive := opts.Aggressive
	if aggressive <= 0 || aggressive > baseline {
		aggressive = baseline
	}
	return &Scheduler{
		fetch:      fetch,
		sink:       sink,
		baseline:   baseline,
		aggressive: aggressive,
		logger:     logging.NewComponentLogger(opts.Logger, "poller"),
	}
}

// Start arms the timer at the baseline interval if it is not already armed.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.timer != nil {
		return
	}
	s.armLocked(s.baseline)
}

// Kick immediately triggers a fetch and resets the timer. While the fetch
// runs the cadence question is moot; the sink's decision re-arms afterwards.
// If a fetch is already in flight the trigger is coalesced.
func (s *Scheduler) Kick() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	s.interval = s.aggressive
	s.mu.Unlock()

	go func() {
		if !s.fetchMu.TryLock() {
			return
		}
		defer s.fetchMu.Unlock()
		_ = s.runFetch(context.Background())
	}()
}

// RunNow performs one synchronous fetch-and-publish cycle, waiting for any
// in-flight fetch to finish first, and returns the fetch error.
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	return s.runFetch(ctx)
}

// Stop tears the scheduler down: the pending timer is cancelled and any
// in-flight fetch result is discarded. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.generation++
	s.stopTimerLocked()
}

// ConsecutiveFailures returns the current streak of failed fetches. The host
// decides when the streak is worth surfacing to the user.
func (s *Scheduler) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// NextInterval reports the interval the pending timer was armed with, and
// whether a timer is pending at all.
func (s *Scheduler) NextInterval() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval, s.timer != nil
}

// tick runs on the timer goroutine. Callers must not hold fetchMu.
func (s *Scheduler) tick() {
	if !s.fetchMu.TryLock() {
		// A fetch is in flight; its completion re-arms the timer.
		return
	}
	defer s.fetchMu.Unlock()
	_ = s.runFetch(context.Background())
}

// runFetch executes one fetch under fetchMu (held by the caller).
func (s *Scheduler) runFetch(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	generation := s.generation
	s.mu.Unlock()

	snapshot, err := s.fetch(ctx)

	s.mu.Lock()
	if s.stopped || s.generation != generation {
		s.mu.Unlock()
		s.logger.Debug("discarding stale fetch result")
		return ErrStopped
	}
	if err != nil {
		s.failures++
		s.logger.Debug("poll fetch failed", logging.Error(err), logging.Int("failures", s.failures))
	} else {
		s.failures = 0
	}
	s.mu.Unlock()

	decision := s.sink(snapshot, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.generation != generation {
		return ErrStopped
	}
	switch decision {
	case DecisionAggressive:
		s.armLocked(s.aggressive)
	case DecisionBaseline:
		s.armLocked(s.baseline)
	case DecisionStop:
		s.stopTimerLocked()
	}
	return err
}

func (s *Scheduler) armLocked(interval time.Duration) {
	s.stopTimerLocked()
	s.interval = interval
	s.timer = time.AfterFunc(interval, s.tick)
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
