package store_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"kiln/internal/client"
	"kiln/internal/jobs"
	"kiln/internal/store"
	"kiln/internal/testsupport"
)

const testTimeout = 5 * time.Second

func newStore(t *testing.T, svc *testsupport.JobService, opts store.Options) *store.Store {
	t.Helper()
	apiClient, err := client.New(svc.URL(), "")
	if err != nil {
		t.Fatalf("client.New error: %v", err)
	}
	if opts.Baseline == 0 {
		opts.Baseline = time.Hour
	}
	if opts.Aggressive == 0 {
		opts.Aggressive = time.Minute
	}
	s := store.New(apiClient, opts)
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSubmissionLifecycle(t *testing.T) {
	svc := testsupport.NewJobService(t)
	s := newStore(t, svc, store.Options{})

	handle, err := s.SubmitJob(context.Background(), store.SubmitParams{
		Name:      "Oil Forecast",
		Intent:    "forecast quarterly demand",
		SourceRef: "dataset-7",
	})
	if err != nil {
		t.Fatalf("SubmitJob error: %v", err)
	}

	// The optimistic record is visible synchronously.
	merged := s.Jobs()
	if len(merged) != 1 {
		t.Fatalf("expected 1 record immediately after submit, got %+v", merged)
	}
	if !merged[0].IsOptimistic() || merged[0].Status != jobs.StatusAnalyzing {
		t.Fatalf("expected optimistic analyzing record, got %+v", merged[0])
	}

	select {
	case <-handle.Done():
	case <-time.After(testTimeout):
		t.Fatal("submission never resolved")
	}
	if handle.Err() != nil {
		t.Fatalf("submission failed: %v", handle.Err())
	}
	if handle.Result().ID <= 0 {
		t.Fatalf("expected authoritative result, got %+v", handle.Result())
	}

	// The kicked poll reconciles the optimistic record away.
	waitFor(t, "authoritative record to replace the optimistic one", func() bool {
		current := s.Jobs()
		return len(current) == 1 && !current[0].IsOptimistic()
	})
	final := s.Jobs()
	if final[0].Name != "Oil Forecast" || final[0].ID <= 0 {
		t.Fatalf("unexpected reconciled record: %+v", final[0])
	}
}

func TestSubmitFailureRemovesOptimisticRecord(t *testing.T) {
	svc := testsupport.NewJobService(t)
	svc.FailAnalyzeWith(500)
	s := newStore(t, svc, store.Options{})

	handle, err := s.SubmitJob(context.Background(), store.SubmitParams{
		Name:      "Doomed",
		SourceRef: "dataset-1",
	})
	if err != nil {
		t.Fatalf("SubmitJob error: %v", err)
	}

	select {
	case <-handle.Done():
	case <-time.After(testTimeout):
		t.Fatal("submission never resolved")
	}
	if handle.Err() == nil {
		t.Fatal("expected submission failure")
	}
	for _, job := range s.Jobs() {
		if job.IsOptimistic() {
			t.Fatalf("optimistic record must not survive a failed submission: %+v", job)
		}
	}
	if s.LastError() == nil {
		t.Fatal("expected LastError to report the submission failure")
	}
}

func TestSubmitValidatesParams(t *testing.T) {
	svc := testsupport.NewJobService(t)
	s := newStore(t, svc, store.Options{})

	if _, err := s.SubmitJob(context.Background(), store.SubmitParams{SourceRef: "d"}); err == nil {
		t.Fatal("expected name validation error")
	}
	if _, err := s.SubmitJob(context.Background(), store.SubmitParams{Name: "n"}); err == nil {
		t.Fatal("expected source_ref validation error")
	}
}

func TestSubmitAfterCloseFails(t *testing.T) {
	svc := testsupport.NewJobService(t)
	s := newStore(t, svc, store.Options{})
	s.Close()

	_, err := s.SubmitJob(context.Background(), store.SubmitParams{Name: "late", SourceRef: "d"})
	if !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRefreshSurfacesAuthError(t *testing.T) {
	svc := testsupport.NewJobService(t)
	svc.FailListWith(401)
	s := newStore(t, svc, store.Options{})

	err := s.Refresh(context.Background())
	if err == nil || !client.IsAuthError(err) {
		t.Fatalf("expected auth error from Refresh, got %v", err)
	}
	if s.LastError() == nil {
		t.Fatal("expected LastError to be recorded")
	}

	// A later successful poll clears the error.
	svc.FailListWith(0)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if s.LastError() != nil {
		t.Fatalf("expected LastError cleared, got %v", s.LastError())
	}
}

func TestSubscribePublishesOnChange(t *testing.T) {
	svc := testsupport.NewJobService(t)
	s := newStore(t, svc, store.Options{})

	var publishes atomic.Int32
	var last atomic.Value
	unsubscribe := s.Subscribe(func(merged []jobs.Job) {
		publishes.Add(1)
		last.Store(merged)
	})
	defer unsubscribe()

	svc.SetJobs(jobs.Job{ID: 1, Name: "A", Status: jobs.StatusTrained})
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if publishes.Load() != 1 {
		t.Fatalf("expected 1 publish, got %d", publishes.Load())
	}

	// An unchanged snapshot must not re-publish.
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if publishes.Load() != 1 {
		t.Fatalf("unchanged poll must not publish, got %d publishes", publishes.Load())
	}

	published := last.Load().([]jobs.Job)
	if len(published) != 1 || published[0].ID != 1 {
		t.Fatalf("unexpected published list: %+v", published)
	}
}

func TestUnsubscribeIsIdempotentAndSafeInsideListener(t *testing.T) {
	svc := testsupport.NewJobService(t)
	s := newStore(t, svc, store.Options{})

	var calls atomic.Int32
	var unsubscribe func()
	unsubscribe = s.Subscribe(func([]jobs.Job) {
		calls.Add(1)
		unsubscribe() // self-removal from within the listener
		unsubscribe() // and again, for idempotence
	})

	svc.SetJobs(jobs.Job{ID: 1, Name: "A", Status: jobs.StatusTrained})
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	svc.SetJobs(jobs.Job{ID: 2, Name: "B", Status: jobs.StatusTrained})
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}

	if calls.Load() != 1 {
		t.Fatalf("listener must not fire after unsubscribing itself, got %d calls", calls.Load())
	}
}

func TestJobsReturnsSnapshots(t *testing.T) {
	svc := testsupport.NewJobService(t)
	svc.SetJobs(jobs.Job{ID: 1, Name: "A", Status: jobs.StatusTrained})
	s := newStore(t, svc, store.Options{})
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}

	first := s.Jobs()
	first[0].Name = "mangled"
	second := s.Jobs()
	if second[0].Name != "A" {
		t.Fatal("Jobs must hand out value snapshots")
	}
}

func TestAggressiveCadenceWhileTransient(t *testing.T) {
	svc := testsupport.NewJobService(t)
	svc.SetJobs(jobs.Job{ID: 1, Name: "Training Run", Status: jobs.StatusTraining})
	s := newStore(t, svc, store.Options{Baseline: time.Hour, Aggressive: 20 * time.Millisecond})

	s.StartAggressivePolling()

	// While a job is training, ticks keep coming at the aggressive interval.
	waitFor(t, "repeated aggressive polls", func() bool {
		return svc.ListCalls() >= 3
	})

	// Once everything settles, the cadence reverts to baseline (an hour
	// here), so the poll count freezes.
	svc.SetJobs(jobs.Job{ID: 1, Name: "Training Run", Status: jobs.StatusTrained})
	var frozen int
	waitFor(t, "cadence to de-escalate", func() bool {
		current := svc.ListCalls()
		settled := current == frozen
		frozen = current
		time.Sleep(60 * time.Millisecond)
		return settled && svc.ListCalls() == current
	})
}

func TestStopWhenIdleDisarmsPolling(t *testing.T) {
	svc := testsupport.NewJobService(t)
	svc.SetJobs(jobs.Job{ID: 1, Name: "Done", Status: jobs.StatusTrained})
	s := newStore(t, svc, store.Options{Baseline: 30 * time.Millisecond, Aggressive: 10 * time.Millisecond, StopWhenIdle: true})

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	settled := svc.ListCalls()
	time.Sleep(200 * time.Millisecond)
	if got := svc.ListCalls(); got != settled {
		t.Fatalf("polling must stop while idle: %d -> %d calls", settled, got)
	}

	// A kick revives polling for the next submission burst.
	s.StartAggressivePolling()
	waitFor(t, "kick to trigger a fetch", func() bool {
		return svc.ListCalls() > settled
	})
}
