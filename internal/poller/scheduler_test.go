package poller_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"kiln/internal/jobs"
	"kiln/internal/poller"
)

const testTimeout = 2 * time.Second

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestKickTriggersImmediateFetch(t *testing.T) {
	fetched := make(chan struct{}, 1)
	fetch := func(context.Context) ([]jobs.Job, error) {
		fetched <- struct{}{}
		return nil, nil
	}
	sink := func([]jobs.Job, error) poller.Decision { return poller.DecisionStop }

	s := poller.New(fetch, sink, poller.Options{Baseline: time.Hour, Aggressive: time.Minute})
	defer s.Stop()

	s.Kick()
	waitSignal(t, fetched, "immediate fetch after Kick")
}

func TestAtMostOneInFlightFetch(t *testing.T) {
	var starts atomic.Int32
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	fetch := func(context.Context) ([]jobs.Job, error) {
		starts.Add(1)
		started <- struct{}{}
		<-release
		return nil, nil
	}
	sink := func([]jobs.Job, error) poller.Decision { return poller.DecisionStop }

	s := poller.New(fetch, sink, poller.Options{Baseline: time.Hour, Aggressive: time.Minute})
	defer s.Stop()

	s.Kick()
	waitSignal(t, started, "first fetch to start")

	// Further triggers while the fetch is outstanding must coalesce.
	s.Kick()
	s.Kick()
	time.Sleep(50 * time.Millisecond)
	if got := starts.Load(); got != 1 {
		t.Fatalf("expected a single in-flight fetch, got %d", got)
	}
	close(release)
}

func TestRunNowWaitsForInFlightFetch(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) ([]jobs.Job, error) {
		calls.Add(1)
		started <- struct{}{}
		if calls.Load() == 1 {
			<-release
		}
		return nil, nil
	}
	sink := func([]jobs.Job, error) poller.Decision { return poller.DecisionStop }

	s := poller.New(fetch, sink, poller.Options{Baseline: time.Hour, Aggressive: time.Minute})
	defer s.Stop()

	s.Kick()
	waitSignal(t, started, "kicked fetch to start")

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background()) }()

	select {
	case <-done:
		t.Fatal("RunNow returned while a fetch was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	waitSignal(t, started, "RunNow fetch to start")
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunNow error: %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("RunNow never completed")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 serialized fetches, got %d", calls.Load())
	}
}

func TestCadenceFollowsSinkDecision(t *testing.T) {
	decisions := make(chan poller.Decision, 4)
	fetch := func(context.Context) ([]jobs.Job, error) { return nil, nil }
	sink := func([]jobs.Job, error) poller.Decision { return <-decisions }

	s := poller.New(fetch, sink, poller.Options{Baseline: time.Hour, Aggressive: time.Minute})
	defer s.Stop()

	decisions <- poller.DecisionAggressive
	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow error: %v", err)
	}
	if interval, armed := s.NextInterval(); !armed || interval != time.Minute {
		t.Fatalf("expected aggressive re-arm, got %v (armed=%v)", interval, armed)
	}

	decisions <- poller.DecisionBaseline
	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow error: %v", err)
	}
	if interval, armed := s.NextInterval(); !armed || interval != time.Hour {
		t.Fatalf("expected baseline re-arm, got %v (armed=%v)", interval, armed)
	}

	decisions <- poller.DecisionStop
	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow error: %v", err)
	}
	if _, armed := s.NextInterval(); armed {
		t.Fatal("expected timer disarmed after DecisionStop")
	}
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	fetch := func(context.Context) ([]jobs.Job, error) {
		started <- struct{}{}
		<-release
		return []jobs.Job{{ID: 1, Name: "late"}}, nil
	}
	var sinkCalls atomic.Int32
	sink := func([]jobs.Job, error) poller.Decision {
		sinkCalls.Add(1)
		return poller.DecisionBaseline
	}

	s := poller.New(fetch, sink, poller.Options{Baseline: time.Hour, Aggressive: time.Minute})

	s.Kick()
	waitSignal(t, started, "fetch to start")
	s.Stop()
	close(release)

	time.Sleep(50 * time.Millisecond)
	if sinkCalls.Load() != 0 {
		t.Fatal("stale fetch result must be discarded after Stop")
	}
	if _, armed := s.NextInterval(); armed {
		t.Fatal("timer must stay disarmed after Stop")
	}
}

func TestStopCancelsPendingTimer(t *testing.T) {
	fetch := func(context.Context) ([]jobs.Job, error) { return nil, nil }
	sink := func([]jobs.Job, error) poller.Decision { return poller.DecisionBaseline }

	s := poller.New(fetch, sink, poller.Options{Baseline: time.Hour, Aggressive: time.Minute})
	s.Start()
	if _, armed := s.NextInterval(); !armed {
		t.Fatal("Start must arm the baseline timer")
	}
	s.Stop()
	if _, armed := s.NextInterval(); armed {
		t.Fatal("Stop must cancel the pending timer")
	}
	if err := s.RunNow(context.Background()); !errors.Is(err, poller.ErrStopped) {
		t.Fatalf("RunNow after Stop should return ErrStopped, got %v", err)
	}
}

func TestConsecutiveFailuresTrackStreak(t *testing.T) {
	fail := errors.New("network unreachable")
	var succeed atomic.Bool
	fetch := func(context.Context) ([]jobs.Job, error) {
		if succeed.Load() {
			return nil, nil
		}
		return nil, fail
	}
	sink := func(_ []jobs.Job, err error) poller.Decision { return poller.DecisionStop }

	s := poller.New(fetch, sink, poller.Options{Baseline: time.Hour, Aggressive: time.Minute})
	defer s.Stop()

	for i := 1; i <= 3; i++ {
		if err := s.RunNow(context.Background()); !errors.Is(err, fail) {
			t.Fatalf("expected fetch error, got %v", err)
		}
		if got := s.ConsecutiveFailures(); got != i {
			t.Fatalf("expected failure streak %d, got %d", i, got)
		}
	}

	succeed.Store(true)
	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow error: %v", err)
	}
	if got := s.ConsecutiveFailures(); got != 0 {
		t.Fatalf("expected streak reset, got %d", got)
	}
}

func TestTimerFiresAtCadence(t *testing.T) {
	fetched := make(chan struct{}, 8)
	fetch := func(context.Context) ([]jobs.Job, error) {
		fetched <- struct{}{}
		return nil, nil
	}
	sink := func([]jobs.Job, error) poller.Decision { return poller.DecisionAggressive }

	s := poller.New(fetch, sink, poller.Options{Baseline: 50 * time.Millisecond, Aggressive: 10 * time.Millisecond})
	defer s.Stop()

	s.Start()
	waitSignal(t, fetched, "first timer-driven fetch")
	waitSignal(t, fetched, "second timer-driven fetch")
}
