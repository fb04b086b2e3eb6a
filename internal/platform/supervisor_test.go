package platform

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fastPolicy() SupervisorPolicy {
	return SupervisorPolicy{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffFactor:  1,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestSupervisorRestartsFailingService(t *testing.T) {
	supervisor := NewSupervisor(fastPolicy(), nil)
	var calls atomic.Int32
	err := supervisor.Go("watcher", RestartOnFailure, func(ctx context.Context) error {
		if calls.Add(1) <= 2 {
			return errors.New("boom")
		}
		<-ctx.Done()
		return nil
	})
	if err != nil {
		t.Fatalf("start service: %v", err)
	}
	waitFor(t, func() bool { return calls.Load() >= 3 })

	status := supervisor.Status()
	if len(status) != 1 || status[0].RestartCount != 2 || status[0].LastError != "boom" || !status[0].Running {
		t.Fatalf("unexpected status: %+v", status)
	}
	supervisor.StopAll()
	if supervisor.Status()[0].Running {
		t.Fatal("expected service stopped after StopAll")
	}
}

func TestSupervisorOnFailureLetsCleanExitFinish(t *testing.T) {
	supervisor := NewSupervisor(fastPolicy(), nil)
	var calls atomic.Int32
	if err := supervisor.Go("once", RestartOnFailure, func(context.Context) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("start service: %v", err)
	}
	waitFor(t, func() bool { return !supervisor.Status()[0].Running })
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestSupervisorGivesUpAfterMaxRestarts(t *testing.T) {
	policy := fastPolicy()
	policy.MaxRestarts = 2
	supervisor := NewSupervisor(policy, nil)
	var calls atomic.Int32
	if err := supervisor.Go("flaky", RestartAlways, func(context.Context) error {
		calls.Add(1)
		return errors.New("down")
	}); err != nil {
		t.Fatalf("start service: %v", err)
	}
	waitFor(t, func() bool { return !supervisor.Status()[0].Running })
	status := supervisor.Status()[0]
	if !status.GaveUp || calls.Load() != 3 {
		t.Fatalf("expected give up after 3 calls, got status=%+v calls=%d", status, calls.Load())
	}
}

func TestSupervisorStopByNameAndDuplicates(t *testing.T) {
	supervisor := NewSupervisor(fastPolicy(), nil)
	stopped := make(chan struct{})
	if err := supervisor.Go("http", RestartNever, func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	}); err != nil {
		t.Fatalf("start service: %v", err)
	}
	if err := supervisor.Go("http", RestartNever, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected duplicate service name to fail")
	}
	supervisor.Stop("http")
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("expected service to observe cancellation")
	}
	if err := supervisor.Go("bad", "sometimes", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected unsupported restart policy to fail")
	}
}
