package monitor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSupervisorRejectsDuplicateStart(t *testing.T) {
	s := NewSupervisor(make(chan Event, 10))
	key := SessionKey("dup")
	run := func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}
	if err := s.Start(key, run); err != nil {
		t.Fatalf("first Start: unexpected error: %v", err)
	}
	defer s.Shutdown(time.Second)

	err := s.Start(key, run)
	var already *ErrAlreadyRunning
	if !errors.As(err, &already) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestSupervisorRestartsCrashedChildWithinBudget(t *testing.T) {
	s := NewSupervisor(make(chan Event, 10))
	s.restartLimit = 2
	s.restartWindow = time.Minute
	key := SessionKey("crashy")

	var attempts int
	done := make(chan struct{})
	run := func(ctx context.Context) error {
		attempts++
		if attempts <= 2 {
			return errors.New("boom")
		}
		close(done)
		<-ctx.Done()
		return nil
	}
	if err := s.Start(key, run); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Shutdown(time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected the monitor to be restarted until it stopped crashing")
	}
}

func TestSupervisorEmitsMarkedUnknownOnBudgetExhaustion(t *testing.T) {
	events := make(chan Event, 10)
	s := NewSupervisor(events)
	s.restartLimit = 1
	s.restartWindow = time.Minute
	key := SessionKey("exhausted")

	run := func(ctx context.Context) error {
		return errors.New("always crashes")
	}
	if err := s.Start(key, run); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case e := <-events:
		if e.Kind != EventSessionMarkedUnknown {
			t.Fatalf("expected SessionMarkedUnknown, got %v", e.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a SessionMarkedUnknown event after budget exhaustion")
	}

	if s.Running(key) {
		t.Fatal("expected the child to no longer be tracked after exhaustion")
	}
}

func TestSupervisorRecoversPanicAsCrash(t *testing.T) {
	events := make(chan Event, 10)
	s := NewSupervisor(events)
	s.restartLimit = 1
	key := SessionKey("panicky")

	run := func(ctx context.Context) error {
		panic("kaboom")
	}
	if err := s.Start(key, run); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case e := <-events:
		if e.Kind != EventSessionMarkedUnknown {
			t.Fatalf("expected SessionMarkedUnknown after panic, got %v", e.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected panic to be treated as a crash")
	}
}

func TestSupervisorStopCancelsAndAwaits(t *testing.T) {
	s := NewSupervisor(make(chan Event, 10))
	key := SessionKey("stoppable")
	started := make(chan struct{})
	run := func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return nil
	}
	if err := s.Start(key, run); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	s.Stop(key)
	if s.Running(key) {
		t.Fatal("expected child to be gone after Stop")
	}
}
