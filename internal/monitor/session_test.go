package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/azedarach/azedarach/internal/detector"
)

type fakeCapturer struct {
	outputs []string
	errs    []error
	i       int
}

func (f *fakeCapturer) CapturePane(ctx context.Context, target string, lastN int) (string, error) {
	idx := f.i
	if idx >= len(f.outputs) {
		idx = len(f.outputs) - 1
	}
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	out := ""
	if idx < len(f.outputs) {
		out = f.outputs[idx]
	}
	f.i++
	return out, err
}

func TestSessionMonitorEmitsOnStateChange(t *testing.T) {
	cap := &fakeCapturer{outputs: []string{"Running tests...", "Running tests...", "Task completed successfully"}}
	events := make(chan Event, 10)
	m := NewSessionMonitor("t1", "t1", "/tmp/doesnotneedtoexist-t1", cap, events)
	m.PollInterval = 5 * time.Millisecond
	m.StaleCheckEvery = 0

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = m.Run(ctx)
	close(events)

	var got []Event
	for e := range events {
		got = append(got, e)
	}
	if len(got) == 0 {
		t.Fatal("expected at least one event")
	}
	if got[0].State != detector.StateBusy {
		t.Fatalf("expected first event Busy, got %v", got[0].State)
	}
	last := got[len(got)-1]
	if last.State != detector.StateDone {
		t.Fatalf("expected last event Done, got %v", last.State)
	}
}

func TestSessionMonitorMarksUnknownAfterFailureBudget(t *testing.T) {
	errs := []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}
	cap := &fakeCapturer{outputs: []string{"", "", ""}, errs: errs}
	events := make(chan Event, 10)
	m := NewSessionMonitor("t2", "t2", "/tmp", cap, events)
	m.PollInterval = 5 * time.Millisecond
	m.FailureBudget = 3
	m.StaleCheckEvery = 0

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_ = m.Run(ctx)
	close(events)

	found := false
	for e := range events {
		if e.Kind == EventSessionMarkedUnknown && e.Reason == "capture failed" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a SessionMarkedUnknown(capture failed) event")
	}
}

func TestSessionMonitorDetectsMissingWorktree(t *testing.T) {
	cap := &fakeCapturer{outputs: []string{"busy output"}}
	events := make(chan Event, 10)
	m := NewSessionMonitor("t3", "t3", "/nonexistent/path/xyz", cap, events)
	m.PollInterval = 5 * time.Millisecond
	m.StaleCheckEvery = 1

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = m.Run(ctx)
	close(events)

	found := false
	for e := range events {
		if e.Kind == EventSessionMarkedUnknown && e.Reason == "worktree missing" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a SessionMarkedUnknown(worktree missing) event")
	}
}

func TestSessionMonitorExitsCleanlyOnCancel(t *testing.T) {
	cap := &fakeCapturer{outputs: []string{""}}
	events := make(chan Event, 10)
	m := NewSessionMonitor("t4", "t4", "/tmp", cap, events)
	m.PollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("expected nil on cooperative cancellation, got %v", err)
	}
}
