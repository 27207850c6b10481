package runner

import (
	"context"
	"testing"
	"time"
)

func TestRunCapturesOutput(t *testing.T) {
	r := New()
	res, err := r.Run(context.Background(), "echo", []string{"hello"}, "", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "hello" {
		t.Fatalf("expected stdout %q, got %q", "hello", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}
}

func TestRunCapturesExitCode(t *testing.T) {
	r := New()
	res, err := r.Run(context.Background(), "sh", []string{"-c", "exit 3"}, "", time.Second)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
}

func TestRunTimesOut(t *testing.T) {
	r := New()
	_, err := r.Run(context.Background(), "sleep", []string{"2"}, "", 50*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestFakeReturnsRegisteredResult(t *testing.T) {
	f := NewFake().On(Result{Stdout: "ok"}, "git", "status")
	res, err := f.Run(context.Background(), "git", []string{"status"}, "", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "ok" {
		t.Fatalf("expected stdout %q, got %q", "ok", res.Stdout)
	}
	if len(f.Calls) != 1 {
		t.Fatalf("expected 1 recorded call, got %d", len(f.Calls))
	}
}

func TestFakeUnmatchedCallErrors(t *testing.T) {
	f := NewFake()
	_, err := f.Run(context.Background(), "git", []string{"status"}, "", time.Second)
	if err == nil {
		t.Fatal("expected error for unmatched call")
	}
}
