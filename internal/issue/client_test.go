package issue

import (
	"context"
	"testing"

	"github.com/azedarach/azedarach/internal/runner"
)

func TestListAllDecodesTasks(t *testing.T) {
	f := runner.NewFake().On(runner.Result{Stdout: `[{"id":"az-1","title":"Add login","type":"feature","status":"backlog","priority":"P1"}]`},
		"bd", "list", "--json")
	c := New(f, "/repo")
	tasks, err := c.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "az-1" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestListAllToleratesUnknownFields(t *testing.T) {
	f := runner.NewFake().On(runner.Result{Stdout: `[{"id":"az-1","title":"x","type":"task","status":"backlog","priority":"P2","extra_field":"ignored"}]`},
		"bd", "list", "--json")
	c := New(f, "/repo")
	tasks, err := c.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tasks[0].ID != "az-1" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestListAllParseErrorOnBadJSON(t *testing.T) {
	f := runner.NewFake().On(runner.Result{Stdout: `not json`}, "bd", "list", "--json")
	c := New(f, "/repo")
	_, err := c.ListAll(context.Background())
	if err == nil {
		t.Fatal("expected parse error")
	}
	var e *Error
	if ee, ok := err.(*Error); ok {
		e = ee
	}
	if e == nil || e.Kind != KindParseError {
		t.Fatalf("expected KindParseError, got %+v", err)
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	c := New(runner.NewFake(), "/repo")
	_, err := c.Create(context.Background(), CreateOptions{Type: TypeTask, Priority: P2})
	if err == nil {
		t.Fatal("expected error for missing title")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind != KindInvalid {
		t.Fatalf("expected KindInvalid, got %+v", err)
	}
}

func TestToolErrorWrapsStderr(t *testing.T) {
	f := runner.NewFake().OnErrorResult(runner.Result{Stderr: "not found"}, assertErr{},
		"bd", "close", "az-9", "--reason", "done")
	c := New(f, "/repo")
	err := c.Close(context.Background(), "az-9", "done")
	if err == nil {
		t.Fatal("expected error")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind != KindToolError {
		t.Fatalf("expected KindToolError, got %+v", err)
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "exit status 1" }
