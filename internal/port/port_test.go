package port

import "testing"

func TestAllocateDistinctKeysGetDistinctPorts(t *testing.T) {
	a := New(20000, 20010)
	p1, err := a.Allocate("az-1", "web")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p2, err := a.Allocate("az-1", "api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("expected distinct ports, got %d and %d", p1, p2)
	}
}

func TestAllocateIsIdempotentPerKey(t *testing.T) {
	a := New(20020, 20030)
	p1, _ := a.Allocate("az-2", "web")
	p2, _ := a.Allocate("az-2", "web")
	if p1 != p2 {
		t.Fatalf("expected same port on repeat allocate, got %d and %d", p1, p2)
	}
}

func TestAllocateExhaustion(t *testing.T) {
	a := New(20040, 20041)
	if _, err := a.Allocate("az-3", "web"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := a.Allocate("az-3", "api"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := a.Allocate("az-3", "docs")
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if _, ok := err.(*ErrExhausted); !ok {
		t.Fatalf("expected *ErrExhausted, got %T", err)
	}
	if _, ok := a.Get("az-3", "docs"); ok {
		t.Fatal("expected no reservation recorded on exhaustion")
	}
}

func TestReleaseFreesKeyForReassignment(t *testing.T) {
	a := New(20050, 20051)
	p1, _ := a.Allocate("az-4", "web")
	a.Release("az-4", "web")
	if _, ok := a.Get("az-4", "web"); ok {
		t.Fatal("expected key to be gone after release")
	}
	p2, err := a.Allocate("az-4", "web2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p2 != p1 {
		t.Fatalf("expected released port %d to be reassignable, got %d", p1, p2)
	}
}

func TestReleaseIsNoOpForUnknownKey(t *testing.T) {
	a := New(20060, 20061)
	a.Release("nope", "nope")
}

func TestRebuildReplacesState(t *testing.T) {
	a := New(20070, 20080)
	_, _ = a.Allocate("az-5", "web")
	a.Rebuild([]Reservation{{Key: Key{TaskID: "az-6", ServerName: "api"}, Port: 20075}})
	if _, ok := a.Get("az-5", "web"); ok {
		t.Fatal("expected old reservation gone after rebuild")
	}
	p, ok := a.Get("az-6", "api")
	if !ok || p != 20075 {
		t.Fatalf("expected rebuilt reservation, got %d, %v", p, ok)
	}
}
