package conversation

import (
	"context"
	"testing"
	"time"
)

func TestRegistryInsertRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	a := NewContext("CA1", "p")
	b := NewContext("CA1", "p")

	if !r.Insert(a) {
		t.Fatal("first insert rejected")
	}
	if r.Insert(b) {
		t.Fatal("duplicate call id accepted")
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d, want 1", r.Count())
	}
	if r.Get("CA1") != a {
		t.Fatal("Get returned the wrong context")
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	a := NewContext("CA1", "p")
	r.Insert(a)

	if got := r.Remove("CA1"); got != a {
		t.Fatalf("Remove = %v, want the inserted context", got)
	}
	if got := r.Remove("CA1"); got != nil {
		t.Fatalf("second Remove = %v, want nil", got)
	}
	if r.Count() != 0 {
		t.Fatalf("count = %d, want 0", r.Count())
	}
}

func TestRegistryWaitDrains(t *testing.T) {
	r := NewRegistry()
	r.Insert(NewContext("CA1", "p"))
	r.Insert(NewContext("CA2", "p"))

	go func() {
		time.Sleep(20 * time.Millisecond)
		r.Remove("CA1")
		r.Remove("CA2")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !r.Wait(ctx) {
		t.Fatal("Wait did not observe the drain")
	}
}

func TestRegistryWaitTimesOut(t *testing.T) {
	r := NewRegistry()
	r.Insert(NewContext("CA1", "p"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if r.Wait(ctx) {
		t.Fatal("Wait reported drained with a live conversation")
	}
	r.Remove("CA1")
}
