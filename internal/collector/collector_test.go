package collector

import (
	"errors"
	"testing"
	"time"
)

func TestExpectedZeroResolvesImmediately(t *testing.T) {
	c := New("c1", 0)
	if !c.Completed() {
		t.Fatal("expected collector with 0 contributions to be complete at creation")
	}
	results, err := c.WaitForAll(time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result map, got %v", results)
	}
}

func TestWaitForAllResolvesOnceAllContributionsArrive(t *testing.T) {
	c := New("c1", 2)
	go func() {
		c.SubmitResult("a", 1)
		c.SubmitResult("b", 2)
	}()

	results, err := c.WaitForAll(time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results["a"] != 1 || results["b"] != 2 {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestErrorsCountTowardExpectedButAreReadSeparately(t *testing.T) {
	c := New("c1", 2)
	c.SubmitResult("a", "ok")
	c.SubmitError("b", errors.New("boom"))

	results, err := c.WaitForAll(time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := results["b"]; ok {
		t.Fatal("errored contribution must not appear in results")
	}
	if len(c.Errors()) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(c.Errors()))
	}
}

func TestSubmitIsAtMostOncePerName(t *testing.T) {
	c := New("c1", 1)
	c.SubmitResult("a", "first")
	c.SubmitResult("a", "second")
	c.SubmitError("a", errors.New("third"))

	results := c.Results()
	if results["a"] != "first" {
		t.Fatalf("expected first submission to stick, got %v", results["a"])
	}
	if len(c.Errors()) != 0 {
		t.Fatal("a later error submission must not override an already-recorded result")
	}
}

func TestWaitForAllTimesOutWithPartialSnapshot(t *testing.T) {
	c := New("c1", 2)
	c.SubmitResult("a", 1)

	results, err := c.WaitForAll(20 * time.Millisecond)
	if _, ok := err.(*ErrTimeout); !ok {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if results["a"] != 1 {
		t.Fatalf("expected partial result preserved, got %v", results)
	}
	if c.Completed() {
		t.Fatal("collector must not be marked complete after a timeout")
	}
}

func TestTableCreateAndDispose(t *testing.T) {
	tbl := NewTable()
	c := tbl.Create(1)
	if c.ID == "" {
		t.Fatal("expected a generated collector id")
	}
	tbl.Dispose(c.ID)
	tbl.Dispose(c.ID) // idempotent
}

func TestTableDestroyAllCompletesPendingWaiters(t *testing.T) {
	tbl := NewTable()
	c := tbl.Create(5)
	c.SubmitResult("a", 1)

	sentinel := errors.New("destroyed")
	waited := make(chan error, 1)
	go func() {
		_, err := c.WaitForAll(time.Second)
		waited <- err
	}()
	time.Sleep(20 * time.Millisecond)

	tbl.DestroyAll(sentinel)

	select {
	case err := <-waited:
		if err != sentinel {
			t.Fatalf("expected WaitForAll to return the destroy sentinel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected DestroyAll to unblock pending WaitForAll callers")
	}
}
