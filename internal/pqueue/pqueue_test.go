package pqueue

import "testing"

func TestPushPopOrdersByPriority(t *testing.T) {
	q := New[string]()
	q.Push("low", 3)
	q.Push("high", 0)
	q.Push("mid", 1)

	v, p, ok := q.Pop()
	if !ok || v != "high" || p != 0 {
		t.Fatalf("expected high priority first, got %v %v", v, p)
	}
	v, _, _ = q.Pop()
	if v != "mid" {
		t.Fatalf("expected mid second, got %v", v)
	}
	v, _, _ = q.Pop()
	if v != "low" {
		t.Fatalf("expected low third, got %v", v)
	}
}

func TestFIFOTiebreak(t *testing.T) {
	q := New[string]()
	q.Push("first", 1)
	q.Push("second", 1)
	q.Push("third", 1)

	for _, want := range []string{"first", "second", "third"} {
		v, _, ok := q.Pop()
		if !ok || v != want {
			t.Fatalf("expected %s, got %v", want, v)
		}
	}
}

func TestPopOnEmpty(t *testing.T) {
	q := New[int]()
	_, _, ok := q.Pop()
	if ok {
		t.Fatal("expected ok=false on empty queue")
	}
}

func TestPeekLowestPriorityAndRemoveAt(t *testing.T) {
	q := New[string]()
	q.Push("a", 0)
	q.Push("b", 5)
	q.Push("c", 2)

	idx, priority, ok := q.PeekLowestPriority()
	if !ok || priority != 5 {
		t.Fatalf("expected worst priority 5, got %d", priority)
	}
	removed := q.RemoveAt(idx)
	if removed != "b" {
		t.Fatalf("expected to remove b, got %s", removed)
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 items left, got %d", q.Len())
	}
}
