package mailbox

import "testing"

func TestEnqueueDequeueOrdersByPriority(t *testing.T) {
	m := New[string](0)
	m.Enqueue("low", 3)
	m.Enqueue("high", 0)

	v, ok := m.Dequeue()
	if !ok || v != "high" {
		t.Fatalf("expected high first, got %v", v)
	}
	v, ok = m.Dequeue()
	if !ok || v != "low" {
		t.Fatalf("expected low second, got %v", v)
	}
}

func TestOverflowDropsIncomingWhenNotStrictlyHigher(t *testing.T) {
	m := New[string](1)
	if !m.Enqueue("existing", 2) {
		t.Fatal("expected first enqueue to succeed")
	}
	if m.Enqueue("same-priority", 2) {
		t.Fatal("expected equal-priority enqueue to be dropped when full")
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 item still queued, got %d", m.Len())
	}
	v, _ := m.TryDequeue()
	if v != "existing" {
		t.Fatalf("expected original message to survive, got %v", v)
	}
}

func TestOverflowDisplacesLowestPriorityOccupant(t *testing.T) {
	m := New[string](1)
	m.Enqueue("low-priority", 4)
	if !m.Enqueue("high-priority", 0) {
		t.Fatal("expected strictly-higher-priority message to displace the occupant")
	}
	v, ok := m.TryDequeue()
	if !ok || v != "high-priority" {
		t.Fatalf("expected the displacing message to remain queued, got %v", v)
	}
	if _, ok := m.TryDequeue(); ok {
		t.Fatal("expected mailbox empty after the one surviving message")
	}
}

func TestCloseWakesDequeue(t *testing.T) {
	m := New[string](0)
	done := make(chan struct{})
	go func() {
		_, ok := m.Dequeue()
		if ok {
			t.Error("expected ok=false after close on empty mailbox")
		}
		close(done)
	}()
	m.Close()
	<-done
}

func TestEnqueueAfterCloseRejected(t *testing.T) {
	m := New[string](0)
	m.Close()
	if m.Enqueue("x", 0) {
		t.Fatal("expected enqueue to fail after close")
	}
}
