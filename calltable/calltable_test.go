package calltable

import (
	"testing"
	"time"
)

func TestResolveDelivers(t *testing.T) {
	tab := New()
	var status Status
	var value any
	done := make(chan struct{})
	tab.Insert(1, 0, func(s Status, v any) {
		status, value = s, v
		close(done)
	})

	tab.Resolve(1, Success, 42)
	<-done

	if status != Success || value != 42 {
		t.Fatalf("got (%v, %v), want (Success, 42)", status, value)
	}
	if tab.Len() != 0 {
		t.Fatalf("table still holds %d entries after resolve", tab.Len())
	}
}

func TestResolveUnknownIDIsNoop(t *testing.T) {
	tab := New()
	tab.Resolve(99, Success, "whatever") // must not panic
}

func TestTimeoutFiresWhenUnresolved(t *testing.T) {
	tab := New()
	done := make(chan Status, 1)
	tab.Insert(1, 10*time.Millisecond, func(s Status, v any) {
		done <- s
	})

	select {
	case s := <-done:
		if s != Timeout {
			t.Fatalf("status = %v, want Timeout", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout did not fire")
	}
}

func TestResolveBeforeTimeoutWins(t *testing.T) {
	tab := New()
	calls := make(chan Status, 2)
	tab.Insert(1, 20*time.Millisecond, func(s Status, v any) {
		calls <- s
	})
	tab.Resolve(1, Success, "ok")

	select {
	case s := <-calls:
		if s != Success {
			t.Fatalf("status = %v, want Success", s)
		}
	case <-time.After(time.Second):
		t.Fatal("completion never invoked")
	}

	// Wait past the timer's original deadline; it must not fire a second time.
	select {
	case s := <-calls:
		t.Fatalf("completion invoked a second time with status %v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimeoutBeforeResolveWins(t *testing.T) {
	tab := New()
	calls := make(chan Status, 2)
	tab.Insert(1, 10*time.Millisecond, func(s Status, v any) {
		calls <- s
	})

	select {
	case s := <-calls:
		if s != Timeout {
			t.Fatalf("status = %v, want Timeout", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout did not fire")
	}

	// A late-arriving response for the same id must be dropped, not delivered.
	tab.Resolve(1, Success, "late")
	select {
	case s := <-calls:
		t.Fatalf("completion invoked a second time with status %v", s)
	case <-time.After(50 * time.Millisecond):
	}
}
