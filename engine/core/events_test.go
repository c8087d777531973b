package core

import (
	"reflect"
	"testing"
)

func TestEventBroadcastOrder(t *testing.T) {
	e := NewEvent[int]()
	var got []string
	e.Subscribe(func(int) { got = append(got, "a") })
	e.Subscribe(func(int) { got = append(got, "b") })
	e.Subscribe(func(int) { got = append(got, "c") })

	e.Broadcast(1)
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("broadcast order = %v, want %v", got, want)
	}

	got = nil
	e.BroadcastReverse(1)
	if want := []string{"c", "b", "a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("reverse broadcast order = %v, want %v", got, want)
	}
}

func TestEventUnsubscribeRemovesListener(t *testing.T) {
	e := NewEvent[string]()
	calls := map[string]int{}
	a := e.Subscribe(func(string) { calls["a"]++ })
	b := e.Subscribe(func(string) { calls["b"]++ })
	c := e.Subscribe(func(string) { calls["c"]++ })

	if !e.Unsubscribe(a) {
		t.Fatalf("unsubscribe of a known listener returned false")
	}
	if e.Unsubscribe(a) {
		t.Fatalf("second unsubscribe of the same listener returned true")
	}
	if e.Len() != 2 {
		t.Fatalf("len = %d, want 2", e.Len())
	}

	e.Broadcast("x")
	if calls["a"] != 0 || calls["b"] != 1 || calls["c"] != 1 {
		t.Fatalf("unexpected calls after unsubscribe: %v", calls)
	}

	// the swapped listener must still be addressable by its id
	if !e.Unsubscribe(c) || !e.Unsubscribe(b) {
		t.Fatalf("remaining listeners could not be unsubscribed")
	}
	if e.Len() != 0 {
		t.Fatalf("len = %d, want 0", e.Len())
	}
}

func TestEventSetActive(t *testing.T) {
	e := NewEvent[int]()
	sum := 0
	id := e.Subscribe(func(v int) { sum += v })

	e.SetActive(id, false)
	if e.IsActive(id) {
		t.Fatalf("listener still active")
	}
	e.Broadcast(5)
	if sum != 0 {
		t.Fatalf("inactive listener was called")
	}

	e.SetActive(id, true)
	e.Broadcast(5)
	if sum != 5 {
		t.Fatalf("sum = %d, want 5", sum)
	}
}

func TestEventSubscribeDuringBroadcast(t *testing.T) {
	e := NewEvent[int]()
	inner := 0
	e.Subscribe(func(int) {
		e.Subscribe(func(int) { inner++ })
	})
	e.Broadcast(0)
	if inner != 0 {
		t.Fatalf("listener added during broadcast ran in the same broadcast")
	}
	e.Broadcast(0)
	if inner != 1 {
		t.Fatalf("inner = %d, want 1", inner)
	}
}
