package maptiles

import "testing"

func TestEventListeners(t *testing.T) {
	ev := NewEvent()

	var got []interface{}
	remove := ev.AddListener(func(p interface{}) { got = append(got, p) })

	ev.Raise("a")
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("after raise: got %v", got)
	}

	remove()
	ev.Raise("b")
	if len(got) != 1 {
		t.Errorf("removed listener still invoked: %v", got)
	}
}

func TestEventMultipleListeners(t *testing.T) {
	ev := NewEvent()

	count := 0
	ev.AddListener(func(interface{}) { count++ })
	ev.AddListener(func(interface{}) { count++ })

	ev.Raise(nil)
	if count != 2 {
		t.Errorf("listener invocations: got %d, want 2", count)
	}
}
