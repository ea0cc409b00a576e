package bus

import (
	"testing"
)

type noteEvent struct {
	N int
}

func (noteEvent) Kind() Kind { return "note" }

type tickEvent struct {
	Name string
}

func (tickEvent) Kind() Kind { return "tick" }

func TestEmitReachesAllSubscribers(t *testing.T) {
	b := New()

	var got []int
	b.On(func(ev Event) { got = append(got, ev.(noteEvent).N) }, "note")
	b.On(func(ev Event) { got = append(got, ev.(noteEvent).N*10) }, "note")

	b.Emit(noteEvent{N: 3})

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	sum := got[0] + got[1]
	if sum != 33 {
		t.Errorf("deliveries = %v, want {3, 30} in some order", got)
	}
}

func TestEmitWithNoSubscribers(t *testing.T) {
	b := New()
	// Must not panic and must still populate the cache.
	b.Emit(noteEvent{N: 1})

	ev, ok := b.Cached("note", false)
	if !ok {
		t.Fatal("expected cached event")
	}
	if ev.(noteEvent).N != 1 {
		t.Errorf("cached N = %d, want 1", ev.(noteEvent).N)
	}
}

func TestCancelledHandlerNotInvoked(t *testing.T) {
	b := New()

	calls := 0
	sub := b.On(func(Event) { calls++ }, "note")
	sub.Cancel()

	b.Emit(noteEvent{N: 1})
	if calls != 0 {
		t.Errorf("cancelled handler invoked %d times", calls)
	}

	// Cancelling twice is harmless.
	sub.Cancel()
}

func TestLateSubscriberMissesPastEmission(t *testing.T) {
	b := New()
	b.Emit(noteEvent{N: 1})

	calls := 0
	b.On(func(Event) { calls++ }, "note")
	if calls != 0 {
		t.Errorf("handler invoked for past emission %d times", calls)
	}

	// But the cache bridges the gap.
	if _, ok := b.Cached("note", false); !ok {
		t.Error("expected cached event for late subscriber")
	}
}

func TestMultiKindSubscription(t *testing.T) {
	b := New()

	var kinds []Kind
	sub := b.On(func(ev Event) { kinds = append(kinds, ev.Kind()) }, "note", "tick")

	b.Emit(noteEvent{N: 1})
	b.Emit(tickEvent{Name: "a"})

	if len(kinds) != 2 || kinds[0] != "note" || kinds[1] != "tick" {
		t.Errorf("kinds = %v, want [note tick]", kinds)
	}

	sub.Cancel()
	b.Emit(noteEvent{N: 2})
	b.Emit(tickEvent{Name: "b"})
	if len(kinds) != 2 {
		t.Errorf("handler still invoked after cancel, kinds = %v", kinds)
	}
}

func TestCacheReadAndClear(t *testing.T) {
	b := New()
	b.Emit(noteEvent{N: 7})

	ev, ok := b.Cached("note", false)
	if !ok || ev.(noteEvent).N != 7 {
		t.Fatalf("Cached(false) = %v, %v; want noteEvent{7}, true", ev, ok)
	}

	ev, ok = b.Cached("note", true)
	if !ok || ev.(noteEvent).N != 7 {
		t.Fatalf("Cached(true) = %v, %v; want noteEvent{7}, true", ev, ok)
	}

	if _, ok := b.Cached("note", true); ok {
		t.Error("cache slot should be empty after a clearing read")
	}
}

func TestCacheKeepsMostRecent(t *testing.T) {
	b := New()
	b.Emit(noteEvent{N: 1})
	b.Emit(noteEvent{N: 2})

	ev, _ := b.Cached("note", false)
	if ev.(noteEvent).N != 2 {
		t.Errorf("cached N = %d, want 2 (most recent wins)", ev.(noteEvent).N)
	}
}

func TestPanickingHandlerDoesNotStopFanout(t *testing.T) {
	b := New()

	survived := false
	b.On(func(Event) { panic("boom") }, "note")
	b.On(func(Event) { survived = true }, "note")

	b.Emit(noteEvent{N: 1})

	if !survived {
		t.Error("second handler should run despite first panicking")
	}
	// The emission still caches.
	if _, ok := b.Cached("note", false); !ok {
		t.Error("expected cached event after panicking handler")
	}
}

func TestListenTyped(t *testing.T) {
	b := New()

	var got []string
	sub := Listen(b, func(e tickEvent) { got = append(got, e.Name) })

	b.Emit(tickEvent{Name: "a"})
	b.Emit(noteEvent{N: 1}) // different kind, must not reach the handler
	b.Emit(tickEvent{Name: "b"})

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("got = %v, want [a b]", got)
	}

	sub.Cancel()
	b.Emit(tickEvent{Name: "c"})
	if len(got) != 2 {
		t.Errorf("handler still invoked after cancel: %v", got)
	}
}

func TestLastEventTyped(t *testing.T) {
	b := New()

	if _, ok := LastEvent[tickEvent](b, false); ok {
		t.Fatal("expected no cached event on a fresh bus")
	}

	b.Emit(tickEvent{Name: "x"})

	e, ok := LastEvent[tickEvent](b, true)
	if !ok || e.Name != "x" {
		t.Fatalf("LastEvent = %+v, %v; want {x}, true", e, ok)
	}
	if _, ok := LastEvent[tickEvent](b, false); ok {
		t.Error("cache should be empty after clearing read")
	}
}
