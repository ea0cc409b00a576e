// Package bus provides a typed publish/subscribe register with a single-slot
// last-value cache per event kind. It is the only notification channel
// between the chat client and its consumers: the client emits, consumers
// subscribe, and a consumer that subscribes late can still pick up the most
// recent occurrence of an event from the cache.
package bus

import (
	"log"
	"sync"
)

// Kind identifies the kind of an event on the bus.
type Kind string

// Event is a payload published on the bus. The concrete implementations form
// a closed set; see the chat package for the event vocabulary.
type Event interface {
	Kind() Kind
}

// Handler is invoked synchronously for each emitted event it subscribed to.
type Handler func(Event)

// Subscription identifies a registered handler so it can be removed again.
// Go functions are not comparable, so identity lives in the token rather
// than the handler value itself.
type Subscription struct {
	bus   *Bus
	id    int
	kinds []Kind
}

// Bus dispatches events to subscribers and remembers the most recent payload
// per kind. Emitting with zero subscribers is not an error.
type Bus struct {
	mu     sync.Mutex
	subs   map[Kind]map[int]Handler
	cache  map[Kind]Event
	nextID int
}

func New() *Bus {
	return &Bus{
		subs:  make(map[Kind]map[int]Handler),
		cache: make(map[Kind]Event),
	}
}

// On registers h for one or more event kinds and returns the token that
// removes it again. Registering the same function twice yields two
// independent subscriptions.
func (b *Bus) On(h Handler, kinds ...Kind) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	for _, k := range kinds {
		m, ok := b.subs[k]
		if !ok {
			m = make(map[int]Handler)
			b.subs[k] = m
		}
		m[id] = h
	}
	return &Subscription{bus: b, id: id, kinds: kinds}
}

// Cancel removes the subscription from every kind it was registered for.
// Cancelling twice, or cancelling a nil subscription, is a no-op.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	b := s.bus
	b.mu.Lock()
	for _, k := range s.kinds {
		delete(b.subs[k], s.id)
	}
	b.mu.Unlock()
	s.bus = nil
}

// Emit invokes every handler currently registered for ev's kind, then stores
// ev as the kind's cached value. A panicking handler does not stop the rest
// of the fan-out.
func (b *Bus) Emit(ev Event) {
	k := ev.Kind()

	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[k]))
	for _, h := range b.subs[k] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		call(h, ev)
	}

	b.mu.Lock()
	b.cache[k] = ev
	b.mu.Unlock()
}

func call(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bus: handler panic on %s: %v", ev.Kind(), r)
		}
	}()
	h(ev)
}

// Cached returns the most recently emitted event of the given kind, if any.
// With clear set, the slot is emptied atomically with the read, so racing
// readers observe the value at most once.
func (b *Bus) Cached(k Kind, clear bool) (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ev, ok := b.cache[k]
	if ok && clear {
		delete(b.cache, k)
	}
	return ev, ok
}

// Listen registers a handler for E's kind with a typed signature.
func Listen[E Event](b *Bus, fn func(E)) *Subscription {
	var zero E
	return b.On(func(ev Event) {
		if e, ok := ev.(E); ok {
			fn(e)
		}
	}, zero.Kind())
}

// LastEvent returns the cached event of E's kind, typed.
func LastEvent[E Event](b *Bus, clear bool) (E, bool) {
	var zero E
	ev, ok := b.Cached(zero.Kind(), clear)
	if !ok {
		return zero, false
	}
	e, ok := ev.(E)
	return e, ok
}
