package shelly

import (
	"sync"
)

// Event names, used by sinks that need a string label.
const (
	EventStart         = "start"
	EventStop          = "stop"
	EventDiscover      = "discover"
	EventUnknownDevice = "unknownDevice"
	EventAdd           = "add"
	EventRemove        = "remove"
	EventStale         = "stale"
)

// UnknownDevice is the payload of the unknownDevice event.
type UnknownDevice struct {
	Type string
	ID   string
	Host string
}

// Identity returns the identity the unknown device announced.
func (u UnknownDevice) Identity() Identity {
	return Identity{Type: u.Type, ID: u.ID}
}

// Topic is a typed publish/subscribe channel for one event kind.
//
// Handlers run one at a time, in publication order, on the delivery
// goroutine of the owning Shellies. A panicking handler is logged and
// does not affect other handlers.
type Topic[T any] struct {
	name string

	mu     sync.RWMutex
	subs   []subscription[T]
	nextID uint64
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

func newTopic[T any](name string) *Topic[T] {
	return &Topic[T]{name: name}
}

// Name returns the event name.
func (t *Topic[T]) Name() string {
	return t.name
}

// Subscribe registers fn for every future event on this topic.
//
// Returns:
//   - unsubscribe: removes the handler; safe to call more than once
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	subs := make([]subscription[T], len(t.subs), len(t.subs)+1)
	copy(subs, t.subs)
	t.subs = append(subs, subscription[T]{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			kept := make([]subscription[T], 0, len(t.subs))
			for _, s := range t.subs {
				if s.id != id {
					kept = append(kept, s)
				}
			}
			t.subs = kept
		})
	}
}

// Subscribers returns the number of registered handlers.
func (t *Topic[T]) Subscribers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// emit calls every handler with v.
func (t *Topic[T]) emit(v T, logger Logger) {
	t.mu.RLock()
	subs := t.subs
	t.mu.RUnlock()

	for _, s := range subs {
		t.call(s.fn, v, logger)
	}
}

func (t *Topic[T]) call(fn func(T), v T, logger Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked", "event", t.name, "panic", r)
		}
	}()
	fn(v)
}

// Events groups the lifecycle topics published by Shellies.
type Events struct {
	// Start fires after the listener starts.
	Start *Topic[struct{}]

	// Stop fires after the listener stops.
	Stop *Topic[struct{}]

	// Discover fires when a status update creates a new device.
	Discover *Topic[Device]

	// UnknownDevice fires for status updates from unsupported models.
	UnknownDevice *Topic[UnknownDevice]

	// Add fires when a device is added explicitly.
	Add *Topic[Device]

	// Remove fires on every removal, including stale evictions.
	Remove *Topic[Device]

	// Stale fires when a device stays offline for the stale time.
	Stale *Topic[Device]
}

func newEvents() *Events {
	return &Events{
		Start:         newTopic[struct{}](EventStart),
		Stop:          newTopic[struct{}](EventStop),
		Discover:      newTopic[Device](EventDiscover),
		UnknownDevice: newTopic[UnknownDevice](EventUnknownDevice),
		Add:           newTopic[Device](EventAdd),
		Remove:        newTopic[Device](EventRemove),
		Stale:         newTopic[Device](EventStale),
	}
}
