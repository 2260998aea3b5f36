package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/nerrad567/gray-logic-shelly/internal/coiot"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-shelly/internal/journal"
)

type published struct {
	topic    string
	payload  any
	retained bool
}

type fakePublisher struct {
	mu      sync.Mutex
	msgs    []published
	cleared []string
	err     error
}

func (p *fakePublisher) PublishJSON(topic string, v any, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, payload: v, retained: retained})
	return nil
}

func (p *fakePublisher) ClearRetained(topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.cleared = append(p.cleared, topic)
	return nil
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.topic)
	}
	return out
}

type fakeWriter struct {
	mu     sync.Mutex
	events []influxdb.LifecycleEvent
	sizes  []int
}

func (w *fakeWriter) WriteLifecycleEvent(ev influxdb.LifecycleEvent) {
	w.mu.Lock()
	w.events = append(w.events, ev)
	w.mu.Unlock()
}

func (w *fakeWriter) WriteRegistrySize(devices int) {
	w.mu.Lock()
	w.sizes = append(w.sizes, devices)
	w.mu.Unlock()
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, e *journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, *e)
	return nil
}

func (r *fakeRecorder) labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		label := e.Event
		if e.DeviceID != "" {
			label += " " + e.DeviceType + "#" + e.DeviceID
		}
		out = append(out, label)
	}
	return out
}

type fakeHub struct {
	mu       sync.Mutex
	channels []string
}

func (h *fakeHub) Broadcast(channel string, _ any) {
	h.mu.Lock()
	h.channels = append(h.channels, channel)
	h.mu.Unlock()
}

// fakeListener satisfies shelly.Listener without touching the network.
type fakeListener struct {
	mu        sync.Mutex
	listening bool
	onStart   func()
	onStop    func()
}

func (l *fakeListener) Start(context.Context) error {
	l.mu.Lock()
	l.listening = true
	cb := l.onStart
	l.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

func (l *fakeListener) Stop() error {
	l.mu.Lock()
	was := l.listening
	l.listening = false
	cb := l.onStop
	l.mu.Unlock()
	if was && cb != nil {
		cb()
	}
	return nil
}

func (l *fakeListener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listening
}

func (l *fakeListener) SetOnStart(fn func()) {
	l.mu.Lock()
	l.onStart = fn
	l.mu.Unlock()
}

func (l *fakeListener) SetOnStop(fn func()) {
	l.mu.Lock()
	l.onStop = fn
	l.mu.Unlock()
}

func (l *fakeListener) SetOnStatusUpdate(func(coiot.StatusUpdate)) {}

var errSink = errors.New("sink down")

func equalStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
