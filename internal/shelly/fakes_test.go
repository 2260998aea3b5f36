package shelly

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-shelly/internal/coiot"
)

// fakeClock fires timers only when Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// active returns timers that are neither stopped nor fired.
func (c *fakeClock) active() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fakeListener records lifecycle calls and lets tests inject status updates.
type fakeListener struct {
	mu        sync.Mutex
	listening bool
	startErr  error
	stopErr   error
	onStart   func()
	onStop    func()
	onStatus  func(coiot.StatusUpdate)
}

func (l *fakeListener) Start(context.Context) error {
	l.mu.Lock()
	if l.startErr != nil {
		l.mu.Unlock()
		return l.startErr
	}
	if l.listening {
		l.mu.Unlock()
		return nil
	}
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
	if l.stopErr != nil {
		l.mu.Unlock()
		return l.stopErr
	}
	if !l.listening {
		l.mu.Unlock()
		return nil
	}
	l.listening = false
	cb := l.onStop
	l.mu.Unlock()
	if cb != nil {
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

func (l *fakeListener) SetOnStatusUpdate(fn func(coiot.StatusUpdate)) {
	l.mu.Lock()
	l.onStatus = fn
	l.mu.Unlock()
}

// deliver sends a status update as if it arrived from the network.
func (l *fakeListener) deliver(msg coiot.StatusUpdate) {
	l.mu.Lock()
	cb := l.onStatus
	l.mu.Unlock()
	cb(msg)
}

// fakeDevice is a comparable device handle whose liveness is driven by tests.
type fakeDevice struct {
	deviceType string
	id         string

	mu       sync.Mutex
	host     string
	updates  []coiot.StatusUpdate
	watchers map[int]func(bool)
	nextID   int
	closed   bool
}

func newFakeDevice(deviceType, id, host string) *fakeDevice {
	return &fakeDevice{deviceType: deviceType, id: id, host: host, watchers: make(map[int]func(bool))}
}

func (d *fakeDevice) Type() string { return d.deviceType }
func (d *fakeDevice) ID() string   { return d.id }

func (d *fakeDevice) Host() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.host
}

func (d *fakeDevice) Update(msg coiot.StatusUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, msg)
	if msg.Host != "" {
		d.host = msg.Host
	}
}

func (d *fakeDevice) WatchLiveness(fn func(bool)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.watchers[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.watchers, id)
	}
}

func (d *fakeDevice) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// setOnline notifies watchers as the device would on a liveness transition.
func (d *fakeDevice) setOnline(online bool) {
	d.mu.Lock()
	fns := make([]func(bool), 0, len(d.watchers))
	for _, fn := range d.watchers {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(online)
	}
}

func (d *fakeDevice) watcherCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.watchers)
}

func (d *fakeDevice) updateCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.updates)
}

// fakeFactory creates fakeDevices for a fixed set of model tags.
type fakeFactory struct {
	mu      sync.Mutex
	known   map[string]bool
	created []*fakeDevice
}

func newFakeFactory(types ...string) *fakeFactory {
	f := &fakeFactory{known: make(map[string]bool)}
	for _, t := range types {
		f.known[t] = true
	}
	return f
}

func (f *fakeFactory) Create(deviceType, deviceID, host string) Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known[deviceType] {
		return nil
	}
	d := newFakeDevice(deviceType, deviceID, host)
	f.created = append(f.created, d)
	return d
}

func (f *fakeFactory) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// recorder captures every published event as "kind key".
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(kind, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key == "" {
		r.events = append(r.events, kind)
		return
	}
	r.events = append(r.events, kind+" "+key)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, e := range r.all() {
		if e == kind || strings.HasPrefix(e, kind+" ") {
			n++
		}
	}
	return n
}

func (r *recorder) subscribe(ev *Events) {
	ev.Start.Subscribe(func(struct{}) { r.add(EventStart, "") })
	ev.Stop.Subscribe(func(struct{}) { r.add(EventStop, "") })
	ev.Discover.Subscribe(func(d Device) { r.add(EventDiscover, IdentityOf(d).Key()) })
	ev.UnknownDevice.Subscribe(func(u UnknownDevice) {
		r.add(EventUnknownDevice, fmt.Sprintf("%s@%s", u.Identity().Key(), u.Host))
	})
	ev.Add.Subscribe(func(d Device) { r.add(EventAdd, IdentityOf(d).Key()) })
	ev.Remove.Subscribe(func(d Device) { r.add(EventRemove, IdentityOf(d).Key()) })
	ev.Stale.Subscribe(func(d Device) { r.add(EventStale, IdentityOf(d).Key()) })
}

// harness bundles a Shellies instance with its fakes.
type harness struct {
	s        *Shellies
	listener *fakeListener
	factory  *fakeFactory
	clock    *fakeClock
	rec      *recorder
}

func newHarness(t *testing.T, staleTime time.Duration) *harness {
	t.Helper()

	h := &harness{
		listener: &fakeListener{},
		factory:  newFakeFactory("SHSW-1", "SHSW-PM", "SHSW-25"),
		clock:    &fakeClock{},
		rec:      &recorder{},
	}

	s, err := New(Options{
		Listener:  h.listener,
		Factory:   h.factory,
		StaleTime: staleTime,
		Clock:     h.clock,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	h.s = s
	h.rec.subscribe(s.Events())
	return h
}

// sync waits until every reaction and delivery queued so far has run.
func (s *Shellies) sync() {
	s.reactions.call(func() {})
	s.delivery.call(func() {})
}

// armed reports, from the reaction goroutine, whether a stale countdown runs for id.
func (s *Shellies) armed(id Identity) bool {
	var armed bool
	s.reactions.call(func() { armed = s.staleness.armed(id) })
	return armed
}

func status(deviceType, id, host string) coiot.StatusUpdate {
	return coiot.StatusUpdate{DeviceType: deviceType, DeviceID: id, Host: host}
}

// discover delivers a status update and returns the resulting fake device.
func (h *harness) discover(t *testing.T, deviceType, id, host string) *fakeDevice {
	t.Helper()
	h.listener.deliver(status(deviceType, id, host))
	h.s.sync()

	d, ok := h.s.Get(deviceType, id)
	if !ok {
		t.Fatalf("device %s#%s not registered", deviceType, id)
	}
	return d.(*fakeDevice)
}

func equalEvents(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %q, want %q", got, want)
		}
	}
}
