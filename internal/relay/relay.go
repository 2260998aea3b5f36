package relay

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-shelly/internal/device"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-shelly/internal/journal"
	"github.com/nerrad567/gray-logic-shelly/internal/shelly"
)

const (
	// recordTimeout bounds a single journal insert.
	recordTimeout = 5 * time.Second

	// maxUnknownSeen bounds the unknownDevice dedupe set.
	maxUnknownSeen = 1024

	// channelPrefix prefixes WebSocket channel names.
	channelPrefix = "shelly."
)

// Event is the payload relayed to MQTT and WebSocket clients.
type Event struct {
	Event  string           `json:"event"`
	Type   string           `json:"type,omitempty"`
	ID     string           `json:"id,omitempty"`
	Host   string           `json:"host,omitempty"`
	Device *device.Snapshot `json:"device,omitempty"`
	Time   time.Time        `json:"time"`
}

// ListenerStatus is the retained payload of the listener status topic.
type ListenerStatus struct {
	Running bool      `json:"running"`
	Time    time.Time `json:"time"`
}

// Options selects the sinks a Relay forwards to. Nil sinks are skipped.
type Options struct {
	MQTT    Publisher
	Influx  PointWriter
	Journal Recorder
	Hub     Broadcaster
	Metrics *Metrics
	Logger  Logger
}

// Relay forwards registry lifecycle events to the configured sinks.
//
// The relay keeps its own view of registry membership, built from the
// event stream, so every device count it reports is the count as of the
// event being relayed rather than whenever delivery happened to run.
//
// Thread Safety: handlers run on the registry's delivery goroutine;
// Republish may run on any goroutine. Shared state is guarded by mu.
type Relay struct {
	mqtt    Publisher
	influx  PointWriter
	journal Recorder
	hub     Broadcaster
	metrics *Metrics
	logger  Logger
	now     func() time.Time

	mu          sync.Mutex
	unknownSeen map[shelly.Identity]struct{}
	members     map[shelly.Identity]shelly.Device
	running     bool
}

// New creates a relay for the given sinks.
func New(opts Options) *Relay {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Relay{
		mqtt:        opts.MQTT,
		influx:      opts.Influx,
		journal:     opts.Journal,
		hub:         opts.Hub,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		now:         time.Now,
		unknownSeen: make(map[shelly.Identity]struct{}),
		members:     make(map[shelly.Identity]shelly.Device),
	}
}

// Attach subscribes the relay to every lifecycle topic of src and seeds
// its membership view with the devices src already holds.
//
// Returns:
//   - detach: removes every subscription; safe to call more than once
func (r *Relay) Attach(src Source) (detach func()) {
	ev := src.Events()

	unsubs := []func(){
		ev.Start.Subscribe(func(struct{}) { r.listenerChanged(shelly.EventStart, true) }),
		ev.Stop.Subscribe(func(struct{}) { r.listenerChanged(shelly.EventStop, false) }),
		ev.Discover.Subscribe(func(d shelly.Device) { r.deviceJoined(shelly.EventDiscover, d) }),
		ev.Add.Subscribe(func(d shelly.Device) { r.deviceJoined(shelly.EventAdd, d) }),
		ev.Remove.Subscribe(r.deviceLeft),
		ev.Stale.Subscribe(r.deviceStale),
		ev.UnknownDevice.Subscribe(r.unknownDevice),
	}

	r.mu.Lock()
	for _, d := range src.Devices() {
		r.members[shelly.IdentityOf(d)] = d
	}
	n := len(r.members)
	r.mu.Unlock()
	r.metrics.setDevices(n)

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, unsub := range unsubs {
				unsub()
			}
		})
	}
}

// Republish re-sends the retained listener status and the presence of
// every known device. Called after the MQTT client reconnects, since a
// broker restarted without persistence has forgotten retained messages.
func (r *Relay) Republish() {
	r.mu.Lock()
	running := r.running
	devices := make([]shelly.Device, 0, len(r.members))
	for _, d := range r.members {
		devices = append(devices, d)
	}
	r.mu.Unlock()

	r.publish(mqtt.Topics{}.ShellyStatus(), ListenerStatus{Running: running, Time: r.now()}, true)
	for _, d := range devices {
		e := r.deviceEvent(shelly.EventDiscover, d)
		r.publish(mqtt.Topics{}.ShellyDevice(e.Type, e.ID), e, true)
	}
	r.logger.Debug("retained state republished", "devices", len(devices))
}

func (r *Relay) listenerChanged(kind string, running bool) {
	r.mu.Lock()
	r.running = running
	r.mu.Unlock()

	now := r.now()
	r.metrics.observeEvent(kind)
	r.metrics.setListenerRunning(running)

	r.publish(mqtt.Topics{}.ShellyEvent(kind), Event{Event: kind, Time: now}, false)
	r.publish(mqtt.Topics{}.ShellyStatus(), ListenerStatus{Running: running, Time: now}, true)
	r.write(influxdb.LifecycleEvent{Event: kind, Time: now})
	r.record(&journal.Entry{Event: kind, CreatedAt: now})
	r.broadcast(Event{Event: kind, Time: now})
}

func (r *Relay) deviceJoined(kind string, d shelly.Device) {
	devices := r.track(d, true)
	e := r.deviceEvent(kind, d)
	r.metrics.observeEvent(kind)
	r.metrics.setDevices(devices)

	r.publish(mqtt.Topics{}.ShellyEvent(kind), e, false)
	r.publish(mqtt.Topics{}.ShellyDevice(e.Type, e.ID), e, true)
	r.write(lifecycle(e))
	r.writeSize(devices)
	r.record(entry(e, nil))
	r.broadcast(e)
}

func (r *Relay) deviceLeft(d shelly.Device) {
	devices := r.track(d, false)
	e := r.deviceEvent(shelly.EventRemove, d)
	r.metrics.observeEvent(e.Event)
	r.metrics.setDevices(devices)

	r.publish(mqtt.Topics{}.ShellyEvent(e.Event), e, false)
	if r.mqtt != nil {
		if err := r.mqtt.ClearRetained(mqtt.Topics{}.ShellyDevice(e.Type, e.ID)); err != nil {
			r.sinkFailed("mqtt", err, "event", e.Event)
		}
	}
	r.write(lifecycle(e))
	r.writeSize(devices)
	r.record(entry(e, nil))
	r.broadcast(e)
}

func (r *Relay) deviceStale(d shelly.Device) {
	e := r.deviceEvent(shelly.EventStale, d)
	r.metrics.observeEvent(e.Event)

	r.publish(mqtt.Topics{}.ShellyEvent(e.Event), e, false)
	r.write(lifecycle(e))
	r.record(entry(e, nil))
	r.broadcast(e)
}

func (r *Relay) unknownDevice(u shelly.UnknownDevice) {
	e := Event{Event: shelly.EventUnknownDevice, Type: u.Type, ID: u.ID, Host: u.Host, Time: r.now()}
	r.metrics.observeEvent(e.Event)
	r.broadcast(e)

	if !r.firstSighting(u.Identity()) {
		return
	}
	r.logger.Info("unsupported device announced", "type", u.Type, "id", u.ID, "host", u.Host)

	r.publish(mqtt.Topics{}.ShellyEvent(e.Event), e, false)
	r.write(lifecycle(e))
	r.record(entry(e, map[string]any{"reason": "unsupported model"}))
}

// track applies a join or leave to the membership view and returns the
// resulting device count.
func (r *Relay) track(d shelly.Device, joined bool) int {
	id := shelly.IdentityOf(d)
	r.mu.Lock()
	defer r.mu.Unlock()
	if joined {
		r.members[id] = d
	} else {
		delete(r.members, id)
	}
	return len(r.members)
}

// firstSighting reports whether id has not been relayed as unknown before.
func (r *Relay) firstSighting(id shelly.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.unknownSeen[id]; seen {
		return false
	}
	if len(r.unknownSeen) >= maxUnknownSeen {
		clear(r.unknownSeen)
	}
	r.unknownSeen[id] = struct{}{}
	return true
}

// snapshotter is implemented by devices that can describe themselves.
type snapshotter interface {
	Snapshot() device.Snapshot
}

func (r *Relay) deviceEvent(kind string, d shelly.Device) Event {
	e := Event{Event: kind, Type: d.Type(), ID: d.ID(), Host: d.Host(), Time: r.now()}
	if s, ok := d.(snapshotter); ok {
		snap := s.Snapshot()
		e.Device = &snap
	}
	return e
}

func lifecycle(e Event) influxdb.LifecycleEvent {
	return influxdb.LifecycleEvent{
		Event:      e.Event,
		DeviceType: e.Type,
		DeviceID:   e.ID,
		Host:       e.Host,
		Time:       e.Time,
	}
}

func entry(e Event, details map[string]any) *journal.Entry {
	return &journal.Entry{
		Event:      e.Event,
		DeviceType: e.Type,
		DeviceID:   e.ID,
		Host:       e.Host,
		Details:    details,
		CreatedAt:  e.Time,
	}
}

func (r *Relay) publish(topic string, v any, retained bool) {
	if r.mqtt == nil {
		return
	}
	if err := r.mqtt.PublishJSON(topic, v, retained); err != nil {
		r.sinkFailed("mqtt", err, "topic", topic)
	}
}

func (r *Relay) write(ev influxdb.LifecycleEvent) {
	if r.influx == nil {
		return
	}
	r.influx.WriteLifecycleEvent(ev)
}

func (r *Relay) writeSize(devices int) {
	if r.influx == nil {
		return
	}
	r.influx.WriteRegistrySize(devices)
}

func (r *Relay) record(e *journal.Entry) {
	if r.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.journal.Record(ctx, e); err != nil {
		r.sinkFailed("journal", err, "event", e.Event)
	}
}

func (r *Relay) broadcast(e Event) {
	if r.hub == nil {
		return
	}
	r.hub.Broadcast(channelPrefix+e.Event, e)
}

func (r *Relay) sinkFailed(sink string, err error, args ...any) {
	r.metrics.observeSinkError(sink)
	r.logger.Warn("relay sink failed", append([]any{"sink", sink, "error", err}, args...)...)
}
