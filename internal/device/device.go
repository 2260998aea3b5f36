package device

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-shelly/internal/coiot"
)

// Fetcher performs JSON requests against a device's HTTP API.
type Fetcher interface {
	GetJSON(ctx context.Context, host, path string, out any) error
}

// afterFunc schedules f after d and returns a function that cancels it.
type afterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Device is a Shelly device tracked from its CoIoT status updates.
type Device struct {
	deviceType string
	id         string
	model      Model
	client     Fetcher

	fallbackValidity time.Duration
	after            afterFunc

	// notifyMu orders liveness transitions with their notifications.
	notifyMu sync.Mutex

	mu         sync.RWMutex
	host       string
	revision   string
	serial     uint16
	hasSerial  bool
	online     bool
	state      State
	lastSeen   time.Time
	generation uint64
	stopTimer  func() bool
	watchers   map[uint64]func(online bool)
	nextWatch  uint64
}

// Snapshot is a point-in-time copy of a device for serialisation.
type Snapshot struct {
	Type     string     `json:"type"`
	ID       string     `json:"id"`
	Model    string     `json:"model"`
	Host     string     `json:"host"`
	Online   bool       `json:"online"`
	Revision string     `json:"revision,omitempty"`
	Serial   uint16     `json:"serial"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
	State    State      `json:"state"`
}

// Type returns the model tag, e.g. "SHSW-1".
func (d *Device) Type() string { return d.deviceType }

// ID returns the device identifier.
func (d *Device) ID() string { return d.id }

// Model returns the model description.
func (d *Device) Model() Model { return d.model }

// Host returns the device's last known IP address.
func (d *Device) Host() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.host
}

// Online reports whether the device's last status is still valid.
func (d *Device) Online() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.online
}

// State returns a copy of the reported properties.
func (d *Device) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Clone()
}

// Snapshot returns a copy of the device for the API and event sinks.
func (d *Device) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Snapshot{
		Type:     d.deviceType,
		ID:       d.id,
		Model:    d.model.Name,
		Host:     d.host,
		Online:   d.online,
		Revision: d.revision,
		Serial:   d.serial,
		State:    d.state.Clone(),
	}
	if !d.lastSeen.IsZero() {
		seen := d.lastSeen
		s.LastSeen = &seen
	}
	return s
}

// Update applies a status update.
//
// Duplicate serials skip property decoding but still refresh liveness.
// The device is marked online and the validity timer re-armed.
func (d *Device) Update(msg coiot.StatusUpdate) {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	d.mu.Lock()
	if msg.Host != "" {
		d.host = msg.Host
	}
	if msg.Revision != "" {
		d.revision = msg.Revision
	}

	if !d.hasSerial || msg.Serial != d.serial {
		d.applyProperties(msg.Properties)
		d.serial = msg.Serial
		d.hasSerial = true
	}

	d.lastSeen = msg.ReceivedAt
	if d.lastSeen.IsZero() {
		d.lastSeen = time.Now()
	}

	wentOnline := !d.online
	d.online = true
	d.armValidityLocked(msg.Validity)
	watchers := d.watchersLocked(wentOnline)
	d.mu.Unlock()

	for _, w := range watchers {
		w(true)
	}
}

// applyProperties merges payload values into state. Caller holds mu.
func (d *Device) applyProperties(props []coiot.Property) {
	if len(props) == 0 {
		return
	}
	if d.state == nil {
		d.state = make(State, len(props))
	}
	for _, p := range props {
		name, ok := d.model.PropertyName(p.ID)
		if !ok {
			name = strconv.Itoa(p.ID)
		}
		d.state[name] = p.Value
	}
}

// armValidityLocked replaces any running validity timer. Caller holds mu.
func (d *Device) armValidityLocked(validity time.Duration) {
	if d.stopTimer != nil {
		d.stopTimer()
		d.stopTimer = nil
	}
	d.generation++

	if validity <= 0 {
		validity = d.fallbackValidity
	}
	if validity <= 0 {
		return
	}

	gen := d.generation
	d.stopTimer = d.after(validity, func() { d.expire(gen) })
}

// expire marks the device offline unless a newer update re-armed the timer.
func (d *Device) expire(gen uint64) {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	d.mu.Lock()
	if gen != d.generation || !d.online {
		d.mu.Unlock()
		return
	}
	d.online = false
	d.stopTimer = nil
	watchers := d.watchersLocked(true)
	d.mu.Unlock()

	for _, w := range watchers {
		w(false)
	}
}

// watchersLocked copies the watcher set when a transition happened. Caller holds mu.
func (d *Device) watchersLocked(transition bool) []func(bool) {
	if !transition || len(d.watchers) == 0 {
		return nil
	}
	out := make([]func(bool), 0, len(d.watchers))
	for _, w := range d.watchers {
		out = append(out, w)
	}
	return out
}

// WatchLiveness registers fn to be called on every online/offline transition.
//
// Returns:
//   - unwatch: removes the watcher; safe to call more than once
func (d *Device) WatchLiveness(fn func(online bool)) (unwatch func()) {
	d.mu.Lock()
	if d.watchers == nil {
		d.watchers = make(map[uint64]func(bool))
	}
	d.nextWatch++
	key := d.nextWatch
	d.watchers[key] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.watchers, key)
		d.mu.Unlock()
	}
}

// Close stops the validity timer without changing liveness.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopTimer != nil {
		d.stopTimer()
		d.stopTimer = nil
	}
	d.generation++
}

// Status fetches the live /status document from the device.
func (d *Device) Status(ctx context.Context) (map[string]any, error) {
	return d.fetch(ctx, "/status")
}

// Settings fetches the live /settings document from the device.
func (d *Device) Settings(ctx context.Context) (map[string]any, error) {
	return d.fetch(ctx, "/settings")
}

func (d *Device) fetch(ctx context.Context, path string) (map[string]any, error) {
	if d.client == nil {
		return nil, ErrNoClient
	}
	host := d.Host()
	if host == "" {
		return nil, ErrNoHost
	}

	var out map[string]any
	if err := d.client.GetJSON(ctx, host, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}
