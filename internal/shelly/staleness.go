package shelly

import (
	"sync/atomic"
	"time"
)

// DefaultStaleTime is how long a device may stay offline before eviction.
const DefaultStaleTime = 8 * time.Hour

// watch is the staleness subscription for one registered device handle.
type watch struct {
	id      Identity
	device  Device
	unwatch func()

	// timer is non-nil while a stale countdown is armed.
	timer Timer

	// gen invalidates expiries of cancelled countdowns.
	gen uint64
}

// stalenessMonitor arms a countdown when a device goes offline and evicts
// the device if it does not come back before the countdown expires.
//
// All methods except SetStaleTime/StaleTime run on the reaction goroutine.
type stalenessMonitor struct {
	clock     Clock
	staleTime atomic.Int64
	logger    Logger

	// post enqueues a reaction; liveness callbacks and expiries go through it.
	post func(func()) bool

	// onStale is invoked on the reaction goroutine when a countdown expires.
	onStale func(Device)

	watches map[Identity]*watch
}

func newStalenessMonitor(clock Clock, staleTime time.Duration, logger Logger, post func(func()) bool, onStale func(Device)) *stalenessMonitor {
	m := &stalenessMonitor{
		clock:   clock,
		logger:  logger,
		post:    post,
		onStale: onStale,
		watches: make(map[Identity]*watch),
	}
	m.setStaleTime(staleTime)
	return m
}

func (m *stalenessMonitor) setStaleTime(d time.Duration) {
	if d <= 0 {
		d = DefaultStaleTime
	}
	m.staleTime.Store(int64(d))
}

func (m *stalenessMonitor) getStaleTime() time.Duration {
	return time.Duration(m.staleTime.Load())
}

// attach subscribes to the device's liveness.
// Re-attaching the same handle is a no-op; a different handle replaces the old watch.
func (m *stalenessMonitor) attach(id Identity, d Device) {
	if w, ok := m.watches[id]; ok {
		if w.device == d {
			return
		}
		m.detach(id)
	}

	w := &watch{id: id, device: d}
	m.watches[id] = w
	w.unwatch = d.WatchLiveness(func(online bool) {
		m.post(func() {
			if online {
				m.online(w)
			} else {
				m.offline(w)
			}
		})
	})
}

// detach unsubscribes from the device registered under id and cancels its countdown.
func (m *stalenessMonitor) detach(id Identity) {
	w, ok := m.watches[id]
	if !ok {
		return
	}
	delete(m.watches, id)

	if w.unwatch != nil {
		w.unwatch()
	}
	m.cancel(w)
}

// offline arms the countdown. An already running countdown keeps governing.
func (m *stalenessMonitor) offline(w *watch) {
	if m.watches[w.id] != w || w.timer != nil {
		return
	}

	staleTime := m.getStaleTime()
	w.gen++
	gen := w.gen
	w.timer = m.clock.AfterFunc(staleTime, func() {
		m.post(func() { m.expire(w, gen) })
	})

	m.logger.Debug("device offline, stale countdown armed", "device", w.id.Key(), "stale_time", staleTime)
}

// online cancels a running countdown.
func (m *stalenessMonitor) online(w *watch) {
	if m.watches[w.id] != w || w.timer == nil {
		return
	}
	m.cancel(w)
	m.logger.Debug("device back online, stale countdown cancelled", "device", w.id.Key())
}

// expire evicts the device unless the countdown was cancelled after it fired.
func (m *stalenessMonitor) expire(w *watch, gen uint64) {
	if m.watches[w.id] != w || w.timer == nil || w.gen != gen {
		return
	}
	w.timer = nil
	m.onStale(w.device)
}

func (m *stalenessMonitor) cancel(w *watch) {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
}

// armed reports whether a countdown is running for id.
func (m *stalenessMonitor) armed(id Identity) bool {
	w, ok := m.watches[id]
	return ok && w.timer != nil
}

// detachAll releases every watch.
func (m *stalenessMonitor) detachAll() {
	for id := range m.watches {
		m.detach(id)
	}
}
