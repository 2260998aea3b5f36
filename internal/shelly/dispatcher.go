package shelly

import (
	"github.com/nerrad567/gray-logic-shelly/internal/coiot"
)

// dispatch resolves a status update to a device. Runs on the reaction goroutine.
//
// A known identity only receives the update. A new identity is offered to the
// factory: a created device is updated before it becomes visible, registered,
// and announced with discover; an unrecognised type is announced with
// unknownDevice and leaves the registry untouched.
func (s *Shellies) dispatch(msg coiot.StatusUpdate) {
	id := Identity{Type: msg.DeviceType, ID: msg.DeviceID}

	if d, ok := s.registry.Get(id.Type, id.ID); ok {
		d.Update(msg)
		return
	}

	d := s.factory.Create(msg.DeviceType, msg.DeviceID, msg.Host)
	if d == nil {
		s.logger.Debug("status update from unsupported device", "device", id.Key(), "host", msg.Host)
		publish(s, s.events.UnknownDevice, UnknownDevice{Type: msg.DeviceType, ID: msg.DeviceID, Host: msg.Host})
		return
	}

	d.Update(msg)
	s.register(id, d)

	s.logger.Info("device discovered", "device", id.Key(), "host", msg.Host)
	publish(s, s.events.Discover, d)
}

// register inserts the device and attaches its staleness watch.
func (s *Shellies) register(id Identity, d Device) {
	s.registry.put(id, d)
	s.staleness.attach(id, d)
}

// unregister deletes the identity and releases its staleness watch.
func (s *Shellies) unregister(id Identity) bool {
	existed := s.registry.delete(id)
	s.staleness.detach(id)
	return existed
}

// addDevice handles an explicit add. Runs on the reaction goroutine.
func (s *Shellies) addDevice(d Device) {
	id := IdentityOf(d)
	s.register(id, d)

	s.logger.Info("device added", "device", id.Key())
	publish(s, s.events.Add, d)
}

// removeDevice handles an explicit removal or stale eviction. Runs on the
// reaction goroutine. The remove event is published even when the identity
// was not registered.
func (s *Shellies) removeDevice(d Device) {
	id := IdentityOf(d)
	if s.unregister(id) {
		s.logger.Info("device removed", "device", id.Key())
	}
	publish(s, s.events.Remove, d)
}

// evictStale is the staleness monitor's expiry action.
func (s *Shellies) evictStale(d Device) {
	s.logger.Info("device stale", "device", IdentityOf(d).Key(), "stale_time", s.staleness.getStaleTime())
	publish(s, s.events.Stale, d)
	s.removeDevice(d)
}
