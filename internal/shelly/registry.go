package shelly

import (
	"iter"
	"sort"
	"sync"
)

// Registry maps device identities to device handles.
//
// Membership changes only through Shellies, on its reaction goroutine.
// Reads are safe from any goroutine.
type Registry struct {
	mu      sync.RWMutex
	devices map[Identity]Device
}

func newRegistry() *Registry {
	return &Registry{devices: make(map[Identity]Device)}
}

// Get returns the device registered for (deviceType, deviceID).
func (r *Registry) Get(deviceType, deviceID string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[Identity{Type: deviceType, ID: deviceID}]
	return d, ok
}

// Devices returns a snapshot of the registered devices ordered by key.
func (r *Registry) Devices() []Device {
	r.mu.RLock()
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return IdentityOf(out[i]).Key() < IdentityOf(out[j]).Key()
	})
	return out
}

// All yields the devices registered when iteration begins.
// Each call takes a fresh snapshot, so the sequence can be ranged over again.
func (r *Registry) All() iter.Seq[Device] {
	return func(yield func(Device) bool) {
		for _, d := range r.Devices() {
			if !yield(d) {
				return
			}
		}
	}
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// put inserts or overwrites the entry for the device's identity.
func (r *Registry) put(id Identity, d Device) {
	r.mu.Lock()
	r.devices[id] = d
	r.mu.Unlock()
}

// delete removes the entry for id and reports whether one existed.
func (r *Registry) delete(id Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.devices[id]
	delete(r.devices, id)
	return ok
}
