// Package shelly is the device registry core of Gray Logic Shelly.
//
// Shellies ties a CoIoT listener to an in-memory registry of Shelly devices.
// Every status update is resolved to a device identity (type#id): known
// devices receive the update, new identities are created through a
// DeviceFactory and announced, and unsupported models are reported without
// touching the registry. Devices that go offline and stay offline longer
// than the stale time are evicted.
//
// # Architecture
//
//	  Listener ──statusUpdate──▶ reaction queue ◀── liveness / timer expiry
//	                                  │
//	                    ┌─────────────┼─────────────┐
//	                    ▼             ▼             ▼
//	              dispatcher      registry    stalenessMonitor
//	                    │             │             │
//	                    └────────── publish ────────┘
//	                                  │
//	                                  ▼
//	                           delivery queue ──▶ Events topics
//
// Reactions run one at a time in enqueue order, so the registry, the
// dispatcher and the staleness monitor never race. Event handlers run on
// their own goroutine and may call Add or Remove.
//
// # Lifecycle events
//
//	start, stop        listener started or stopped
//	discover(device)   a status update created a new device
//	unknownDevice      a status update came from an unsupported model
//	add(device)        a device was added explicitly
//	remove(device)     a device was removed or evicted
//	stale(device)      a device stayed offline for the stale time
//
// A stale eviction publishes stale followed by remove.
//
// # Usage
//
//	s, err := shelly.New(shelly.Options{
//	    Listener: coiot.NewListener(coiot.Config{}),
//	    Factory:  factory,
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	s.Events().Discover.Subscribe(func(d shelly.Device) {
//	    log.Info("new device", "device", shelly.IdentityOf(d))
//	})
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
package shelly
