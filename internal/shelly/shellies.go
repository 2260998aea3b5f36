package shelly

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-shelly/internal/coiot"
)

// Options configures a Shellies instance.
type Options struct {
	// Listener supplies status updates. Required.
	Listener Listener

	// Factory creates devices for new identities. Required.
	Factory DeviceFactory

	// Credentials receives SetAuthCredentials. Optional.
	Credentials CredentialSetter

	// StaleTime is the offline grace period. Default: 8h.
	StaleTime time.Duration

	// Clock schedules stale timers. Default: wall clock.
	Clock Clock

	// Logger receives registry logs. Default: discard.
	Logger Logger
}

// Shellies tracks Shelly devices announced by a CoIoT listener.
//
// It owns the registry, dispatches status updates, evicts devices that stay
// offline longer than the stale time and publishes lifecycle events.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Registry mutations and liveness reactions run on one reaction goroutine,
//     in the order they were enqueued.
//   - Event handlers run on a separate delivery goroutine, in publication
//     order. Handlers may call Add and Remove; they must not call Close.
type Shellies struct {
	listener    Listener
	factory     DeviceFactory
	credentials CredentialSetter
	logger      Logger

	registry  *Registry
	staleness *stalenessMonitor
	events    *Events

	reactions *queue
	delivery  *queue

	closeOnce sync.Once
}

// New creates a Shellies instance and wires it to the listener's callbacks.
// The listener is not started.
//
// Parameters:
//   - opts: collaborators and settings; Listener and Factory are required
//
// Returns:
//   - *Shellies: ready to Start
//   - error: ErrNoListener or ErrNoFactory
func New(opts Options) (*Shellies, error) {
	if opts.Listener == nil {
		return nil, ErrNoListener
	}
	if opts.Factory == nil {
		return nil, ErrNoFactory
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	s := &Shellies{
		listener:    opts.Listener,
		factory:     opts.Factory,
		credentials: opts.Credentials,
		logger:      opts.Logger,
		registry:    newRegistry(),
		events:      newEvents(),
		reactions:   newQueue("reactions", opts.Logger),
		delivery:    newQueue("delivery", opts.Logger),
	}
	s.staleness = newStalenessMonitor(opts.Clock, opts.StaleTime, opts.Logger, s.reactions.post, s.evictStale)

	opts.Listener.SetOnStart(func() { publish(s, s.events.Start, struct{}{}) })
	opts.Listener.SetOnStop(func() { publish(s, s.events.Stop, struct{}{}) })
	opts.Listener.SetOnStatusUpdate(s.HandleStatusUpdate)

	return s, nil
}

// publish queues delivery of v to the topic's handlers.
func publish[T any](s *Shellies, t *Topic[T], v T) {
	if !s.delivery.post(func() { t.emit(v, s.logger) }) {
		s.logger.Debug("event dropped after close", "event", t.Name())
	}
}

// Events returns the lifecycle topics.
func (s *Shellies) Events() *Events {
	return s.events
}

// Start starts the listener. Starting a running listener is a no-op.
func (s *Shellies) Start(ctx context.Context) error {
	if err := s.listener.Start(ctx); err != nil {
		return fmt.Errorf("starting listener: %w", err)
	}
	return nil
}

// Stop stops the listener. Stopping a stopped listener is a no-op.
func (s *Shellies) Stop() error {
	if err := s.listener.Stop(); err != nil {
		return fmt.Errorf("stopping listener: %w", err)
	}
	return nil
}

// Running reports whether the listener is listening.
func (s *Shellies) Running() bool {
	return s.listener.Listening()
}

// Close stops the listener, cancels every stale countdown and waits for
// pending reactions and event deliveries to finish.
func (s *Shellies) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.Stop()

		s.reactions.call(func() {
			s.staleness.detachAll()
			for _, d := range s.registry.Devices() {
				if c, ok := d.(interface{ Close() }); ok {
					c.Close()
				}
			}
		})
		s.reactions.close()
		s.delivery.close()
	})
	return err
}

// SetStaleTime changes the offline grace period.
// Countdowns already running keep the duration they were armed with.
func (s *Shellies) SetStaleTime(d time.Duration) {
	s.staleness.setStaleTime(d)
	s.logger.Info("stale time changed", "stale_time", s.staleness.getStaleTime())
}

// StaleTime returns the current offline grace period.
func (s *Shellies) StaleTime() time.Duration {
	return s.staleness.getStaleTime()
}

// SetAuthCredentials passes HTTP credentials to the device client.
func (s *Shellies) SetAuthCredentials(username, password string) {
	if s.credentials == nil {
		s.logger.Warn("no device client configured, credentials ignored")
		return
	}
	s.credentials.SetAuth(username, password)
}

// CreateDevice creates a device through the factory without registering it.
func (s *Shellies) CreateDevice(deviceType, deviceID, host string) Device {
	return s.factory.Create(deviceType, deviceID, host)
}

// HandleStatusUpdate queues a status update for dispatch.
// It is the listener's status callback and never blocks.
func (s *Shellies) HandleStatusUpdate(msg coiot.StatusUpdate) {
	if !s.reactions.post(func() { s.dispatch(msg) }) {
		s.logger.Debug("status update dropped after close", "device", msg.Key())
	}
}

// Add registers a device, overwriting any entry for its identity, and
// publishes add. It returns once the device is registered.
func (s *Shellies) Add(d Device) error {
	if d == nil {
		return ErrNilDevice
	}
	if !s.reactions.call(func() { s.addDevice(d) }) {
		return ErrClosed
	}
	return nil
}

// Remove deletes the entry for the device's identity and publishes remove.
// The event is published even when the identity is not registered.
func (s *Shellies) Remove(d Device) error {
	if d == nil {
		return ErrNilDevice
	}
	if !s.reactions.call(func() { s.removeDevice(d) }) {
		return ErrClosed
	}
	return nil
}

// Registry returns the device registry.
func (s *Shellies) Registry() *Registry {
	return s.registry
}

// Get returns the device registered for (deviceType, deviceID).
func (s *Shellies) Get(deviceType, deviceID string) (Device, bool) {
	return s.registry.Get(deviceType, deviceID)
}

// Devices returns a snapshot of the registered devices.
func (s *Shellies) Devices() []Device {
	return s.registry.Devices()
}

// All yields a snapshot of the registered devices.
func (s *Shellies) All() iter.Seq[Device] {
	return s.registry.All()
}

// Len returns the number of registered devices.
func (s *Shellies) Len() int {
	return s.registry.Len()
}
