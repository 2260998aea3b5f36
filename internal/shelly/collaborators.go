package shelly

import (
	"context"

	"github.com/nerrad567/gray-logic-shelly/internal/coiot"
)

// Device is a device handle tracked by the registry.
//
// Implementations must be comparable (typically a pointer) and must report
// every online/offline transition to the registered liveness watchers
// without blocking.
type Device interface {
	Type() string
	ID() string
	Host() string

	// Update applies a status update. It may be called repeatedly with fresh data.
	Update(msg coiot.StatusUpdate)

	// WatchLiveness registers fn for liveness transitions and returns a
	// function that removes it.
	WatchLiveness(fn func(online bool)) (unwatch func())
}

// DeviceFactory creates devices for recognised model tags.
type DeviceFactory interface {
	// Create returns a new device, or nil when the type is not recognised.
	Create(deviceType, deviceID, host string) Device
}

// FactoryFunc adapts a function to DeviceFactory.
type FactoryFunc func(deviceType, deviceID, host string) Device

// Create calls f.
func (f FactoryFunc) Create(deviceType, deviceID, host string) Device {
	return f(deviceType, deviceID, host)
}

// Listener delivers CoIoT status updates from the network.
type Listener interface {
	Start(ctx context.Context) error
	Stop() error
	Listening() bool
	SetOnStart(fn func())
	SetOnStop(fn func())
	SetOnStatusUpdate(fn func(coiot.StatusUpdate))
}

// CredentialSetter receives the HTTP credentials shared by all devices.
type CredentialSetter interface {
	SetAuth(username, password string)
}

// Logger defines the logging interface used by Shellies.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
