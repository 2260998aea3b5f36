package relay

import (
	"context"

	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-shelly/internal/journal"
	"github.com/nerrad567/gray-logic-shelly/internal/shelly"
)

// Publisher sends events to the MQTT bus. Satisfied by *mqtt.Client.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
	ClearRetained(topic string) error
}

// PointWriter records time-series points. Satisfied by *influxdb.Client.
type PointWriter interface {
	WriteLifecycleEvent(ev influxdb.LifecycleEvent)
	WriteRegistrySize(devices int)
}

// Recorder stores journal entries. Satisfied by *journal.Journal.
type Recorder interface {
	Record(ctx context.Context, e *journal.Entry) error
}

// Broadcaster pushes events to WebSocket clients. Satisfied by *api.Hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Source is the registry a Relay attaches to. Satisfied by *shelly.Shellies.
type Source interface {
	Events() *shelly.Events
	Devices() []shelly.Device
}

// Logger defines the logging interface used by the relay.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
