package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the Shelly service.
const (
	// MeasurementLifecycle holds one point per registry lifecycle event.
	MeasurementLifecycle = "shelly_lifecycle"

	// MeasurementRegistry holds the registry size over time.
	MeasurementRegistry = "shelly_registry"
)

// LifecycleEvent describes one registry event to record.
type LifecycleEvent struct {
	Event      string
	DeviceType string
	DeviceID   string
	Host       string
	Time       time.Time
}

// WriteLifecycleEvent records a registry lifecycle event.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Tags: event, type, id (device fields omitted for start/stop).
// Fields: count=1, host when known.
//
// Example:
//
//	client.WriteLifecycleEvent(influxdb.LifecycleEvent{
//	    Event: "stale", DeviceType: "SHSW-1", DeviceID: "A4CF12F45A1B",
//	})
func (c *Client) WriteLifecycleEvent(ev LifecycleEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(lifecyclePoint(ev))
}

// WriteRegistrySize records how many devices are registered.
func (c *Client) WriteRegistrySize(devices int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(registryPoint(devices, time.Now()))
}

// lifecyclePoint builds the point for a lifecycle event.
func lifecyclePoint(ev LifecycleEvent) *write.Point {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{"event": ev.Event}
	if ev.DeviceType != "" {
		tags["type"] = ev.DeviceType
	}
	if ev.DeviceID != "" {
		tags["id"] = ev.DeviceID
	}

	fields := map[string]interface{}{"count": 1}
	if ev.Host != "" {
		fields["host"] = ev.Host
	}

	return write.NewPoint(MeasurementLifecycle, tags, fields, ts)
}

// registryPoint builds the point for a registry size sample.
func registryPoint(devices int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementRegistry,
		map[string]string{},
		map[string]interface{}{"devices": devices},
		ts,
	)
}
