// Package influxdb provides InfluxDB connectivity for the Gray Logic Shelly service.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, lifecycle point writing, and health monitoring.
//
// # Purpose
//
// This package records the registry's history as time series:
//   - shelly_lifecycle: one point per discover, add, remove, stale,
//     unknownDevice, start and stop event
//   - shelly_registry: registry size after each membership change
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteLifecycleEvent(influxdb.LifecycleEvent{
//	    Event: "discover", DeviceType: "SHSW-1", DeviceID: "A4CF12F45A1B",
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are reported via a callback.
// Connection and health check errors are returned directly.
package influxdb
