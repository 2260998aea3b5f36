// Package relay fans registry lifecycle events out to the service's sinks.
//
// A Relay subscribes to every topic of a shelly.Events and forwards each
// event to whichever sinks are configured:
//
//	                      ┌──▶ MQTT      graylogic/shelly/event/{kind}, presence
//	shelly.Events ──▶ Relay ──▶ InfluxDB  shelly_lifecycle, shelly_registry
//	                      ├──▶ Journal   device_events table
//	                      ├──▶ Hub       WebSocket channel shelly.{kind}
//	                      └──▶ Metrics   Prometheus counters and gauges
//
// Sink failures are logged and counted; they never reach the registry.
//
// Unknown devices announce themselves with every status message, so the
// relay forwards unknownDevice to MQTT, InfluxDB and the journal once per
// identity. Metrics and the WebSocket hub see every occurrence.
//
// Commands handles the reverse direction: control messages received on
// graylogic/shelly/command/{name} are validated and applied to the registry.
package relay
