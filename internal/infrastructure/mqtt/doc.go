// Package mqtt provides MQTT client connectivity for the Gray Logic Shelly service.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Publishing registry lifecycle events and retained device presence
//   - Control command subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The Shelly service publishes what its registry sees onto the Gray Logic
// message bus. Other services learn about discovered, stale and removed
// devices without speaking CoIoT themselves.
//
//	Shelly devices ──CoIoT──▶ graylogic-shelly ──MQTT──▶ Broker ──▶ Gray Logic Core
//	                                  ▲                      │
//	                                  └──── commands ────────┘
//
// Topic layout:
//
//	graylogic/shelly/event/{kind}            lifecycle events (not retained)
//	graylogic/shelly/device/{type}/{id}      presence (retained, cleared on remove)
//	graylogic/shelly/status                  listener running state (retained)
//	graylogic/shelly/command/{name}          control commands
//	graylogic/system/status                  service online/offline + LWT
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.ShellyEvent("discover"), event, false)
package mqtt
