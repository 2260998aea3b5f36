// Package device provides the concrete Shelly device model for Gray Logic Shelly.
//
// A Device is created by the Factory when the registry sees a CoIoT status
// update from an identity it does not know. The Factory only recognises the
// Gen1 models in its model table; unknown model tags produce no device.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                          device package                         │
//	│                                                                 │
//	│  ┌──────────────────┐   ┌──────────────────┐   ┌─────────────┐  │
//	│  │     Factory      │──▶│      Device      │──▶│   Fetcher   │  │
//	│  │   (factory.go)   │   │   (device.go)    │   │ (HTTP JSON) │  │
//	│  │                  │   │                  │   └─────────────┘  │
//	│  │ • model lookup   │   │ • property state │                    │
//	│  │ • shared client  │   │ • validity timer │                    │
//	│  └──────────────────┘   │ • liveness watch │                    │
//	│           │             └──────────────────┘                    │
//	│           ▼                                                     │
//	│  ┌──────────────────┐                                           │
//	│  │   Model table    │                                           │
//	│  │   (models.go)    │                                           │
//	│  └──────────────────┘                                           │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Liveness
//
// Every status update marks the device online and re-arms a timer for the
// validity period the device advertised. If no further update arrives before
// the timer fires the device goes offline. Transitions are reported to
// watchers registered with WatchLiveness; repeated updates while online do
// not notify.
//
// # Thread Safety
//
// Device is safe for concurrent use. Liveness notifications are delivered
// in transition order and watchers must not block.
package device
