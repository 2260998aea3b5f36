// Package coiot receives Shelly CoIoT status updates from the local network.
//
// CoIoT is Shelly's profile of CoAP (RFC 7252). Gen1 devices periodically
// multicast a non-confirmable request with the non-standard code 0.30 to
// 224.0.1.187:5683 on the URI path /cit/s. Device identity and freshness are
// carried in vendor options:
//
//	3332  global device ID   "SHSW-1#ABC123#2"  (type # id # revision)
//	3412  validity           uint16, LSB 0 = quarter seconds, LSB 1 = tens of seconds
//	3420  serial             uint16, incremented on every state change
//
// The payload is JSON holding a "G" array of [channel, property, value] triples.
//
// # Architecture
//
//	 UDP 224.0.1.187:5683
//	        │
//	        ▼
//	┌──────────────────┐   ParseMessage   ┌──────────────────┐
//	│    Listener      │─────────────────▶│  Message (CoAP)  │
//	│ (listener.go)    │                  │  (message.go)    │
//	└──────────────────┘                  └────────┬─────────┘
//	        │ OnStatusUpdate                       │ ParseStatus
//	        ▼                                      ▼
//	  registry dispatcher  ◀───────────────  StatusUpdate (status.go)
//
// Malformed datagrams are counted and dropped; they never stop the listener.
package coiot
