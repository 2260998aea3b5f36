// Package api implements the HTTP REST API and WebSocket server for the
// Gray Logic Shelly service.
//
// This package provides:
//   - REST endpoints to list, add, inspect and remove registered Shelly devices
//   - The table of supported device models
//   - Live status fetches proxied to a device's HTTP API
//   - A query endpoint over the device event journal
//   - Runtime settings (stale time)
//   - A WebSocket hub relaying registry lifecycle events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server reads and mutates the shelly registry directly. Lifecycle
// events reach WebSocket clients through the Hub, which the relay package
// broadcasts to on channels named "shelly.<event>".
//
// # Security
//
// Everything except health and metrics requires an HS256 bearer token
// signed with security.jwt.secret. WebSocket clients pass the same token
// in the token query parameter since browsers cannot set headers on the
// upgrade request.
package api
