// Package deviceclient fetches JSON from Shelly devices over their local HTTP API.
//
// Gen1 devices expose endpoints such as /status, /settings and /shelly on port 80.
// When a device has restricted login enabled every request needs HTTP basic
// authentication; the credentials are shared by all devices and set once via
// SetAuth.
//
// Transport failures and 5xx responses are retried with exponential backoff.
// 401 and 404 responses are terminal and map to ErrUnauthorised and ErrNotFound.
package deviceclient
