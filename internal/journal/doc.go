// Package journal records registry lifecycle events in SQLite.
//
// Every discover, add, remove, stale, unknownDevice, start and stop event
// becomes one row in the device_events table, so operators can answer
// "when did this relay drop off the network?" after the fact. The registry
// itself stays in memory; the journal is history, not state.
//
// Usage:
//
//	j := journal.New(db.DB)
//	err := j.Record(ctx, &journal.Entry{Event: "stale", DeviceType: "SHSW-1", DeviceID: "A4CF12F45A1B"})
//	page, err := j.List(ctx, journal.Filter{DeviceType: "SHSW-1", Limit: 20})
//	removed, err := j.Prune(ctx, 30*24*time.Hour)
package journal
