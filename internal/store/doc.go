// Package store provides SQLite-backed durable storage for driver runs.
//
// The store keeps three tables:
//   - runs: one row per top-level table execution, with its final status
//   - counters: per-table status tallies fed by the driver's counters service
//   - messages: the test log, in the order the driver wrote it
//
// A RunLog binds a run ID and implements both driver.LogService and
// driver.CountersService, so a single Store can back the driver's sinks
// directly.
//
// # Ordering
//
// Messages carry a per-run seq assigned by the RunLog. All message queries
// ORDER BY seq ASC so reports replay the log exactly as it was written.
//
// # Schema upgrades
//
// Open applies the connection settings, creates missing tables and then
// runs each migration above the database's user_version in order.
package store
