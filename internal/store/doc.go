// Package store is the single owner of device state.
//
// Every DeviceState lives here; the scheduler, router, watchdog and API
// read snapshots and mutate through Update, which serializes writes per
// device. The store also carries the event spine: components emit state
// transition events through Emit, and adapters (bus publisher, journal)
// receive them via Subscribe. Durable fields survive restarts through
// an atomically written JSON file.
package store
