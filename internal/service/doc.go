// Package service implements the charger poll engine.
//
// # Cycle
//
// Orchestrator.RunCycle performs one pass: scan the configured range, fall
// back to the static device list when the scan finds nothing, poll every
// unit concurrently, then reconcile the scanned addresses against the
// previous scan. Units that fail to log in or return bad data are dropped
// from the cycle without affecting the rest.
//
// Fallback devices are polled but never reconciled. Only addresses the
// scanner actually saw can be reported as removed.
//
// # Monitor
//
// Monitor repeats cycles at a fixed interval and owns the scan state. A
// cycle in flight runs on a context detached from cancellation so its units
// finish within their own timeouts; the monitor stops at the next cycle
// boundary. Failures and panics surface as CycleError and are handled by
// the configured ErrorPolicy.
//
// # Event System
//
// Every event goes through EventBus, which hands it to each sink in turn
// (stdout, SSE, MQTT, journal, metrics). A cycle's events are published in
// full before the next cycle starts.
package service
