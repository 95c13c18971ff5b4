// Package domain defines the core types of the charger discovery and poll engine.
//
// # Core Types
//
// Unit is a charger found by a layer-2 scan or listed manually in the
// configuration. Units are rebuilt from scratch every cycle; only their
// addresses survive, as the baseline used to detect removals.
//
// DeviceInfo is the flat status record built from a charger's nested "info"
// response merged with one of its EVSE sub-records. Every expected attribute
// is always present and falls back to NotAvailable when the device omits it.
//
// Event is one record of the output stream: a status update, a removal or
// (optionally) an appearance.
//
// # Design Principles
//
// - No network, database or other infrastructure dependencies
// - Field names on the wire match the records consumers already parse
package domain
